package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Version is the current file format version.
	Version = 1

	// HeaderSize is the encoded size of FileHeader.
	HeaderSize = 32
)

// Magic identifies snapshot files.
var Magic = [4]byte{'A', 'N', 'N', '1'}

var (
	// ErrCorrupt is wrapped by every error caused by unreadable snapshot bytes.
	ErrCorrupt = errors.New("persistence: corrupt snapshot")

	ErrInvalidMagic       = fmt.Errorf("%w: invalid magic number", ErrCorrupt)
	ErrInvalidVersion     = fmt.Errorf("%w: unsupported version", ErrCorrupt)
	ErrTruncated          = fmt.Errorf("%w: truncated", ErrCorrupt)
	ErrUnknownCompression = fmt.Errorf("%w: unknown compression", ErrCorrupt)
)

// FileHeader is the header at the start of every snapshot file.
type FileHeader struct {
	Magic       [4]byte
	Version     uint16
	Compression Compression
	RawLen      uint64
	StoredLen   uint64
	Checksum    uint32
}

// MarshalBinary encodes the header.
func (h *FileHeader) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(buf[4:], h.Version)
	buf[6] = byte(h.Compression)
	binary.LittleEndian.PutUint64(buf[8:], h.RawLen)
	binary.LittleEndian.PutUint64(buf[16:], h.StoredLen)
	binary.LittleEndian.PutUint32(buf[24:], h.Checksum)
	return buf, nil
}

// UnmarshalBinary decodes and validates the header.
func (h *FileHeader) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return ErrTruncated
	}
	copy(h.Magic[:], data[0:4])
	if h.Magic != Magic {
		return ErrInvalidMagic
	}
	h.Version = binary.LittleEndian.Uint16(data[4:])
	if h.Version != Version {
		return fmt.Errorf("%w %d", ErrInvalidVersion, h.Version)
	}
	h.Compression = Compression(data[6])
	if !h.Compression.valid() {
		return fmt.Errorf("%w %d", ErrUnknownCompression, h.Compression)
	}
	h.RawLen = binary.LittleEndian.Uint64(data[8:])
	h.StoredLen = binary.LittleEndian.Uint64(data[16:])
	h.Checksum = binary.LittleEndian.Uint32(data[24:])
	return nil
}

package persistence

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/annstore/internal/fs"
	"github.com/hupe1980/annstore/internal/mmap"
)

// Encode frames payload with a header and writes it to w.
func Encode(w io.Writer, c Compression, payload []byte) (int64, error) {
	stored, applied, err := compress(payload, c)
	if err != nil {
		return 0, err
	}

	hdr := FileHeader{
		Magic:       Magic,
		Version:     Version,
		Compression: applied,
		RawLen:      uint64(len(payload)),
		StoredLen:   uint64(len(stored)),
		Checksum:    CalculateChecksum(stored),
	}
	hb, _ := hdr.MarshalBinary()

	n, err := w.Write(hb)
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(stored)
	return int64(n + m), err
}

// Decode verifies a framed snapshot and returns its raw payload. For uncompressed
// snapshots the result aliases data.
func Decode(data []byte) ([]byte, FileHeader, error) {
	var hdr FileHeader
	if err := hdr.UnmarshalBinary(data); err != nil {
		return nil, hdr, err
	}

	body := data[HeaderSize:]
	if uint64(len(body)) != hdr.StoredLen {
		return nil, hdr, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrTruncated, len(body), hdr.StoredLen)
	}
	if err := VerifyChecksum(body, hdr.Checksum); err != nil {
		return nil, hdr, err
	}

	raw, err := decompress(body, hdr.Compression, hdr.RawLen)
	if err != nil {
		return nil, hdr, err
	}
	return raw, hdr, nil
}

// SaveToFile atomically replaces path with a framed snapshot of whatever write produces.
// It returns the number of bytes written to disk.
func SaveToFile(fsys fs.FileSystem, path string, c Compression, write func(io.Writer) error) (int64, error) {
	var payload bytes.Buffer
	if err := write(&payload); err != nil {
		return 0, err
	}

	return WriteFileAtomic(fsys, path, func(w io.Writer) error {
		_, err := Encode(w, c, payload.Bytes())
		return err
	})
}

// WriteFileAtomic writes to a temporary sibling of path, fsyncs it and renames it
// over path. On failure path is left untouched and the temporary file is removed.
func WriteFileAtomic(fsys fs.FileSystem, path string, write func(io.Writer) error) (int64, error) {
	if fsys == nil {
		fsys = fs.Default
	}

	dir := filepath.Dir(path)
	tmp, err := fsys.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = fsys.Remove(tmpName)
		}
	}()

	cw := &countingWriter{w: tmp}
	bw := bufio.NewWriterSize(cw, 256*1024)
	if err := write(bw); err != nil {
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}

	if err := fsys.Rename(tmpName, path); err != nil {
		return 0, err
	}
	tmpName = ""

	return cw.n, fs.SyncDir(fsys, dir)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// LoadFromFile maps path, verifies it and passes the raw payload to read.
// Errors caused by the file contents wrap ErrCorrupt; a missing file yields an
// error matching os.ErrNotExist.
func LoadFromFile(path string, read func(io.Reader) error) error {
	m, err := mmap.Open(path)
	if err != nil {
		return err
	}
	defer m.Close()

	_ = m.Advise(mmap.AccessSequential)

	raw, _, err := Decode(m.Bytes())
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return read(bytes.NewReader(raw))
}

// Exists reports whether path names a regular file.
func Exists(fsys fs.FileSystem, path string) (bool, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	fi, err := fsys.Stat(path)
	if err == nil {
		return fi.Mode().IsRegular(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

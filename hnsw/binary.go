package hnsw

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring/v2"
)

const (
	graphMagic   = 0x48534e57 // "HNSW"
	graphVersion = 1
)

type graphHeader struct {
	Magic          uint32
	Version        uint32
	Dimension      uint32
	M              uint32
	EFConstruction uint32
	EF             uint32
	Heuristic      uint8
	HasEntry       uint8
	Padding        [2]byte
	EntryPoint     uint32
	MaxLevel       int32
	Capacity       uint64
	SlotCount      uint64
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

// WriteTo serializes the full graph, tombstones included.
func (g *Graph) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)

	hdr := graphHeader{
		Magic:          graphMagic,
		Version:        graphVersion,
		Dimension:      uint32(g.dim),
		M:              uint32(g.m),
		EFConstruction: uint32(g.efConstruction),
		EF:             uint32(g.ef),
		EntryPoint:     g.entryPoint,
		MaxLevel:       int32(g.maxLevel),
		Capacity:       uint64(g.capacity),
		SlotCount:      uint64(len(g.nodes)),
	}
	if g.heuristic {
		hdr.Heuristic = 1
	}
	if g.hasEntry {
		hdr.HasEntry = 1
	}

	if err := binary.Write(bw, binary.LittleEndian, &hdr); err != nil {
		return cw.n, err
	}

	for _, n := range g.nodes {
		if err := writeNode(bw, n); err != nil {
			return cw.n, err
		}
	}

	tomb, err := g.deleted.ToBytes()
	if err != nil {
		return cw.n, err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(tomb))); err != nil {
		return cw.n, err
	}
	if _, err := bw.Write(tomb); err != nil {
		return cw.n, err
	}

	if err := bw.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

func writeNode(w io.Writer, n *node) error {
	if err := binary.Write(w, binary.LittleEndian, n.label); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(n.level)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, n.vector); err != nil {
		return err
	}
	for l := 0; l <= n.level; l++ {
		var conns []uint32
		if l < len(n.connections) {
			conns = n.connections[l]
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(conns))); err != nil {
			return err
		}
		if len(conns) > 0 {
			if err := binary.Write(w, binary.LittleEndian, conns); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadGraph decodes a graph written by WriteTo. The capacity is the larger of the
// stored capacity and capacityHint. Decoding failures wrap ErrCorrupt.
func ReadGraph(r io.Reader, capacityHint int, optFns ...func(o *Options)) (*Graph, error) {
	br := bufio.NewReader(r)

	var hdr graphHeader
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, corrupt("header", err)
	}
	if hdr.Magic != graphMagic {
		return nil, fmt.Errorf("%w: bad magic 0x%08x", ErrCorrupt, hdr.Magic)
	}
	if hdr.Version != graphVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, hdr.Version)
	}
	if hdr.SlotCount > hdr.Capacity || hdr.Dimension == 0 {
		return nil, fmt.Errorf("%w: %d slots for capacity %d", ErrCorrupt, hdr.SlotCount, hdr.Capacity)
	}

	capacity := max(int(hdr.Capacity), capacityHint)
	g, err := New(int(hdr.Dimension), append(optFns, func(o *Options) {
		o.Capacity = capacity
		o.M = int(hdr.M)
		o.EFConstruction = int(hdr.EFConstruction)
		o.EF = int(hdr.EF)
		o.Heuristic = hdr.Heuristic == 1
	})...)
	if err != nil {
		return nil, corrupt("options", err)
	}

	g.entryPoint = hdr.EntryPoint
	g.hasEntry = hdr.HasEntry == 1
	g.maxLevel = int(hdr.MaxLevel)
	g.nodes = make([]*node, 0, hdr.SlotCount)

	for i := uint64(0); i < hdr.SlotCount; i++ {
		n, err := readNode(br, g.dim, hdr.SlotCount)
		if err != nil {
			return nil, corrupt(fmt.Sprintf("node %d", i), err)
		}
		if _, dup := g.labels[n.label]; dup {
			return nil, fmt.Errorf("%w: label %d stored twice", ErrCorrupt, n.label)
		}
		g.labels[n.label] = uint32(i)
		g.nodes = append(g.nodes, n)
	}

	if g.hasEntry && uint64(g.entryPoint) >= hdr.SlotCount {
		return nil, fmt.Errorf("%w: entry point %d out of range", ErrCorrupt, g.entryPoint)
	}

	var tombLen uint64
	if err := binary.Read(br, binary.LittleEndian, &tombLen); err != nil {
		return nil, corrupt("tombstones", err)
	}
	tomb := make([]byte, tombLen)
	if _, err := io.ReadFull(br, tomb); err != nil {
		return nil, corrupt("tombstones", err)
	}
	g.deleted = roaring.New()
	if err := g.deleted.UnmarshalBinary(tomb); err != nil {
		return nil, corrupt("tombstones", err)
	}
	if !g.deleted.IsEmpty() && uint64(g.deleted.Maximum()) >= hdr.SlotCount {
		return nil, fmt.Errorf("%w: tombstone out of range", ErrCorrupt)
	}

	return g, nil
}

func readNode(r io.Reader, dim int, slots uint64) (*node, error) {
	n := &node{}
	if err := binary.Read(r, binary.LittleEndian, &n.label); err != nil {
		return nil, err
	}
	if n.label < 0 {
		return nil, ErrInvalidLabel
	}

	var level uint16
	if err := binary.Read(r, binary.LittleEndian, &level); err != nil {
		return nil, err
	}
	n.level = int(level)

	n.vector = make([]float32, dim)
	if err := binary.Read(r, binary.LittleEndian, n.vector); err != nil {
		return nil, err
	}

	n.connections = make([][]uint32, n.level+1)
	for l := 0; l <= n.level; l++ {
		var count uint32
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return nil, err
		}
		if uint64(count) > slots {
			return nil, errors.New("connection count exceeds slot count")
		}
		if count == 0 {
			continue
		}
		conns := make([]uint32, count)
		if err := binary.Read(r, binary.LittleEndian, conns); err != nil {
			return nil, err
		}
		for _, c := range conns {
			if uint64(c) >= slots {
				return nil, errors.New("connection out of range")
			}
		}
		n.connections[l] = conns
	}
	return n, nil
}

func corrupt(section string, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: %s: %w", ErrCorrupt, section, err)
}

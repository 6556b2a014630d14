package store

import (
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// SnapshotExt is the file extension of graph snapshots.
	SnapshotExt = ".hnsw"
	// MetaExt is the file extension of sidecar metadata.
	MetaExt = ".meta.json"
)

// Stem derives the file stem {source}__{purpose}__{dim}. Path separators and
// characters outside [A-Za-z0-9._-] are replaced by '_', and a stem never starts
// with a dot. Keys that differ only in replaced characters share a stem.
func Stem(source, purpose string, dim int) string {
	raw := source + "__" + purpose + "__" + strconv.Itoa(dim)

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	stem := b.String()
	if strings.HasPrefix(stem, ".") {
		stem = "_" + stem[1:]
	}
	return stem
}

// Paths returns the snapshot and sidecar paths for stem.
func (s *Store) Paths(stem string) (snapshot, meta string) {
	return filepath.Join(s.dir, stem+SnapshotExt), filepath.Join(s.dir, stem+MetaExt)
}

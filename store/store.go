package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/hupe1980/annstore/blobstore"
	"github.com/hupe1980/annstore/codec"
	"github.com/hupe1980/annstore/hnsw"
	"github.com/hupe1980/annstore/internal/fs"
	"github.com/hupe1980/annstore/persistence"
	"github.com/hupe1980/annstore/resource"
)

// Options configures a Store.
type Options struct {
	// FileSystem used for writes. Defaults to the local file system.
	FileSystem fs.FileSystem

	// Codec encodes the sidecar. Defaults to codec.Default.
	Codec codec.Codec

	// Compression applied to snapshot payloads.
	Compression persistence.Compression

	// Mirror, if set, receives a copy of every saved file.
	Mirror blobstore.BlobStore

	// Resources throttles mirror transfers. May be nil.
	Resources *resource.Controller

	// OnMirrorError is called for every failed background upload.
	OnMirrorError func(stem string, err error)
}

// Store reads and writes index files in a single directory.
type Store struct {
	dir         string
	fsys        fs.FileSystem
	codec       codec.Codec
	compression persistence.Compression
	mirror      *mirror
}

// New opens dir, creating it if needed.
func New(dir string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		FileSystem: fs.Default,
		Codec:      codec.Default,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := opts.FileSystem.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dir, err)
	}

	s := &Store{
		dir:         dir,
		fsys:        opts.FileSystem,
		codec:       opts.Codec,
		compression: opts.Compression,
	}
	if opts.Mirror != nil {
		s.mirror = newMirror(opts.Mirror, opts.FileSystem, opts.Resources, opts.OnMirrorError)
	}
	return s, nil
}

// Dir returns the directory holding the index files.
func (s *Store) Dir() string { return s.dir }

// Exists reports whether both the snapshot and the sidecar of stem exist locally.
// It never loads the snapshot.
func (s *Store) Exists(stem string) (bool, error) {
	snap, meta := s.Paths(stem)
	for _, p := range []string{snap, meta} {
		ok, err := persistence.Exists(s.fsys, p)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// List returns the stems that have a local snapshot, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var stems []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, SnapshotExt) {
			continue
		}
		stems = append(stems, strings.TrimSuffix(name, SnapshotExt))
	}
	sort.Strings(stems)
	return stems, nil
}

// Save atomically writes the snapshot of g followed by its sidecar and schedules
// a mirror upload. It returns the number of bytes written locally.
func (s *Store) Save(ctx context.Context, stem string, g *hnsw.Graph, meta Meta) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	snapPath, metaPath := s.Paths(stem)

	n, err := persistence.SaveToFile(s.fsys, snapPath, s.compression, func(w io.Writer) error {
		_, err := g.WriteTo(w)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("store: save snapshot %s: %w", stem, err)
	}

	data, err := s.codec.Marshal(meta)
	if err != nil {
		return n, fmt.Errorf("store: encode sidecar %s: %w", stem, err)
	}
	m, err := persistence.WriteFileAtomic(s.fsys, metaPath, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return n, fmt.Errorf("store: save sidecar %s: %w", stem, err)
	}

	if s.mirror != nil {
		s.mirror.schedule(ctx, stem, snapPath, metaPath)
	}

	return n + m, nil
}

// Load reads the graph stored under stem. If the local snapshot is missing and a
// mirror is configured, the files are restored from the mirror first.
//
// A missing sidecar yields a nil *Meta. Undecodable files yield a
// *CorruptSnapshotError; a missing snapshot yields ErrSnapshotNotFound.
func (s *Store) Load(ctx context.Context, stem string, capacityHint int, optFns ...func(o *hnsw.Options)) (*hnsw.Graph, *Meta, error) {
	snapPath, metaPath := s.Paths(stem)

	ok, err := persistence.Exists(s.fsys, snapPath)
	if err != nil {
		return nil, nil, err
	}
	if !ok && s.mirror != nil {
		if err := s.mirror.restore(ctx, stem, snapPath, metaPath); err != nil {
			return nil, nil, err
		}
		ok, err = persistence.Exists(s.fsys, snapPath)
		if err != nil {
			return nil, nil, err
		}
	}
	if !ok {
		return nil, nil, ErrSnapshotNotFound
	}

	var g *hnsw.Graph
	err = persistence.LoadFromFile(snapPath, func(r io.Reader) error {
		var rerr error
		g, rerr = hnsw.ReadGraph(r, capacityHint, optFns...)
		return rerr
	})
	if err != nil {
		if errors.Is(err, persistence.ErrCorrupt) || errors.Is(err, hnsw.ErrCorrupt) {
			return nil, nil, &CorruptSnapshotError{Path: snapPath, Err: err}
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrSnapshotNotFound
		}
		return nil, nil, err
	}

	meta, err := s.readMeta(metaPath)
	if err != nil {
		return nil, nil, &CorruptSnapshotError{Path: metaPath, Err: err}
	}
	if meta != nil {
		if err := meta.validate(g); err != nil {
			return nil, nil, &CorruptSnapshotError{Path: metaPath, Err: err}
		}
	}

	return g, meta, nil
}

func (s *Store) readMeta(path string) (*Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var meta Meta
	if err := s.codec.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Remove deletes the files of stem locally and in the mirror. Missing files are
// not an error.
func (s *Store) Remove(ctx context.Context, stem string) error {
	snapPath, metaPath := s.Paths(stem)

	var errs []error
	for _, p := range []string{snapPath, metaPath} {
		if err := s.fsys.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}

	if s.mirror != nil {
		if err := s.mirror.remove(ctx, stem, snapPath, metaPath); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Flush waits for pending mirror uploads and returns their collected errors.
func (s *Store) Flush(ctx context.Context) error {
	if s.mirror == nil {
		return nil
	}
	return s.mirror.flush(ctx)
}

// Close flushes pending uploads.
func (s *Store) Close(ctx context.Context) error {
	return s.Flush(ctx)
}

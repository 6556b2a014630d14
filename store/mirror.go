package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/hupe1980/annstore/blobstore"
	"github.com/hupe1980/annstore/internal/fs"
	"github.com/hupe1980/annstore/persistence"
	"github.com/hupe1980/annstore/resource"
)

// mirror copies saved files to a blob store in the background. Uploads are
// sequenced per stem; an upload that has been overtaken by a newer save is skipped.
type mirror struct {
	blobs   blobstore.BlobStore
	fsys    fs.FileSystem
	rc      *resource.Controller
	onError func(stem string, err error)

	wg   sync.WaitGroup
	mu   sync.Mutex
	seq  map[string]uint64
	errs []error
}

func newMirror(blobs blobstore.BlobStore, fsys fs.FileSystem, rc *resource.Controller, onError func(string, error)) *mirror {
	return &mirror{
		blobs:   blobs,
		fsys:    fsys,
		rc:      rc,
		onError: onError,
		seq:     make(map[string]uint64),
	}
}

func (m *mirror) next(stem string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[stem]++
	return m.seq[stem]
}

func (m *mirror) current(stem string, seq uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq[stem] == seq
}

func (m *mirror) schedule(ctx context.Context, stem string, paths ...string) {
	seq := m.next(stem)
	ctx = context.WithoutCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.upload(ctx, stem, seq, paths); err != nil {
			m.fail(stem, err)
		}
	}()
}

func (m *mirror) fail(stem string, err error) {
	err = fmt.Errorf("store: mirror %s: %w", stem, err)

	m.mu.Lock()
	m.errs = append(m.errs, err)
	m.mu.Unlock()

	if m.onError != nil {
		m.onError(stem, err)
	}
}

func (m *mirror) upload(ctx context.Context, stem string, seq uint64, paths []string) error {
	if err := m.rc.AcquireBackground(ctx); err != nil {
		return err
	}
	defer m.rc.ReleaseBackground()

	for _, p := range paths {
		if !m.current(stem, seq) {
			return nil
		}
		if err := m.put(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (m *mirror) put(ctx context.Context, path string) error {
	fi, err := m.fsys.Stat(path)
	if err != nil {
		return err
	}
	size := fi.Size()

	if err := m.rc.AcquireMemory(ctx, size); err != nil {
		return err
	}
	defer m.rc.ReleaseMemory(size)

	f, err := m.fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		return err
	}

	r := resource.NewRateLimitedReader(ctx, bytes.NewReader(data), m.rc)
	return m.blobs.Put(ctx, filepath.Base(path), r, int64(len(data)))
}

// restore downloads the files of stem. A missing remote snapshot is not an error;
// the caller sees the snapshot still missing.
func (m *mirror) restore(ctx context.Context, stem, snapPath, metaPath string) error {
	for _, p := range []string{snapPath, metaPath} {
		err := m.get(ctx, p)
		if errors.Is(err, blobstore.ErrNotFound) {
			if p == snapPath {
				return nil
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("store: restore %s: %w", stem, err)
		}
	}
	return nil
}

func (m *mirror) get(ctx context.Context, path string) error {
	rc, err := m.blobs.Get(ctx, filepath.Base(path))
	if err != nil {
		return err
	}
	defer rc.Close()

	_, err = persistence.WriteFileAtomic(m.fsys, path, func(w io.Writer) error {
		_, err := io.Copy(resource.NewRateLimitedWriter(ctx, w, m.rc), rc)
		return err
	})
	return err
}

// remove invalidates pending uploads of stem, waits for in-flight ones and
// deletes the remote copies.
func (m *mirror) remove(ctx context.Context, stem string, paths ...string) error {
	m.next(stem)
	if err := m.wait(ctx); err != nil {
		return err
	}

	var errs []error
	for _, p := range paths {
		if err := m.blobs.Delete(ctx, filepath.Base(p)); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *mirror) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *mirror) flush(ctx context.Context) error {
	if err := m.wait(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	err := errors.Join(m.errs...)
	m.errs = nil
	return err
}

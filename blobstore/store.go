package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
var ErrNotFound = os.ErrNotExist

// BlobStore stores named blobs.
type BlobStore interface {
	// Put writes the blob, replacing any previous content. size may be -1 if unknown.
	Put(ctx context.Context, name string, r io.Reader, size int64) error
	// Get opens the blob for reading.
	Get(ctx context.Context, name string) (io.ReadCloser, error)
	// Exists reports whether the blob is present.
	Exists(ctx context.Context, name string) (bool, error)
	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the names with the given prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}

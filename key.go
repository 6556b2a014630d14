package annstore

import (
	"fmt"

	"github.com/hupe1980/annstore/store"
)

// IndexKey identifies one independent graph. Keys that differ in any field never
// share vectors.
type IndexKey struct {
	Source  string // embedding source, e.g. a model name
	Purpose string // task tag, e.g. RETRIEVAL_DOCUMENT
	Dim     int
}

// NewIndexKey returns a validated key.
func NewIndexKey(source, purpose string, dim int) (IndexKey, error) {
	k := IndexKey{Source: source, Purpose: purpose, Dim: dim}
	return k, k.Validate()
}

// Validate reports whether the key can name an index.
func (k IndexKey) Validate() error {
	if k.Source == "" {
		return validationError("empty source")
	}
	if k.Dim <= 0 {
		return validationError("dimension must be positive, got %d", k.Dim)
	}
	return nil
}

// Stem is the file stem of the key's persisted files.
func (k IndexKey) Stem() string { return store.Stem(k.Source, k.Purpose, k.Dim) }

func (k IndexKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.Source, k.Purpose, k.Dim)
}

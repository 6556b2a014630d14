package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLifecycle(t *testing.T, store BlobStore) {
	t.Helper()
	ctx := context.Background()

	ok, err := store.Exists(ctx, "idx/a.hnsw")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Get(ctx, "idx/a.hnsw")
	assert.ErrorIs(t, err, ErrNotFound)

	data := "hello world, this is a snapshot"
	require.NoError(t, store.Put(ctx, "idx/a.hnsw", strings.NewReader(data), int64(len(data))))
	require.NoError(t, store.Put(ctx, "idx/a.meta.json", strings.NewReader("{}"), 2))
	require.NoError(t, store.Put(ctx, "other/b.hnsw", strings.NewReader("b"), -1))

	ok, err = store.Exists(ctx, "idx/a.hnsw")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := store.Get(ctx, "idx/a.hnsw")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, data, string(got))

	require.NoError(t, store.Put(ctx, "idx/a.hnsw", strings.NewReader("v2"), 2))
	rc, err = store.Get(ctx, "idx/a.hnsw")
	require.NoError(t, err)
	got, _ = io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "v2", string(got))

	names, err := store.List(ctx, "idx/")
	require.NoError(t, err)
	assert.Equal(t, []string{"idx/a.hnsw", "idx/a.meta.json"}, names)

	require.NoError(t, store.Delete(ctx, "idx/a.hnsw"))
	require.NoError(t, store.Delete(ctx, "idx/a.hnsw"))
	ok, err = store.Exists(ctx, "idx/a.hnsw")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStoreLifecycle(t *testing.T) {
	dir := t.TempDir()
	testLifecycle(t, NewLocalStore(dir))

	_, err := os.Stat(filepath.Join(dir, "other", "b.hnsw"))
	assert.NoError(t, err)
}

func TestMemoryStoreLifecycle(t *testing.T) {
	store := NewMemoryStore()
	testLifecycle(t, store)
	assert.Equal(t, 4, store.Puts())
}

func TestLocalStoreListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "missing"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestPutHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, store := range []BlobStore{NewMemoryStore(), NewLocalStore(t.TempDir())} {
		assert.ErrorIs(t, store.Put(ctx, "x", strings.NewReader("x"), 1), context.Canceled)
	}
}

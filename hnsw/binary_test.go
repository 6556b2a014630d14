package hnsw

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/annstore/testutil"
)

func buildGraph(t *testing.T, n, dim int) (*Graph, [][]float32) {
	t.Helper()

	rng := testutil.NewRNG(99)
	vectors := rng.UnitVectors(n, dim)
	labels := make([]int64, n)
	for i := range labels {
		labels[i] = int64(i * 10)
	}

	g := newGraph(t, dim, n+10, func(o *Options) { o.EF = 64 })
	require.NoError(t, g.AddItems(labels, vectors, false))
	return g, vectors
}

func TestWriteReadRoundTrip(t *testing.T) {
	g, vectors := buildGraph(t, 200, 12)
	g.MarkDeleted(30)
	g.MarkDeleted(150)

	var buf bytes.Buffer
	n, err := g.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	loaded, err := ReadGraph(bytes.NewReader(buf.Bytes()), 0)
	require.NoError(t, err)

	assert.Equal(t, g.Dimension(), loaded.Dimension())
	assert.Equal(t, g.Capacity(), loaded.Capacity())
	assert.Equal(t, g.SlotCount(), loaded.SlotCount())
	assert.Equal(t, g.Len(), loaded.Len())
	assert.Equal(t, g.M(), loaded.M())
	assert.Equal(t, g.EFConstruction(), loaded.EFConstruction())
	assert.Equal(t, g.EF(), loaded.EF())
	assert.Equal(t, g.Labels(), loaded.Labels())
	assert.False(t, loaded.Contains(30))
	assert.False(t, loaded.Contains(150))

	for _, q := range vectors[:20] {
		wantLabels, wantDists, err := g.KNNQuery(q, 5)
		require.NoError(t, err)
		gotLabels, gotDists, err := loaded.KNNQuery(q, 5)
		require.NoError(t, err)

		assert.Equal(t, wantLabels, gotLabels)
		assert.InDeltaSlice(t, wantDists, gotDists, 1e-6)
	}
}

func TestReadGraphCapacityHint(t *testing.T) {
	g, _ := buildGraph(t, 20, 4)

	var buf bytes.Buffer
	_, err := g.WriteTo(&buf)
	require.NoError(t, err)

	loaded, err := ReadGraph(bytes.NewReader(buf.Bytes()), 500)
	require.NoError(t, err)
	assert.Equal(t, 500, loaded.Capacity())

	loaded, err = ReadGraph(bytes.NewReader(buf.Bytes()), 5)
	require.NoError(t, err)
	assert.Equal(t, g.Capacity(), loaded.Capacity())
}

func TestReadGraphAppliesOptions(t *testing.T) {
	g, _ := buildGraph(t, 20, 4)

	var buf bytes.Buffer
	_, err := g.WriteTo(&buf)
	require.NoError(t, err)

	seed := int64(1)
	loaded, err := ReadGraph(bytes.NewReader(buf.Bytes()), 0, func(o *Options) { o.RandomSeed = &seed })
	require.NoError(t, err)

	// Stored parameters win over caller options.
	assert.Equal(t, g.M(), loaded.M())
	require.NoError(t, loaded.AddItems([]int64{1000}, [][]float32{{1, 2, 3, 4}}, false))
	assert.True(t, loaded.Contains(1000))
}

func TestReadGraphEmpty(t *testing.T) {
	g := newGraph(t, 3, 8)

	var buf bytes.Buffer
	_, err := g.WriteTo(&buf)
	require.NoError(t, err)

	loaded, err := ReadGraph(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
	assert.Equal(t, 8, loaded.Capacity())

	_, _, err = loaded.KNNQuery([]float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, ErrSearchInfeasible)
}

func TestReadGraphCorrupt(t *testing.T) {
	g, _ := buildGraph(t, 30, 4)

	var buf bytes.Buffer
	_, err := g.WriteTo(&buf)
	require.NoError(t, err)
	data := buf.Bytes()

	t.Run("empty", func(t *testing.T) {
		_, err := ReadGraph(bytes.NewReader(nil), 0)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := ReadGraph(bytes.NewReader(data[:len(data)/2]), 0)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("bad magic", func(t *testing.T) {
		bad := bytes.Clone(data)
		binary.LittleEndian.PutUint32(bad, 0xdeadbeef)
		_, err := ReadGraph(bytes.NewReader(bad), 0)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("bad version", func(t *testing.T) {
		bad := bytes.Clone(data)
		binary.LittleEndian.PutUint32(bad[4:], 99)
		_, err := ReadGraph(bytes.NewReader(bad), 0)
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

package hnsw

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/annstore/metric"
	"github.com/hupe1980/annstore/testutil"
)

func seeded(seed int64) func(o *Options) {
	return func(o *Options) { o.RandomSeed = &seed }
}

func newGraph(t *testing.T, dim, capacity int, optFns ...func(o *Options)) *Graph {
	t.Helper()
	fns := append([]func(o *Options){seeded(4711), func(o *Options) { o.Capacity = capacity }}, optFns...)
	g, err := New(dim, fns...)
	require.NoError(t, err)
	return g
}

func TestNew(t *testing.T) {
	g, err := New(16, func(o *Options) {
		o.M = 8
		o.EF = 50
		o.EFConstruction = 100
		o.Capacity = 10
	})
	require.NoError(t, err)

	assert.Equal(t, 8, g.M())
	assert.Equal(t, 8, g.mmax)
	assert.Equal(t, 16, g.mmax0)
	assert.Equal(t, 50, g.EF())
	assert.Equal(t, 100, g.EFConstruction())
	assert.Equal(t, 10, g.Capacity())
	assert.Equal(t, 0, g.Len())

	g, err = New(4, func(o *Options) {
		o.M = 1
		o.Capacity = 0
	})
	require.NoError(t, err)
	assert.Equal(t, 2, g.M())
	assert.Equal(t, 1, g.Capacity())

	_, err = New(0)
	assert.Error(t, err)
}

func TestQueryBasisVectors(t *testing.T) {
	g := newGraph(t, 4, 3)

	err := g.AddItems([]int64{1, 2, 3}, [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())

	labels, dists, err := g.KNNQuery([]float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), labels[0])
	assert.InDelta(t, 0, dists[0], 1e-6)
	assert.Contains(t, []int64{2, 3}, labels[1])
	assert.InDelta(t, 1, dists[1], 1e-6)
}

func TestValidateInsertSearch(t *testing.T) {
	tests := []struct {
		Size      int
		Dim       int
		M         int
		EF        int
		Heuristic bool
		K         int
		Recall    float64
	}{
		{Size: 1000, Dim: 16, M: 16, EF: 100, Heuristic: true, K: 10, Recall: 0.9},
		{Size: 1000, Dim: 16, M: 16, EF: 100, Heuristic: false, K: 10, Recall: 0.85},
		{Size: 500, Dim: 64, M: 24, EF: 128, Heuristic: true, K: 5, Recall: 0.9},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("Size=%d/Dim=%d/M=%d/Heuristic=%v", tc.Size, tc.Dim, tc.M, tc.Heuristic), func(t *testing.T) {
			rng := testutil.NewRNG(42)
			vectors := rng.UnitVectors(tc.Size, tc.Dim)
			labels := testutil.Labels(0, tc.Size)

			g := newGraph(t, tc.Dim, tc.Size, func(o *Options) {
				o.M = tc.M
				o.EF = tc.EF
				o.Heuristic = tc.Heuristic
			})
			require.NoError(t, g.AddItems(labels, vectors, false))

			queries := rng.UnitVectors(50, tc.Dim)
			var total float64
			for _, q := range queries {
				got, dists, err := g.KNNQuery(q, tc.K)
				require.NoError(t, err)

				approx := make([]testutil.SearchResult, len(got))
				for i := range got {
					approx[i] = testutil.SearchResult{Label: got[i], Distance: dists[i]}
				}
				total += testutil.ComputeRecall(testutil.ExactTopK(q, labels, vectors, tc.K), approx)
			}

			assert.GreaterOrEqual(t, total/float64(len(queries)), tc.Recall)
		})
	}
}

func TestAddItemsCapacityIsAllOrNothing(t *testing.T) {
	g := newGraph(t, 2, 2)

	err := g.AddItems([]int64{1, 2, 3}, [][]float32{{1, 0}, {0, 1}, {1, 1}}, false)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 0, g.Len())
	assert.Equal(t, 0, g.SlotCount())

	require.NoError(t, g.Resize(3))
	require.NoError(t, g.AddItems([]int64{1, 2, 3}, [][]float32{{1, 0}, {0, 1}, {1, 1}}, false))
	assert.Equal(t, 3, g.Len())
}

func TestAddItemsValidation(t *testing.T) {
	g := newGraph(t, 2, 10)

	var dm *ErrDimensionMismatch
	err := g.AddItems([]int64{1, 2}, [][]float32{{1, 0}, {1, 0, 0}}, false)
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 2, dm.Expected)
	assert.Equal(t, 3, dm.Actual)

	assert.ErrorIs(t, g.AddItems([]int64{-1}, [][]float32{{1, 0}}, false), ErrInvalidLabel)
	assert.ErrorIs(t, g.AddItems([]int64{4, 4}, [][]float32{{1, 0}, {0, 1}}, false), ErrDuplicateLabel)
	assert.Equal(t, 0, g.SlotCount())

	require.NoError(t, g.AddItems([]int64{1}, [][]float32{{1, 0}}, false))
	assert.ErrorIs(t, g.AddItems([]int64{1}, [][]float32{{0, 1}}, true), ErrLabelExists)
}

func TestMarkDeletedIsIdempotent(t *testing.T) {
	g := newGraph(t, 2, 4)
	require.NoError(t, g.AddItems([]int64{1, 2}, [][]float32{{1, 0}, {0, 1}}, false))

	assert.True(t, g.MarkDeleted(1))
	assert.False(t, g.MarkDeleted(1))
	assert.False(t, g.MarkDeleted(99))

	assert.False(t, g.Contains(1))
	assert.True(t, g.Contains(2))
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, 1, g.DeletedCount())
	assert.Equal(t, 2, g.SlotCount())

	labels, _, err := g.KNNQuery([]float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, labels)
}

func TestReviveDeletedLabelInPlace(t *testing.T) {
	g := newGraph(t, 4, 3)
	require.NoError(t, g.AddItems([]int64{1, 2, 3}, [][]float32{
		{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0},
	}, false))

	require.True(t, g.MarkDeleted(1))
	require.NoError(t, g.AddItems([]int64{1}, [][]float32{{0, 0, 0, 2}}, true))

	assert.Equal(t, 3, g.SlotCount())
	assert.Equal(t, 3, g.Len())

	v, ok := g.Lookup(1)
	require.True(t, ok)
	assert.InDeltaSlice(t, []float32{0, 0, 0, 1}, v, 1e-6)

	labels, dists, err := g.KNNQuery([]float32{0, 0, 0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), labels[0])
	assert.InDelta(t, 0, dists[0], 1e-6)

	labels, _, err = g.KNNQuery([]float32{0, 1, 0.1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 1}, labels)
}

func TestReplaceDeletedReusesSlots(t *testing.T) {
	g := newGraph(t, 2, 2)
	require.NoError(t, g.AddItems([]int64{1, 2}, [][]float32{{1, 0}, {0, 1}}, false))
	require.True(t, g.MarkDeleted(1))

	assert.ErrorIs(t, g.AddItems([]int64{3}, [][]float32{{1, 1}}, false), ErrCapacityExceeded)
	require.NoError(t, g.AddItems([]int64{3}, [][]float32{{1, 1}}, true))

	assert.Equal(t, 2, g.SlotCount())
	assert.Equal(t, 0, g.DeletedCount())
	assert.False(t, g.Contains(1))
	assert.True(t, g.Contains(3))
	assert.ElementsMatch(t, []int64{3, 2}, g.Labels())
}

func TestReviveAndReplaceInOneBatch(t *testing.T) {
	g := newGraph(t, 2, 3)
	require.NoError(t, g.AddItems([]int64{1, 2, 3}, [][]float32{{1, 0}, {0, 1}, {1, 1}}, false))
	g.MarkDeleted(1)
	g.MarkDeleted(2)

	// 7 must not steal the slot of 2, which is revived in the same batch.
	require.NoError(t, g.AddItems([]int64{7, 2}, [][]float32{{-1, 0}, {0, -1}}, true))

	assert.Equal(t, 3, g.SlotCount())
	assert.ElementsMatch(t, []int64{7, 2, 3}, g.Labels())
}

func TestResize(t *testing.T) {
	g := newGraph(t, 2, 2)
	require.NoError(t, g.AddItems([]int64{1, 2}, [][]float32{{1, 0}, {0, 1}}, false))

	var tooSmall *ErrCapacityTooSmall
	require.ErrorAs(t, g.Resize(1), &tooSmall)
	assert.Equal(t, 2, tooSmall.InUse)

	require.NoError(t, g.Resize(10))
	assert.Equal(t, 10, g.Capacity())
	assert.ElementsMatch(t, []int64{1, 2}, g.Labels())
}

func TestKNNQueryInfeasible(t *testing.T) {
	g := newGraph(t, 2, 4)

	labels, dists, err := g.KNNQuery([]float32{1, 0}, 2)
	assert.ErrorIs(t, err, ErrSearchInfeasible)
	assert.Equal(t, []int64{NoLabel, NoLabel}, labels)
	assert.Len(t, dists, 2)

	require.NoError(t, g.AddItems([]int64{1, 2}, [][]float32{{1, 0}, {0, 1}}, false))
	labels, _, err = g.KNNQuery([]float32{1, 0}, 4)
	assert.ErrorIs(t, err, ErrSearchInfeasible)
	assert.Equal(t, []int64{1, 2, NoLabel, NoLabel}, labels)
}

func TestKNNQueryValidation(t *testing.T) {
	g := newGraph(t, 2, 4)

	_, _, err := g.KNNQuery([]float32{1, 0, 0}, 1)
	var dm *ErrDimensionMismatch
	assert.ErrorAs(t, err, &dm)

	_, _, err = g.KNNQuery([]float32{1, 0}, 0)
	assert.ErrorIs(t, err, ErrInvalidK)
}

func TestStats(t *testing.T) {
	rng := testutil.NewRNG(7)
	g := newGraph(t, 8, 200)
	vectors := rng.UnitVectors(100, 8)
	labels := testutil.Labels(0, len(vectors))
	require.NoError(t, g.AddItems(labels, vectors, false))
	g.MarkDeleted(5)

	s := g.Stats()
	assert.Equal(t, 100, s.Slots)
	assert.Equal(t, 99, s.Live)
	assert.Equal(t, 1, s.Deleted)
	assert.Equal(t, 200, s.Capacity)

	total := 0
	for _, n := range s.NodesPerLevel {
		total += n
	}
	assert.Equal(t, 100, total)
	assert.Greater(t, s.AvgConnections[0], 0.0)
}

func TestInsertedVectorsAreNormalized(t *testing.T) {
	g := newGraph(t, 2, 1)
	require.NoError(t, g.AddItems([]int64{1}, [][]float32{{3, 4}}, false))

	v, ok := g.Lookup(1)
	require.True(t, ok)
	assert.InDelta(t, 1, metric.Magnitude(v), 1e-6)
}

package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/annstore/metric"
)

func TestLabels(t *testing.T) {
	assert.Equal(t, []int64{5, 6, 7}, Labels(5, 3))
	assert.Empty(t, Labels(0, 0))
}

func TestRNGIsReproducible(t *testing.T) {
	assert.Equal(t, NewRNG(7).UnitVectors(3, 4), NewRNG(7).UnitVectors(3, 4))
}

func TestUnitVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UnitVectors(8, 32)

	require.Len(t, v, 8)
	for _, vec := range v {
		assert.InDelta(t, 1.0, metric.Magnitude(vec), 1e-5)
	}
}

func TestExactTopK(t *testing.T) {
	labels := []int64{10, 20, 30}
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 1}}

	got := ExactTopK([]float32{1, 0}, labels, vectors, 2)

	require.Len(t, got, 2)
	assert.Equal(t, int64(10), got[0].Label)
	assert.Equal(t, int64(30), got[1].Label)
}

func TestComputeRecall(t *testing.T) {
	truth := []SearchResult{{Label: 1}, {Label: 2}, {Label: 3}, {Label: 4}}
	approx := []SearchResult{{Label: 1}, {Label: 3}, {Label: 9}, {Label: 4}}

	assert.InDelta(t, 0.75, ComputeRecall(truth, approx), 1e-9)
	assert.Equal(t, 1.0, ComputeRecall(nil, nil))
	assert.Equal(t, 0.0, ComputeRecall(truth, nil))
}

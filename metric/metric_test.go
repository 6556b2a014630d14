package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	n := Normalize(v)

	assert.InDelta(t, 0.6, n[0], 1e-6)
	assert.InDelta(t, 0.8, n[1], 1e-6)
	assert.Equal(t, []float32{3, 4}, v, "input must not be modified")

	zero := Normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, zero)
}

func TestCosineDistance(t *testing.T) {
	a := Normalize([]float32{1, 0, 0, 0})
	b := Normalize([]float32{0, 1, 0, 0})
	c := Normalize([]float32{-1, 0, 0, 0})

	assert.InDelta(t, 0, CosineDistance(a, a), 1e-6)
	assert.InDelta(t, 1, CosineDistance(a, b), 1e-6)
	assert.InDelta(t, 2, CosineDistance(a, c), 1e-6)
}

func TestCosineSimilarity(t *testing.T) {
	s, err := CosineSimilarity([]float32{1, 1}, []float32{2, 2})
	require.NoError(t, err)
	assert.InDelta(t, 1, s, 1e-6)

	_, err = CosineSimilarity([]float32{1}, []float32{1, 2})
	assert.ErrorIs(t, err, ErrSizeMismatch)

	s, err = CosineSimilarity([]float32{0, 0}, []float32{1, 2})
	require.NoError(t, err)
	assert.Equal(t, float32(0), s)
}

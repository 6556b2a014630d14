// Package metric implements the vector distance used by the graph engine.
package metric

import (
	"errors"
	"math"

	"github.com/viterin/vek/vek32"
)

// Space names the distance space persisted in index metadata.
type Space string

// SpaceCosine is the only space supported: distance = 1 - cos(a, b), in [0, 2].
const SpaceCosine Space = "cosine"

// ErrSizeMismatch is returned when two vectors differ in length.
var ErrSizeMismatch = errors.New("vector sizes do not match")

// Magnitude calculates the L2 norm of v.
func Magnitude(v []float32) float32 {
	return float32(math.Sqrt(float64(vek32.Dot(v, v))))
}

// Normalize returns an L2-normalized copy of v.
// A zero vector is returned as a zero copy.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	m := Magnitude(out)
	if m == 0 {
		return out
	}
	vek32.DivNumber_Inplace(out, m)
	return out
}

// CosineDistance returns 1 - dot(a, b) for vectors that are already normalized.
func CosineDistance(a, b []float32) float32 {
	d := 1 - vek32.Dot(a, b)
	if d < 0 {
		return 0
	}
	return d
}

// CosineSimilarity calculates the cosine similarity between two arbitrary vectors.
func CosineSimilarity(v1, v2 []float32) (float32, error) {
	if len(v1) != len(v2) {
		return 0, ErrSizeMismatch
	}
	ma, mb := Magnitude(v1), Magnitude(v2)
	if ma == 0 || mb == 0 {
		return 0, nil
	}
	return vek32.Dot(v1, v2) / (ma * mb), nil
}

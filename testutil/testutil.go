package testutil

import (
	"cmp"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/annstore/metric"
)

// SearchResult is one labelled hit with its cosine distance.
type SearchResult struct {
	Label    int64
	Distance float32
}

// RNG is a seeded, mutex-guarded random source for reproducible tests.
type RNG struct {
	mu   sync.Mutex
	rand *rand.Rand
}

// NewRNG returns an RNG seeded with seed.
func NewRNG(seed int64) *RNG {
	return &RNG{rand: rand.New(rand.NewSource(seed))}
}

// UnitVectors returns num random points on the unit hypersphere of the given dimension.
// Components are Gaussian before normalization, so directions are uniform.
func (r *RNG) UnitVectors(num, dim int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	backing := make([]float32, num*dim)
	vectors := make([][]float32, num)
	for i := range vectors {
		v := backing[i*dim : (i+1)*dim : (i+1)*dim]
		var norm float64
		for j := range v {
			x := r.rand.NormFloat64()
			v[j] = float32(x)
			norm += x * x
		}
		if norm > 0 {
			inv := float32(1 / math.Sqrt(norm))
			for j := range v {
				v[j] *= inv
			}
		}
		vectors[i] = v
	}
	return vectors
}

// Labels returns n consecutive labels starting at first.
func Labels(first int64, n int) []int64 {
	labels := make([]int64, n)
	for i := range labels {
		labels[i] = first + int64(i)
	}
	return labels
}

// ExactTopK ranks every vector against query by cosine distance and returns the
// first k, ties broken by label.
func ExactTopK(query []float32, labels []int64, vectors [][]float32, k int) []SearchResult {
	q := metric.Normalize(query)

	results := make([]SearchResult, len(vectors))
	for i, v := range vectors {
		results[i] = SearchResult{Label: labels[i], Distance: metric.CosineDistance(q, metric.Normalize(v))}
	}

	slices.SortFunc(results, func(a, b SearchResult) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})

	return results[:min(k, len(results))]
}

// ComputeRecall is the fraction of the first min(len) ground-truth labels that
// appear among the approximate results.
func ComputeRecall(groundTruth, approximate []SearchResult) float64 {
	if len(groundTruth) == 0 && len(approximate) == 0 {
		return 1
	}
	k := min(len(approximate), len(groundTruth))
	if k == 0 {
		return 0
	}

	truth := make(map[int64]struct{}, k)
	for _, r := range groundTruth[:k] {
		truth[r.Label] = struct{}{}
	}

	hits := 0
	for _, r := range approximate[:k] {
		if _, ok := truth[r.Label]; ok {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

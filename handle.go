package annstore

import (
	"errors"
	"math"
	"sync"

	"github.com/hupe1980/annstore/hnsw"
)

// growthSlack is the additive floor of a multiplicative resize.
const growthSlack = 64

// handle owns the in-memory graph of one key. Every operation, queries included,
// holds mu because the search breadth is shared state of the graph.
type handle struct {
	mu     sync.Mutex
	key    IndexKey
	stem   string
	graph  *hnsw.Graph // nil until initialized
	params HNSWParams

	// dropped is set when the handle left the registry. Callers that waited
	// on mu must resolve the key again.
	dropped bool
}

func newGraph(dim, capacity int, p HNSWParams, seed *int64) (*hnsw.Graph, error) {
	return hnsw.New(dim, func(o *hnsw.Options) {
		o.Capacity = max(capacity, 1)
		o.M = p.M
		o.EFConstruction = p.EFConstruction
		o.EF = p.EF
		o.Heuristic = true
		o.RandomSeed = seed
	})
}

// grow raises the capacity to max(slots+minAdditional, ceil(capacity*1.5)+slack).
func (h *handle) grow(minAdditional int) (from, to int, err error) {
	from = h.graph.Capacity()
	to = max(h.graph.SlotCount()+minAdditional, int(math.Ceil(float64(from)*1.5))+growthSlack)
	return from, to, h.graph.Resize(to)
}

// insertOrReplace tombstones every live label of the batch and inserts the batch,
// reusing tombstoned slots. labels must be unique and vectors valid. A capacity
// shortfall grows the graph and retries the entire batch once.
func (h *handle) insertOrReplace(labels []int64, vectors [][]float32, onGrow func(from, to int)) error {
	need := 0
	for _, l := range labels {
		if !h.graph.Contains(l) {
			need++
		}
	}
	if h.graph.SlotCount()+need > h.graph.Capacity() {
		from, to, err := h.grow(need)
		if err != nil {
			return err
		}
		onGrow(from, to)
	}

	for _, l := range labels {
		h.graph.MarkDeleted(l)
	}

	err := h.graph.AddItems(labels, vectors, true)
	if errors.Is(err, hnsw.ErrCapacityExceeded) {
		from, to, gerr := h.grow(len(labels))
		if gerr != nil {
			return gerr
		}
		onGrow(from, to)
		err = h.graph.AddItems(labels, vectors, true)
	}
	return err
}

// queryBreadth returns the search breadth for k and its retry value.
func queryBreadth(k int) (first, retry int) {
	return max(64, min(1024, 4*k)), max(128, min(2048, 8*k))
}

// query returns up to k results ordered by ascending distance. k is clamped to
// the live count; an empty graph is never searched. retried reports whether the
// wider breadth was used.
func (h *handle) query(q []float32, k int) (results []Result, retried bool, err error) {
	live := h.graph.Len()
	if live == 0 {
		return []Result{}, false, nil
	}
	k = min(k, live)

	defer h.graph.SetEF(h.params.EF)

	first, retry := queryBreadth(k)
	h.graph.SetEF(first)
	labels, dists, err := h.graph.KNNQuery(q, k)
	if errors.Is(err, hnsw.ErrSearchInfeasible) {
		retried = true
		h.graph.SetEF(retry)
		labels, dists, err = h.graph.KNNQuery(q, k)
	}
	if err != nil && !errors.Is(err, hnsw.ErrSearchInfeasible) {
		return nil, retried, err
	}

	results = make([]Result, 0, len(labels))
	for i, l := range labels {
		if l < 0 {
			continue
		}
		results = append(results, Result{Label: l, Distance: dists[i]})
	}
	return results, retried, nil
}

func (h *handle) stats() IndexStats {
	s := h.graph.Stats()
	return IndexStats{
		Key:       h.key,
		Count:     s.Live,
		Slots:     s.Slots,
		Deleted:   s.Deleted,
		Capacity:  s.Capacity,
		Params:    h.params,
		MaxLevel:  s.MaxLevel,
		Dimension: s.Dimension,
	}
}

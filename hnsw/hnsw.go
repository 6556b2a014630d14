// Package hnsw implements the Hierarchical Navigable Small World graph for approximate
// nearest neighbor search in cosine space.
//
// Elements are addressed by caller-supplied int64 labels. A graph is created with a
// fixed capacity of slots; deleting a label only tombstones its slot, which a later
// insert may reuse. Capacity grows only through Resize.
//
// A Graph is not safe for concurrent use.
package hnsw

import (
	"cmp"
	"math"
	"math/rand"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/annstore/internal/queue"
	"github.com/hupe1980/annstore/metric"
)

const (
	// NoLabel marks a result row for which no neighbour was found.
	NoLabel int64 = -1

	// DefaultM is the default number of bidirectional links.
	DefaultM = 16

	// DefaultEFConstruction is the default candidate list size while building.
	DefaultEFConstruction = 200

	// DefaultEF is the default candidate list size while querying.
	DefaultEF = 10

	minimumM = 2
)

// Options represents the options for configuring a Graph.
type Options struct {
	// Capacity is the number of slots allocated up front. Values below 1 are raised to 1.
	Capacity int

	// M specifies the number of established connections for every new element during construction.
	// The range M=12-48 is ok for most use cases.
	M int

	// EFConstruction is the size of the dynamic candidate list while inserting.
	EFConstruction int

	// EF is the size of the dynamic candidate list while querying.
	EF int

	// Heuristic selects neighbours with the diversity heuristic instead of plain k-NN.
	Heuristic bool

	// RandomSeed fixes level generation; nil seeds from the clock.
	RandomSeed *int64
}

// DefaultOptions are used for fields left at their zero value.
var DefaultOptions = Options{
	Capacity:       1,
	M:              DefaultM,
	EFConstruction: DefaultEFConstruction,
	EF:             DefaultEF,
	Heuristic:      true,
}

type node struct {
	label       int64
	level       int
	vector      []float32 // normalized
	connections [][]uint32
}

// Graph is a label-addressable HNSW graph.
type Graph struct {
	dim      int
	capacity int

	m              int
	mmax           int // max connections on layers > 0
	mmax0          int // max connections on layer 0
	ml             float64
	efConstruction int
	ef             int
	heuristic      bool

	entryPoint uint32
	hasEntry   bool
	maxLevel   int

	nodes   []*node
	labels  map[int64]uint32 // every occupied slot, tombstoned or not
	deleted *roaring.Bitmap

	rng *rand.Rand
}

// New creates an empty graph for vectors of the given dimension.
func New(dim int, optFns ...func(o *Options)) (*Graph, error) {
	if dim <= 0 {
		return nil, &ErrDimensionMismatch{Expected: 1, Actual: dim}
	}

	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Capacity < 1 {
		opts.Capacity = 1
	}
	if opts.M < minimumM {
		// M == 1 would make the level multiplier 1/log(1).
		opts.M = minimumM
	}
	if opts.EFConstruction < opts.M {
		opts.EFConstruction = opts.M
	}
	if opts.EF < 1 {
		opts.EF = DefaultEF
	}

	seed := time.Now().UnixNano()
	if opts.RandomSeed != nil {
		seed = *opts.RandomSeed
	}

	g := &Graph{
		dim:            dim,
		capacity:       opts.Capacity,
		efConstruction: opts.EFConstruction,
		ef:             opts.EF,
		heuristic:      opts.Heuristic,
		nodes:          make([]*node, 0, min(opts.Capacity, 1<<16)),
		labels:         make(map[int64]uint32),
		deleted:        roaring.New(),
		rng:            rand.New(rand.NewSource(seed)), // nolint gosec
	}
	g.setM(opts.M)

	return g, nil
}

func (g *Graph) setM(m int) {
	g.m = m
	g.mmax = m
	g.mmax0 = 2 * m
	g.ml = 1 / math.Log(float64(m))
}

// Dimension returns the vector length accepted by the graph.
func (g *Graph) Dimension() int { return g.dim }

// Capacity returns the number of allocated slots.
func (g *Graph) Capacity() int { return g.capacity }

// SlotCount returns the number of occupied slots, tombstoned ones included.
func (g *Graph) SlotCount() int { return len(g.nodes) }

// Len returns the number of live (not deleted) elements.
func (g *Graph) Len() int { return len(g.nodes) - int(g.deleted.GetCardinality()) }

// DeletedCount returns the number of tombstoned slots.
func (g *Graph) DeletedCount() int { return int(g.deleted.GetCardinality()) }

// M returns the neighbour fan-out.
func (g *Graph) M() int { return g.m }

// EFConstruction returns the construction search breadth.
func (g *Graph) EFConstruction() int { return g.efConstruction }

// EF returns the query search breadth.
func (g *Graph) EF() int { return g.ef }

// SetEF sets the query search breadth.
func (g *Graph) SetEF(ef int) {
	if ef < 1 {
		ef = 1
	}
	g.ef = ef
}

// Contains reports whether label is live in the graph.
func (g *Graph) Contains(label int64) bool {
	slot, ok := g.labels[label]
	return ok && !g.deleted.Contains(slot)
}

// Lookup returns a copy of the normalized vector stored for a live label.
func (g *Graph) Lookup(label int64) ([]float32, bool) {
	if !g.Contains(label) {
		return nil, false
	}
	v := g.nodes[g.labels[label]].vector
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Labels returns the live labels in slot order.
func (g *Graph) Labels() []int64 {
	out := make([]int64, 0, g.Len())
	for i, n := range g.nodes {
		if !g.deleted.Contains(uint32(i)) {
			out = append(out, n.label)
		}
	}
	return out
}

// MarkDeleted tombstones label. It reports whether a live element was deleted;
// deleting an absent or already deleted label is a no-op.
func (g *Graph) MarkDeleted(label int64) bool {
	slot, ok := g.labels[label]
	if !ok || g.deleted.Contains(slot) {
		return false
	}
	g.deleted.Add(slot)
	return true
}

// Resize changes the capacity. Existing elements, labels and tombstones are kept.
func (g *Graph) Resize(capacity int) error {
	if capacity < len(g.nodes) {
		return &ErrCapacityTooSmall{Requested: capacity, InUse: len(g.nodes)}
	}
	g.capacity = capacity
	return nil
}

// AddItems inserts the batch. A label that is tombstoned in the graph is revived in its
// own slot; with replaceDeleted, other new labels reuse tombstoned slots before taking
// fresh ones. The batch is validated as a whole first: on any error nothing is inserted.
func (g *Graph) AddItems(labels []int64, vectors [][]float32, replaceDeleted bool) error {
	if len(labels) != len(vectors) {
		return &ErrDimensionMismatch{Expected: len(labels), Actual: len(vectors)}
	}

	seen := make(map[int64]struct{}, len(labels))
	revived := 0
	for i, label := range labels {
		if label < 0 {
			return ErrInvalidLabel
		}
		if len(vectors[i]) != g.dim {
			return &ErrDimensionMismatch{Expected: g.dim, Actual: len(vectors[i])}
		}
		if _, dup := seen[label]; dup {
			return ErrDuplicateLabel
		}
		seen[label] = struct{}{}

		if slot, ok := g.labels[label]; ok {
			if !g.deleted.Contains(slot) {
				return ErrLabelExists
			}
			revived++
		}
	}

	fresh := len(labels) - revived
	if replaceDeleted {
		fresh -= g.DeletedCount() - revived
	}
	if fresh > 0 && len(g.nodes)+fresh > g.capacity {
		return ErrCapacityExceeded
	}

	// Revive tombstoned labels first so their slots are not handed to other labels.
	for i, label := range labels {
		if _, ok := g.labels[label]; ok {
			g.addOne(label, vectors[i], replaceDeleted)
		}
	}
	for i, label := range labels {
		if _, ok := g.labels[label]; !ok {
			g.addOne(label, vectors[i], replaceDeleted)
		}
	}
	return nil
}

func (g *Graph) addOne(label int64, v []float32, replaceDeleted bool) {
	vec := metric.Normalize(v)

	if slot, ok := g.labels[label]; ok {
		g.deleted.Remove(slot)
		g.relink(slot, vec)
		return
	}

	if replaceDeleted {
		if slot, ok := g.takeDeleted(); ok {
			delete(g.labels, g.nodes[slot].label)
			g.nodes[slot].label = label
			g.labels[label] = slot
			g.relink(slot, vec)
			return
		}
	}

	g.insert(label, vec)
}

// takeDeleted pops the lowest tombstoned slot.
func (g *Graph) takeDeleted() (uint32, bool) {
	if g.deleted.IsEmpty() {
		return 0, false
	}
	slot := g.deleted.Minimum()
	g.deleted.Remove(slot)
	return slot, true
}

func (g *Graph) randomLevel() int {
	return int(math.Floor(-math.Log(1-g.rng.Float64()) * g.ml))
}

func (g *Graph) insert(label int64, vec []float32) {
	level := g.randomLevel()
	id := uint32(len(g.nodes))

	n := &node{
		label:       label,
		level:       level,
		vector:      vec,
		connections: make([][]uint32, level+1),
	}
	g.nodes = append(g.nodes, n)
	g.labels[label] = id

	if !g.hasEntry {
		g.entryPoint = id
		g.maxLevel = level
		g.hasEntry = true
		return
	}

	g.connect(id)

	if level > g.maxLevel {
		g.entryPoint = id
		g.maxLevel = level
	}
}

// relink gives an occupied slot a new vector and recomputes its outgoing links.
// Incoming links are kept so that no other node loses reachability; the slot keeps
// its level.
func (g *Graph) relink(id uint32, vec []float32) {
	n := g.nodes[id]
	n.vector = vec

	if len(g.nodes) == 1 {
		for l := range n.connections {
			n.connections[l] = nil
		}
		return
	}

	g.connect(id)
}

// connect links node id, already stored in g.nodes, into every layer up to its level.
func (g *Graph) connect(id uint32) {
	n := g.nodes[id]
	q := n.vector

	curr := g.entryPoint
	currDist := g.distance(q, curr)
	for level := g.maxLevel; level > n.level; level-- {
		curr, currDist = g.greedy(q, curr, currDist, level)
	}

	entry := []queue.Item{{Node: curr, Distance: currDist}}
	newConns := make([][]uint32, n.level+1)

	for level := min(n.level, g.maxLevel); level >= 0; level-- {
		res := g.searchLayer(q, entry, g.efConstruction, level, func(s uint32) bool { return s != id })
		candidates := res.Drain()
		if len(candidates) > 0 {
			entry = candidates
		}
		newConns[level] = g.selectNeighbours(candidates, g.m)
	}

	n.connections = newConns
	for level := len(newConns) - 1; level >= 0; level-- {
		for _, nb := range newConns[level] {
			g.link(nb, id, level)
		}
	}
}

// greedy walks layer level towards q and returns the closest node found.
func (g *Graph) greedy(q []float32, curr uint32, currDist float32, level int) (uint32, float32) {
	for changed := true; changed; {
		changed = false
		conns := g.nodes[curr].connections
		if level >= len(conns) {
			return curr, currDist
		}
		for _, nb := range conns[level] {
			if d := g.distance(q, nb); d < currDist {
				curr, currDist = nb, d
				changed = true
			}
		}
	}
	return curr, currDist
}

// searchLayer returns up to ef accepted nodes closest to q as a max-heap.
// Rejected nodes are still traversed.
func (g *Graph) searchLayer(q []float32, entry []queue.Item, ef int, level int, accept func(uint32) bool) *queue.PriorityQueue {
	visited := bitset.New(uint(len(g.nodes)))
	candidates := queue.NewMin(ef)
	results := queue.NewMax(ef + 1)

	for _, ep := range entry {
		if visited.Test(uint(ep.Node)) {
			continue
		}
		visited.Set(uint(ep.Node))
		candidates.Push(ep)
		if accept == nil || accept(ep.Node) {
			results.Push(ep)
			if results.Len() > ef {
				results.Pop()
			}
		}
	}

	for candidates.Len() > 0 {
		c, _ := candidates.Pop()
		if results.Len() >= ef {
			if top, _ := results.Top(); c.Distance > top.Distance {
				break
			}
		}

		conns := g.nodes[c.Node].connections
		if level >= len(conns) {
			continue
		}

		for _, nb := range conns[level] {
			if visited.Test(uint(nb)) {
				continue
			}
			visited.Set(uint(nb))

			d := g.distance(q, nb)
			if results.Len() >= ef {
				if top, _ := results.Top(); d >= top.Distance {
					continue
				}
			}

			item := queue.Item{Node: nb, Distance: d}
			candidates.Push(item)
			if accept == nil || accept(nb) {
				results.Push(item)
				if results.Len() > ef {
					results.Pop()
				}
			}
		}
	}

	return results
}

// selectNeighbours picks up to m nodes from candidates sorted by ascending distance.
func (g *Graph) selectNeighbours(candidates []queue.Item, m int) []uint32 {
	if len(candidates) <= m || !g.heuristic {
		out := make([]uint32, 0, min(m, len(candidates)))
		for _, c := range candidates {
			if len(out) == m {
				break
			}
			out = append(out, c.Node)
		}
		return out
	}

	selected := make([]uint32, 0, m)
	pruned := make([]uint32, 0, len(candidates))

	for _, c := range candidates {
		if len(selected) >= m {
			break
		}
		keep := true
		for _, s := range selected {
			if metric.CosineDistance(g.nodes[s].vector, g.nodes[c.Node].vector) < c.Distance {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c.Node)
		} else {
			pruned = append(pruned, c.Node)
		}
	}

	// Keep pruned connections to fill up to m.
	for _, p := range pruned {
		if len(selected) >= m {
			break
		}
		selected = append(selected, p)
	}

	return selected
}

// link adds the edge first -> second on level, shrinking first's list when it overflows.
func (g *Graph) link(first, second uint32, level int) {
	n := g.nodes[first]
	if level >= len(n.connections) {
		return
	}

	for _, c := range n.connections[level] {
		if c == second {
			return
		}
	}

	maxConnections := g.mmax
	if level == 0 {
		maxConnections = g.mmax0
	}

	conns := append(n.connections[level], second)
	if len(conns) <= maxConnections {
		n.connections[level] = conns
		return
	}

	pq := queue.NewMin(len(conns))
	for _, c := range conns {
		pq.Push(queue.Item{Node: c, Distance: metric.CosineDistance(n.vector, g.nodes[c].vector)})
	}
	n.connections[level] = g.selectNeighbours(pq.Drain(), maxConnections)
}

func (g *Graph) distance(q []float32, id uint32) float32 {
	return metric.CosineDistance(q, g.nodes[id].vector)
}

// KNNQuery returns exactly k labels ordered by distance, then label.
// Rows without a neighbour hold NoLabel and +Inf; in that case ErrSearchInfeasible
// is returned alongside the partial result. The search breadth is max(EF, k).
func (g *Graph) KNNQuery(q []float32, k int) ([]int64, []float32, error) {
	if len(q) != g.dim {
		return nil, nil, &ErrDimensionMismatch{Expected: g.dim, Actual: len(q)}
	}
	if k <= 0 {
		return nil, nil, ErrInvalidK
	}

	labels := make([]int64, k)
	distances := make([]float32, k)
	for i := range labels {
		labels[i] = NoLabel
		distances[i] = float32(math.Inf(1))
	}

	if !g.hasEntry || g.Len() == 0 {
		return labels, distances, ErrSearchInfeasible
	}

	qn := metric.Normalize(q)

	curr := g.entryPoint
	currDist := g.distance(qn, curr)
	for level := g.maxLevel; level > 0; level-- {
		curr, currDist = g.greedy(qn, curr, currDist, level)
	}

	accept := func(s uint32) bool { return !g.deleted.Contains(s) }
	if g.deleted.IsEmpty() {
		accept = nil
	}

	res := g.searchLayer(qn, []queue.Item{{Node: curr, Distance: currDist}}, max(g.ef, k), 0, accept)
	found := res.Drain()
	slices.SortStableFunc(found, func(a, b queue.Item) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(g.nodes[a.Node].label, g.nodes[b.Node].label)
	})

	n := min(k, len(found))
	for i := 0; i < n; i++ {
		labels[i] = g.nodes[found[i].Node].label
		distances[i] = found[i].Distance
	}

	if n < k {
		return labels, distances, ErrSearchInfeasible
	}
	return labels, distances, nil
}

package annstore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hupe1980/annstore/hnsw"
	"github.com/hupe1980/annstore/internal/registry"
	"github.com/hupe1980/annstore/metric"
	"github.com/hupe1980/annstore/store"
)

// Item is one labelled vector.
type Item struct {
	Label  int64     `json:"label"`
	Vector []float32 `json:"vector"`
}

// Result is one search hit.
type Result struct {
	Label    int64   `json:"label"`
	Distance float32 `json:"distance"`
}

// Similarity maps the cosine distance in [0, 2] to a score in [0, 1].
func (r Result) Similarity() float32 { return 1 - r.Distance/2 }

// IndexStats describes a loaded index.
type IndexStats struct {
	Key       IndexKey
	Dimension int
	Count     int // live labels
	Slots     int // used slots, tombstones included
	Deleted   int
	Capacity  int
	MaxLevel  int
	Params    HNSWParams
}

// Manager owns every index of one storage directory. It is safe for concurrent
// use; operations on different keys never contend.
type Manager struct {
	opts    options
	store   *store.Store
	handles *registry.Registry[*handle]
	closed  atomic.Bool
}

// New creates a Manager. The storage directory is created if absent; no index
// is loaded until it is first used.
func New(optFns ...Option) (*Manager, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.logger
	st, err := store.New(opts.dir, func(o *store.Options) {
		o.Codec = opts.codec
		o.Compression = opts.compression
		o.Mirror = opts.mirror
		o.Resources = opts.resources
		o.OnMirrorError = func(stem string, err error) {
			logger.Warn("mirror upload failed", "stem", stem, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("annstore: %w", err)
	}

	return &Manager{
		opts:    opts,
		store:   st,
		handles: registry.New[*handle](),
	}, nil
}

// Dir returns the storage directory.
func (m *Manager) Dir() string { return m.store.Dir() }

func (m *Manager) checkOpen() error {
	if m.closed.Load() {
		return ErrClosed
	}
	return nil
}

func checkKey(key IndexKey, dim int) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if dim != key.Dim {
		return &DimensionMismatchError{Expected: key.Dim, Actual: dim}
	}
	return nil
}

// load resolves the handle of key from the registry, loading its snapshot on
// first access. Without a snapshot a new empty graph is created if create is
// set; otherwise ErrIndexUnavailable is returned.
func (m *Manager) load(ctx context.Context, key IndexKey, create bool, capacityHint int) (*handle, error) {
	stem := key.Stem()
	flight := stem
	if !create {
		flight += "\x00lookup"
	}
	return m.handles.ResolveWith(stem, flight, func() (*handle, error) {
		start := time.Now()
		g, meta, err := m.store.Load(ctx, stem, capacityHint, func(o *hnsw.Options) { o.RandomSeed = m.opts.seed })
		if errors.Is(err, store.ErrSnapshotNotFound) {
			if !create {
				return nil, translateError(key, err)
			}
			g, err := newGraph(key.Dim, capacityHint, m.opts.params, m.opts.seed)
			if err != nil {
				return nil, translateError(key, err)
			}
			m.opts.logger.WithKey(key).Debug("index created", "capacity", g.Capacity())
			return &handle{key: key, stem: stem, graph: g, params: m.opts.params}, nil
		}
		if err == nil && g.Dimension() != key.Dim {
			err = &store.CorruptSnapshotError{Path: stem, Err: &hnsw.ErrDimensionMismatch{Expected: key.Dim, Actual: g.Dimension()}}
		}

		m.opts.metricsCollector.RecordLoad(time.Since(start), err)
		if err != nil {
			err = translateError(key, err)
			m.opts.logger.LogLoad(ctx, stem, 0, time.Since(start), err)
			return nil, err
		}

		params := HNSWParams{M: g.M(), EFConstruction: g.EFConstruction(), EF: g.EF()}
		if meta == nil {
			m.opts.logger.WithKey(key).Warn("index sidecar missing, using snapshot parameters", "stem", stem)
		} else if meta.EF > 0 {
			params.EF = meta.EF
			g.SetEF(meta.EF)
		}
		m.opts.logger.LogLoad(ctx, stem, g.Len(), time.Since(start), nil)

		return &handle{key: key, stem: stem, graph: g, params: params}, nil
	})
}

// acquire returns the locked, initialized handle of key.
func (m *Manager) acquire(ctx context.Context, key IndexKey, create bool, capacityHint int) (*handle, error) {
	for {
		h, err := m.load(ctx, key, create, capacityHint)
		if err != nil {
			return nil, err
		}

		h.mu.Lock()
		if !h.dropped && h.graph != nil {
			return h, nil
		}
		h.mu.Unlock()
	}
}

// evict removes h from the registry. The caller holds h.mu.
func (m *Manager) evict(h *handle) {
	h.dropped = true
	if cur, ok := m.handles.Get(h.stem); ok && cur == h {
		m.handles.Evict(h.stem)
	}
}

func (m *Manager) save(ctx context.Context, h *handle, g *hnsw.Graph, params HNSWParams) error {
	start := time.Now()

	meta := store.MetaOf(g)
	meta.EF = params.EF

	n, err := m.store.Save(ctx, h.stem, g, meta)
	m.opts.metricsCollector.RecordSave(n, time.Since(start), err)
	m.opts.logger.LogSave(ctx, h.stem, n, err)
	if err != nil {
		return translateError(h.key, err)
	}
	return nil
}

// prepare filters items by the dimension policy and collapses repeated labels,
// the last occurrence winning. It returns the unique labels with their vectors
// and the number of items dropped for a wrong dimension.
func prepare(items []Item, dim int, policy DimensionPolicy) (labels []int64, vectors [][]float32, dropped int, err error) {
	index := make(map[int64]int, len(items))
	for _, it := range items {
		if len(it.Vector) != dim {
			if policy == RejectBatch {
				return nil, nil, 0, &DimensionMismatchError{Expected: dim, Actual: len(it.Vector)}
			}
			dropped++
			continue
		}
		if it.Label < 0 {
			return nil, nil, 0, validationError("negative label %d", it.Label)
		}
		if i, ok := index[it.Label]; ok {
			vectors[i] = it.Vector
			continue
		}
		index[it.Label] = len(labels)
		labels = append(labels, it.Label)
		vectors = append(vectors, it.Vector)
	}
	return labels, vectors, dropped, nil
}

// AddOrUpdate upserts items into the index of key, creating the index on first
// use. A label already present is replaced. Vectors whose length differs from
// dim are dropped unless the RejectBatch policy is configured. It returns the
// number of items applied, repeated labels counted once per occurrence, and
// persists the index after every successful call.
func (m *Manager) AddOrUpdate(ctx context.Context, key IndexKey, dim int, items []Item) (applied int, err error) {
	start := time.Now()
	dropped := 0
	defer func() {
		m.opts.metricsCollector.RecordUpsert(applied, dropped, time.Since(start), err)
		m.opts.logger.WithKey(key).LogUpsert(ctx, applied, dropped, err)
	}()

	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	if err := checkKey(key, dim); err != nil {
		return 0, err
	}

	labels, vectors, dropped, err := prepare(items, dim, m.opts.upsertPolicy)
	if err != nil {
		return 0, err
	}
	if len(labels) == 0 {
		return 0, nil
	}

	h, err := m.acquire(ctx, key, true, 0)
	if err != nil {
		return 0, err
	}
	defer h.mu.Unlock()

	err = h.insertOrReplace(labels, vectors, func(from, to int) {
		m.opts.metricsCollector.RecordGrow(from, to)
		m.opts.logger.WithKey(key).LogGrow(ctx, from, to)
	})
	if err != nil {
		return 0, translateError(key, err)
	}

	if err := m.save(ctx, h, h.graph, h.params); err != nil {
		return 0, err
	}
	return len(items) - dropped, nil
}

// Rebuild discards the index of key and builds it from items. Labels absent from
// items are gone afterwards. The new capacity is max(1000, 2*count) unless
// WithRebuildCapacity is given. The index is persisted even when items is empty.
// On failure the previous index stays in place.
func (m *Manager) Rebuild(ctx context.Context, key IndexKey, dim int, items []Item, optFns ...RebuildOption) (included int, err error) {
	start := time.Now()
	capacity := 0
	defer func() {
		m.opts.metricsCollector.RecordRebuild(included, time.Since(start), err)
		m.opts.logger.WithKey(key).LogRebuild(ctx, included, capacity, err)
	}()

	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	if err := checkKey(key, dim); err != nil {
		return 0, err
	}

	ro := rebuildOptions{}
	for _, fn := range optFns {
		fn(&ro)
	}
	params := m.opts.params
	if ro.params != nil {
		params = *ro.params
	}

	labels, vectors, _, err := prepare(items, dim, m.opts.rebuildPolicy)
	if err != nil {
		return 0, err
	}

	capacity = max(1000, 2*len(labels))
	if ro.capacity > 0 {
		capacity = max(ro.capacity, len(labels))
	}

	g, err := newGraph(dim, capacity, params, m.opts.seed)
	if err != nil {
		return 0, translateError(key, err)
	}
	if len(labels) > 0 {
		if err := g.AddItems(labels, vectors, false); err != nil {
			return 0, translateError(key, err)
		}
	}

	h, err := m.placeholder(key)
	if err != nil {
		return 0, err
	}
	defer h.mu.Unlock()

	if err := m.save(ctx, h, g, params); err != nil {
		if h.graph == nil {
			m.evict(h)
		}
		return 0, err
	}

	h.graph = g
	h.params = params
	return len(labels), nil
}

// placeholder returns the locked handle of key without reading its snapshot, so
// that a corrupt file cannot block a rebuild. A handle created here has no graph
// until the caller installs one.
func (m *Manager) placeholder(key IndexKey) (*handle, error) {
	stem := key.Stem()
	for {
		h, err := m.handles.Resolve(stem, func() (*handle, error) {
			return &handle{key: key, stem: stem}, nil
		})
		if err != nil {
			return nil, err
		}

		h.mu.Lock()
		if !h.dropped {
			return h, nil
		}
		h.mu.Unlock()
	}
}

// Search returns up to k labels nearest to query by ascending cosine distance.
// A key without an index, or with an empty one, yields an empty result and no
// error. Search never creates an index.
func (m *Manager) Search(ctx context.Context, key IndexKey, dim int, query []float32, k int) (results []Result, err error) {
	start := time.Now()
	retried := false
	defer func() {
		m.opts.metricsCollector.RecordSearch(k, retried, time.Since(start), err)
		m.opts.logger.WithKey(key).LogSearch(ctx, k, len(results), retried, err)
	}()

	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if err := checkKey(key, dim); err != nil {
		return nil, err
	}
	if len(query) != dim {
		return nil, &DimensionMismatchError{Expected: dim, Actual: len(query)}
	}
	if k <= 0 {
		return nil, validationError("k must be positive, got %d", k)
	}

	h, err := m.acquire(ctx, key, false, 0)
	if errors.Is(err, ErrIndexUnavailable) {
		return []Result{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer h.mu.Unlock()

	results, retried, err = h.query(query, k)
	if err != nil {
		return nil, translateError(key, err)
	}
	return results, nil
}

// IndexExists reports whether both files of key are persisted. It never loads
// the index.
func (m *Manager) IndexExists(key IndexKey) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	ok, err := m.store.Exists(key.Stem())
	if err != nil {
		return false, translateError(key, err)
	}
	return ok, nil
}

// Delete tombstones labels in the index of key. Absent labels are ignored and a
// missing index deletes nothing. The index is persisted when anything changed.
func (m *Manager) Delete(ctx context.Context, key IndexKey, labels []int64) (deleted int, err error) {
	start := time.Now()
	defer func() {
		m.opts.metricsCollector.RecordDelete(deleted, time.Since(start), err)
		m.opts.logger.WithKey(key).LogDelete(ctx, deleted, err)
	}()

	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	if err := key.Validate(); err != nil {
		return 0, err
	}

	h, err := m.acquire(ctx, key, false, 0)
	if errors.Is(err, ErrIndexUnavailable) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer h.mu.Unlock()

	for _, l := range labels {
		if h.graph.MarkDeleted(l) {
			deleted++
		}
	}
	if deleted == 0 {
		return 0, nil
	}

	if err := m.save(ctx, h, h.graph, h.params); err != nil {
		return 0, err
	}
	return deleted, nil
}

// Stats describes the index of key if it is loaded.
func (m *Manager) Stats(key IndexKey) (IndexStats, bool) {
	h, ok := m.handles.Get(key.Stem())
	if !ok {
		return IndexStats{}, false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dropped || h.graph == nil {
		return IndexStats{}, false
	}
	return h.stats(), true
}

// Loaded returns the keys of the indexes held in memory.
func (m *Manager) Loaded() []IndexKey {
	var keys []IndexKey
	m.handles.Range(func(_ string, h *handle) bool {
		keys = append(keys, h.key)
		return true
	})
	return keys
}

// Evict drops the in-memory index of key. The next access reloads it from disk.
func (m *Manager) Evict(key IndexKey) bool {
	h, ok := m.handles.Get(key.Stem())
	if !ok {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	m.evict(h)
	return true
}

// Drop evicts the index of key and deletes its files, mirror copies included.
func (m *Manager) Drop(ctx context.Context, key IndexKey) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := key.Validate(); err != nil {
		return err
	}

	h, err := m.placeholder(key)
	if err != nil {
		return err
	}
	defer h.mu.Unlock()
	m.evict(h)

	if err := m.store.Remove(ctx, key.Stem()); err != nil {
		return translateError(key, err)
	}
	m.opts.logger.WithKey(key).Info("index dropped")
	return nil
}

// Flush waits for pending mirror uploads.
func (m *Manager) Flush(ctx context.Context) error {
	return m.store.Flush(ctx)
}

// Close flushes pending mirror uploads and rejects further operations.
// In-memory indexes need no flushing since every mutation is persisted.
func (m *Manager) Close(ctx context.Context) error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	return m.store.Close(ctx)
}

// Normalize returns v scaled to unit length, as stored by every index.
func Normalize(v []float32) []float32 { return metric.Normalize(v) }

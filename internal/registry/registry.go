// Package registry caches values by key and loads each missing key at most once
// at a time.
package registry

import (
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Registry maps string keys to values. It is safe for concurrent use.
type Registry[V any] struct {
	mu    sync.RWMutex
	items map[string]V
	group singleflight.Group
}

// New returns an empty registry.
func New[V any]() *Registry[V] {
	return &Registry[V]{items: make(map[string]V)}
}

// Get returns the value cached under key.
func (r *Registry[V]) Get(key string) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[key]
	return v, ok
}

// Resolve returns the cached value for key, calling load if there is none.
// Concurrent callers for the same key share a single load. Failed loads are
// not cached.
func (r *Registry[V]) Resolve(key string, load func() (V, error)) (V, error) {
	return r.ResolveWith(key, key, load)
}

// ResolveWith is Resolve with loads shared among callers passing the same
// flight instead of the same key. Callers whose loads differ in outcome, such
// as one that may create a value and one that may not, use distinct flights.
func (r *Registry[V]) ResolveWith(key, flight string, load func() (V, error)) (V, error) {
	if v, ok := r.Get(key); ok {
		return v, nil
	}

	res, err, _ := r.group.Do(flight, func() (any, error) {
		if v, ok := r.Get(key); ok {
			return v, nil
		}

		v, err := load()
		if err != nil {
			return v, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if existing, ok := r.items[key]; ok {
			return existing, nil
		}
		r.items[key] = v
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Put stores v under key, replacing any cached value, and returns the previous value.
func (r *Registry[V]) Put(key string, v V) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.items[key]
	r.items[key] = v
	return prev, ok
}

// Evict removes key and returns the value it held.
func (r *Registry[V]) Evict(key string) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[key]
	delete(r.items, key)
	return v, ok
}

// Keys returns the cached keys in sorted order.
func (r *Registry[V]) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.items))
	for k := range r.items {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Len returns the number of cached values.
func (r *Registry[V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Range calls fn for every cached value in key order until fn returns false.
func (r *Registry[V]) Range(fn func(key string, v V) bool) {
	for _, k := range r.Keys() {
		v, ok := r.Get(k)
		if !ok {
			continue
		}
		if !fn(k, v) {
			return
		}
	}
}

package registry

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLoadsOnce(t *testing.T) {
	r := New[*int]()

	var (
		loads atomic.Int32
		start = make(chan struct{})
		wg    sync.WaitGroup
	)

	results := make([]*int, 32)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			v, err := r.Resolve("a", func() (*int, error) {
				loads.Add(1)
				n := 42
				return &n, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	for _, v := range results {
		assert.Same(t, results[0], v)
	}
}

func TestResolveDoesNotCacheErrors(t *testing.T) {
	r := New[int]()
	boom := errors.New("boom")

	_, err := r.Resolve("a", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.Len())

	v, err := r.Resolve("a", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestPutEvictRange(t *testing.T) {
	r := New[string]()

	_, existed := r.Put("b", "two")
	assert.False(t, existed)
	r.Put("a", "one")
	prev, existed := r.Put("b", "deux")
	assert.True(t, existed)
	assert.Equal(t, "two", prev)

	assert.Equal(t, []string{"a", "b"}, r.Keys())

	var seen []string
	r.Range(func(k, v string) bool {
		seen = append(seen, k+"="+v)
		return true
	})
	assert.Equal(t, []string{"a=one", "b=deux"}, seen)

	v, ok := r.Evict("a")
	assert.True(t, ok)
	assert.Equal(t, "one", v)
	_, ok = r.Get("a")
	assert.False(t, ok)
	_, ok = r.Evict("a")
	assert.False(t, ok)
}

func TestResolveWithSeparatesFlights(t *testing.T) {
	r := New[int]()

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error)
	go func() {
		_, err := r.ResolveWith("a", "a/lookup", func() (int, error) {
			close(started)
			<-release
			return 0, errors.New("absent")
		})
		done <- err
	}()
	<-started

	// A different flight is not blocked by, and does not share, the pending lookup.
	v, err := r.ResolveWith("a", "a", func() (int, error) { return 3, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	close(release)
	assert.Error(t, <-done)

	v, ok := r.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

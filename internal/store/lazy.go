// Package store holds the read-only reference data used by search: the
// embedding collection and the hybrid term lookup. Both are fetched once on
// first access and cached for the life of the store.
package store

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Lazy is a value loaded on first Get and cached afterwards. Concurrent first
// callers share a single in-flight load. A failed load is not cached.
type Lazy[T any] struct {
	key   string
	load  func(ctx context.Context) (T, error)
	group singleflight.Group

	mu     sync.RWMutex
	value  T
	loaded bool
}

// NewLazy returns a Lazy that calls load on first access.
func NewLazy[T any](key string, load func(ctx context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{key: key, load: load}
}

// Get returns the cached value, loading it if needed. The shared load is
// detached from ctx cancellation so one caller giving up does not fail the
// others; Get itself returns ctx.Err() when ctx ends first.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	if v, ok := l.cached(); ok {
		return v, nil
	}
	ch := l.group.DoChan(l.key, func() (any, error) {
		if v, ok := l.cached(); ok {
			return v, nil
		}
		v, err := l.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.value = v
		l.loaded = true
		l.mu.Unlock()
		return v, nil
	})
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Loaded reports whether the value has been loaded.
func (l *Lazy[T]) Loaded() bool {
	_, ok := l.cached()
	return ok
}

// Peek returns the value without triggering a load.
func (l *Lazy[T]) Peek() (T, bool) {
	return l.cached()
}

func (l *Lazy[T]) cached() (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value, l.loaded
}

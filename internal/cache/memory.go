package cache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value      V
	writtenAt  time.Time
	accessedAt time.Time
}

// Memory is an in-process Cache safe for concurrent use.
type Memory[K comparable, V any] struct {
	opts Options
	now  func() time.Time

	mu      sync.Mutex
	entries map[K]*entry[V]
}

var _ Cache[string, int] = (*Memory[string, int])(nil)

// NewMemory creates an in-memory cache.
func NewMemory[K comparable, V any](opts Options) *Memory[K, V] {
	return &Memory[K, V]{
		opts:    opts.withDefaults(),
		now:     time.Now,
		entries: make(map[K]*entry[V]),
	}
}

func (m *Memory[K, V]) expired(e *entry[V], now time.Time) bool {
	return now.Sub(e.accessedAt) >= m.opts.IdleTTL || now.Sub(e.writtenAt) >= m.opts.MaxAge
}

func (m *Memory[K, V]) Get(_ context.Context, key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if m.expired(e, now) {
		delete(m.entries, key)
		var zero V
		return zero, false
	}
	e.accessedAt = now
	return e.value, true
}

func (m *Memory[K, V]) Set(_ context.Context, key K, v V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.entries[key] = &entry[V]{value: v, writtenAt: now, accessedAt: now}
}

func (m *Memory[K, V]) SetIfPresent(_ context.Context, key K, v V) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[key]
	if !ok {
		return false
	}
	if m.expired(e, now) {
		delete(m.entries, key)
		return false
	}
	e.value, e.writtenAt, e.accessedAt = v, now, now
	return true
}

func (m *Memory[K, V]) Invalidate(_ context.Context, keys ...K) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.entries, k)
	}
}

func (m *Memory[K, V]) InvalidateAll(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.entries)
}

// Len returns the number of entries, expired ones included until swept.
func (m *Memory[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Cleanup evicts expired entries and reports how many were dropped.
func (m *Memory[K, V]) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for k, e := range m.entries {
		if m.expired(e, now) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Sweeper is implemented by caches that need periodic eviction.
type Sweeper interface {
	Cleanup() int
}

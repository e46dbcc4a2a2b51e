// Package cache holds the expiring key/value caches that front the
// repositories. Backends never return errors: a failing backend is logged
// and behaves like a miss so reads fall through to the store.
package cache

import (
	"context"
	"time"
)

// Default expiry windows, whichever elapses first evicts the entry.
const (
	DefaultIdleTTL = 3 * time.Minute
	DefaultMaxAge  = 1 * time.Minute
)

// Cache is a keyed expiring cache.
type Cache[K comparable, V any] interface {
	// Get returns the cached value and refreshes its idle window.
	Get(ctx context.Context, key K) (V, bool)
	// Set stores v, resetting both expiry windows.
	Set(ctx context.Context, key K, v V)
	// SetIfPresent replaces the entry only if it is currently cached.
	SetIfPresent(ctx context.Context, key K, v V) bool
	// Invalidate drops the given keys.
	Invalidate(ctx context.Context, keys ...K)
	// InvalidateAll drops every entry of this cache.
	InvalidateAll(ctx context.Context)
}

// Options configures the expiry windows of a cache.
type Options struct {
	IdleTTL time.Duration
	MaxAge  time.Duration
}

func (o Options) withDefaults() Options {
	if o.IdleTTL <= 0 {
		o.IdleTTL = DefaultIdleTTL
	}
	if o.MaxAge <= 0 {
		o.MaxAge = DefaultMaxAge
	}
	return o
}

// ttl is the lifetime of a freshly written entry.
func (o Options) ttl() time.Duration {
	return min(o.IdleTTL, o.MaxAge)
}

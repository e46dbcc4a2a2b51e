package repository

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/sefa-b/game-economy/internal/cache"
	"github.com/sefa-b/game-economy/internal/domain"
	"github.com/sefa-b/game-economy/internal/utils"
)

// Loader reads one value from the store on a cache miss. It returns an
// error wrapping domain.ErrNotFound when the key has no row.
type Loader[K comparable, V any] func(ctx context.Context, tx Tx, key K) (V, error)

// Store is the SQL side of a cached repository. Every method runs inside a
// transaction owned by the repository.
type Store[K comparable, V any] interface {
	Key(v V) K
	KeyString(k K) string
	// Normalize validates k and returns its canonical form.
	Normalize(k K) (K, error)
	Validate(v V) error
	LoadAll(ctx context.Context, tx Tx) ([]V, error)
	Upsert(ctx context.Context, tx Tx, v V) error
	Remove(ctx context.Context, tx Tx, k K) error
	RemoveAll(ctx context.Context, tx Tx) error
}

// WritePolicy decides what a committed write does to a cached entry.
type WritePolicy string

const (
	// RefreshIfHot replaces entries that are already cached and leaves
	// cold keys uncached.
	RefreshIfHot WritePolicy = "refresh-if-hot"
	// InvalidateOnWrite drops the entry so the next read reloads it.
	InvalidateOnWrite WritePolicy = "invalidate"
)

const generationStripes = 256

// CachedRepository binds an expiring cache to the store. Reads go through
// the cache and fall back to the injected loader; writes and deletes run in
// one scoped transaction and touch the cache only after commit.
//
// Every write bumps a generation counter for the key's stripe. A load only
// caches its result if its stripe has not moved since it started, and a
// write only refreshes an entry if no other write moved the stripe during
// its transaction. Neither can put an older value back.
type CachedRepository[K comparable, V any] struct {
	id     uuid.UUID
	name   string
	db     *DB
	cache  cache.Cache[K, V]
	loader Loader[K, V]
	store  Store[K, V]
	policy WritePolicy

	flight singleflight.Group

	mu   sync.Mutex
	gens [generationStripes]uint64
}

// NewCachedRepository wires a cache, a loader and a store together.
func NewCachedRepository[K comparable, V any](name string, db *DB, c cache.Cache[K, V], loader Loader[K, V], store Store[K, V], policy WritePolicy) *CachedRepository[K, V] {
	if policy == "" {
		policy = RefreshIfHot
	}
	return &CachedRepository[K, V]{
		id:     uuid.New(),
		name:   name,
		db:     db,
		cache:  c,
		loader: loader,
		store:  store,
		policy: policy,
	}
}

// ID is the instance identity, used for diagnostics only.
func (r *CachedRepository[K, V]) ID() uuid.UUID { return r.id }

func (r *CachedRepository[K, V]) Name() string { return r.name }

func (r *CachedRepository[K, V]) String() string {
	return r.name + "#" + r.id.String()
}

func stripeOf(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % generationStripes)
}

func (r *CachedRepository[K, V]) stripe(key K) int {
	return stripeOf(r.store.KeyString(key))
}

func (r *CachedRepository[K, V]) generation(stripe int) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gens[stripe]
}

// cacheIfCurrent caches v unless a write to the stripe happened after gen
// was observed. The lock only guards the comparison; if the stripe moves
// while the cache is being written, the entry is dropped again.
func (r *CachedRepository[K, V]) cacheIfCurrent(ctx context.Context, key K, stripe int, gen uint64, v V) {
	if r.generation(stripe) != gen {
		return
	}
	r.cache.Set(ctx, key, v)
	if r.generation(stripe) != gen {
		r.cache.Invalidate(ctx, key)
	}
}

// observe snapshots the generations of the stripes keys fall into. Writers
// take it before their transaction and hand it to written after commit.
func (r *CachedRepository[K, V]) observe(keys ...K) map[int]uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[int]uint64, len(keys))
	for _, k := range keys {
		s := r.stripe(k)
		seen[s] = r.gens[s]
	}
	return seen
}

func (r *CachedRepository[K, V]) observeValues(vs ...V) map[int]uint64 {
	keys := make([]K, len(vs))
	for i, v := range vs {
		keys[i] = r.store.Key(v)
	}
	return r.observe(keys...)
}

// bump advances every stripe in seen. A stripe is reported fresh when no
// other write touched it since it was observed; only then may the caller
// refresh a cached entry with its own value.
func (r *CachedRepository[K, V]) bump(seen map[int]uint64) (fresh map[int]bool, after map[int]uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fresh = make(map[int]bool, len(seen))
	after = make(map[int]uint64, len(seen))
	for s, g := range seen {
		fresh[s] = r.gens[s] == g
		r.gens[s]++
		after[s] = r.gens[s]
	}
	return fresh, after
}

// written applies the post-commit cache effect of upserting vs. seen must
// come from observe before the transaction began. When another write
// overlapped this one its order against ours is unknown, so the entry is
// dropped instead of refreshed.
func (r *CachedRepository[K, V]) written(ctx context.Context, seen map[int]uint64, vs ...V) {
	fresh, after := r.bump(seen)

	var drop, refreshed []K
	for _, v := range vs {
		key := r.store.Key(v)
		if r.policy == InvalidateOnWrite || !fresh[r.stripe(key)] {
			drop = append(drop, key)
			continue
		}
		r.cache.SetIfPresent(ctx, key, v)
		refreshed = append(refreshed, key)
	}
	if len(drop) > 0 {
		r.cache.Invalidate(ctx, drop...)
	}
	if len(refreshed) == 0 {
		return
	}

	// a write that bumped the stripe while we refreshed may have been
	// overtaken by our SetIfPresent
	r.mu.Lock()
	var moved []K
	for _, k := range refreshed {
		s := r.stripe(k)
		if r.gens[s] != after[s] {
			moved = append(moved, k)
		}
	}
	r.mu.Unlock()
	if len(moved) > 0 {
		r.cache.Invalidate(ctx, moved...)
	}
}

// invalidate drops keys and fences off in-flight loads of them.
func (r *CachedRepository[K, V]) invalidate(ctx context.Context, keys ...K) {
	r.mu.Lock()
	for _, k := range keys {
		r.gens[r.stripe(k)]++
	}
	r.mu.Unlock()

	r.cache.Invalidate(ctx, keys...)
}

func (r *CachedRepository[K, V]) invalidateAll(ctx context.Context) {
	r.mu.Lock()
	for i := range r.gens {
		r.gens[i]++
	}
	r.mu.Unlock()

	r.cache.InvalidateAll(ctx)
}

// Load returns the value for key, from the cache or through the loader.
// Concurrent misses on the same key share one loader run.
func (r *CachedRepository[K, V]) Load(ctx context.Context, key K) (V, error) {
	if v, ok := r.cache.Get(ctx, key); ok {
		utils.RecordCacheLookup(r.name, true)
		return v, nil
	}
	utils.RecordCacheLookup(r.name, false)

	ks := r.store.KeyString(key)
	stripe := r.stripe(key)
	gen := r.generation(stripe)

	// The flight key carries the generation so callers arriving after a
	// write never join a load that started before it.
	res, err, _ := r.flight.Do(ks+"@"+strconv.FormatUint(gen, 10), func() (any, error) {
		loadCtx := context.WithoutCancel(ctx)
		v, err := WithTx(loadCtx, r.db, r.name, func(ctx context.Context, tx Tx) (V, error) {
			return r.loader(ctx, tx, key)
		}).Unwrap()
		utils.RecordCacheLoad(r.name, err)
		if err != nil {
			return v, err
		}
		r.cacheIfCurrent(loadCtx, key, stripe, gen, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, fmt.Errorf("%w: %s %s: %w", domain.ErrCacheLoad, r.name, ks, err)
	}
	return res.(V), nil
}

// Get returns the value stored under key. A missing row is an ERROR.
func (r *CachedRepository[K, V]) Get(ctx context.Context, key K) domain.Response[V] {
	key, err := r.store.Normalize(key)
	if err != nil {
		return domain.Fail[V](err)
	}
	v, err := r.Load(ctx, key)
	if err != nil {
		return domain.Fail[V](err)
	}
	return domain.OK(v)
}

// GetAllOfThem returns the values of keys that exist, in input order.
// Cache misses are loaded in a single transaction and cached after it
// commits. Missing keys are skipped; an all-missing result is OK and empty.
func (r *CachedRepository[K, V]) GetAllOfThem(ctx context.Context, keys []K) domain.Response[[]V] {
	keys, err := r.normalizeAll(keys)
	if err != nil {
		return domain.Fail[[]V](err)
	}
	if len(keys) == 0 {
		return domain.Empty[[]V]()
	}

	found := make(map[K]V, len(keys))
	type miss struct {
		key    K
		stripe int
		gen    uint64
	}
	var misses []miss
	for _, k := range keys {
		if v, ok := r.cache.Get(ctx, k); ok {
			utils.RecordCacheLookup(r.name, true)
			found[k] = v
			continue
		}
		utils.RecordCacheLookup(r.name, false)
		stripe := r.stripe(k)
		misses = append(misses, miss{key: k, stripe: stripe, gen: r.generation(stripe)})
	}

	if len(misses) > 0 {
		loaded, err := WithTx(ctx, r.db, r.name, func(ctx context.Context, tx Tx) (map[K]V, error) {
			out := make(map[K]V, len(misses))
			for _, m := range misses {
				v, err := r.loader(ctx, tx, m.key)
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				if err != nil {
					return nil, err
				}
				out[m.key] = v
			}
			return out, nil
		}).Unwrap()
		if err != nil {
			return domain.Fail[[]V](fmt.Errorf("%w: %s batch: %w", domain.ErrCacheLoad, r.name, err))
		}

		for _, m := range misses {
			if v, ok := loaded[m.key]; ok {
				r.cacheIfCurrent(ctx, m.key, m.stripe, m.gen, v)
				found[m.key] = v
			}
		}
	}

	if len(found) == 0 {
		return domain.Empty[[]V]()
	}
	out := make([]V, 0, len(found))
	for _, k := range keys {
		if v, ok := found[k]; ok {
			out = append(out, v)
		}
	}
	return domain.OK(out)
}

// GetAll reads every row from the store. The result is not cached.
func (r *CachedRepository[K, V]) GetAll(ctx context.Context) domain.Response[[]V] {
	res := WithTx(ctx, r.db, r.name, func(ctx context.Context, tx Tx) ([]V, error) {
		return r.store.LoadAll(ctx, tx)
	})
	if vs, ok := res.Get(); ok && len(vs) == 0 {
		return domain.Empty[[]V]()
	}
	return res
}

// Set upserts v and then refreshes or drops its cache entry per policy.
func (r *CachedRepository[K, V]) Set(ctx context.Context, v V) domain.Response[domain.Void] {
	if err := r.store.Validate(v); err != nil {
		return domain.Fail[domain.Void](err)
	}

	seen := r.observeValues(v)
	res := WithTx(ctx, r.db, r.name, func(ctx context.Context, tx Tx) (domain.Void, error) {
		return domain.Void{}, r.store.Upsert(ctx, tx, v)
	})
	if res.IsOK() {
		r.written(ctx, seen, v)
	}
	return res
}

// SetAll upserts vs in one transaction. The cache is only touched after
// the whole batch commits.
func (r *CachedRepository[K, V]) SetAll(ctx context.Context, vs []V) domain.Response[domain.Void] {
	if len(vs) == 0 {
		return domain.OK(domain.Void{})
	}
	for _, v := range vs {
		if err := r.store.Validate(v); err != nil {
			return domain.Fail[domain.Void](err)
		}
	}

	seen := r.observeValues(vs...)
	res := WithTx(ctx, r.db, r.name, func(ctx context.Context, tx Tx) (domain.Void, error) {
		for _, v := range vs {
			if err := r.store.Upsert(ctx, tx, v); err != nil {
				return domain.Void{}, err
			}
		}
		return domain.Void{}, nil
	})
	if res.IsOK() {
		r.written(ctx, seen, vs...)
	}
	return res
}

// Delete removes key. Deleting a missing key succeeds.
func (r *CachedRepository[K, V]) Delete(ctx context.Context, key K) domain.Response[domain.Void] {
	return r.DeleteAllOfThem(ctx, []K{key})
}

// DeleteAllOfThem removes keys in one transaction. Entries are invalidated
// before the commit and again after it, so no reader is served a deleted
// row once the call returns.
func (r *CachedRepository[K, V]) DeleteAllOfThem(ctx context.Context, keys []K) domain.Response[domain.Void] {
	keys, err := r.normalizeAll(keys)
	if err != nil {
		return domain.Fail[domain.Void](err)
	}
	if len(keys) == 0 {
		return domain.OK(domain.Void{})
	}

	res := WithTx(ctx, r.db, r.name, func(ctx context.Context, tx Tx) (domain.Void, error) {
		for _, k := range keys {
			if err := r.store.Remove(ctx, tx, k); err != nil {
				return domain.Void{}, err
			}
		}
		r.invalidate(ctx, keys...)
		return domain.Void{}, nil
	})
	if res.IsOK() {
		r.invalidate(ctx, keys...)
	}
	return res
}

// DeleteAll empties the table and the cache.
func (r *CachedRepository[K, V]) DeleteAll(ctx context.Context) domain.Response[domain.Void] {
	res := WithTx(ctx, r.db, r.name, func(ctx context.Context, tx Tx) (domain.Void, error) {
		if err := r.store.RemoveAll(ctx, tx); err != nil {
			return domain.Void{}, err
		}
		r.invalidateAll(ctx)
		return domain.Void{}, nil
	})
	if res.IsOK() {
		r.invalidateAll(ctx)
	}
	return res
}

// normalizeAll canonicalizes keys and drops duplicates, keeping order.
func (r *CachedRepository[K, V]) normalizeAll(keys []K) ([]K, error) {
	seen := make(map[K]struct{}, len(keys))
	out := make([]K, 0, len(keys))
	for _, k := range keys {
		k, err := r.store.Normalize(k)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out, nil
}

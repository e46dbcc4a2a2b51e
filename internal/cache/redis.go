package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sefa-b/game-economy/internal/utils"
)

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient creates a Redis client and checks the connection.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	utils.Info("connected to Redis", "addr", cfg.Addr)
	return client, nil
}

// KeyFunc renders a cache key as a Redis key suffix.
type KeyFunc[K comparable] func(K) string

type envelope[V any] struct {
	Value     V     `json:"v"`
	WrittenAt int64 `json:"w"`
}

// Redis is a Cache stored in Redis as JSON under prefix. Redis keeps a
// single TTL per key, so the idle window is re-armed on every hit and the
// write time travels with the value to enforce the max age.
type Redis[K comparable, V any] struct {
	client  *redis.Client
	prefix  string
	keyFn   KeyFunc[K]
	opts    Options
	breaker *utils.CircuitBreaker
	now     func() time.Time
}

var _ Cache[string, int] = (*Redis[string, int])(nil)

// NewRedis creates a Redis-backed cache. All entries live under prefix.
func NewRedis[K comparable, V any](client *redis.Client, prefix string, keyFn KeyFunc[K], opts Options) *Redis[K, V] {
	return &Redis[K, V]{
		client: client,
		prefix: prefix,
		keyFn:  keyFn,
		opts:   opts.withDefaults(),
		breaker: utils.NewCircuitBreaker(utils.CircuitBreakerConfig{
			Name: "redis:" + prefix,
		}),
		now: time.Now,
	}
}

func (r *Redis[K, V]) key(k K) string {
	return r.prefix + r.keyFn(k)
}

func (r *Redis[K, V]) Get(ctx context.Context, k K) (V, bool) {
	var (
		env   envelope[V]
		found bool
	)
	key := r.key(k)

	err := r.breaker.Call(ctx, func(ctx context.Context) error {
		data, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &env); err != nil {
			// A corrupt entry is dropped, not reported as a backend failure.
			utils.Warn("dropping undecodable cache entry", "key", key, "error", err.Error())
			return r.client.Del(ctx, key).Err()
		}

		age := r.now().Sub(time.Unix(0, env.WrittenAt))
		if age >= r.opts.MaxAge {
			return r.client.Del(ctx, key).Err()
		}
		found = true
		return r.client.Expire(ctx, key, min(r.opts.IdleTTL, r.opts.MaxAge-age)).Err()
	})
	if err != nil {
		r.logFailure("get", key, err)
		var zero V
		return zero, false
	}
	return env.Value, found
}

func (r *Redis[K, V]) encode(v V) ([]byte, error) {
	return json.Marshal(envelope[V]{Value: v, WrittenAt: r.now().UnixNano()})
}

func (r *Redis[K, V]) Set(ctx context.Context, k K, v V) {
	key := r.key(k)
	data, err := r.encode(v)
	if err != nil {
		r.logFailure("set", key, err)
		return
	}

	err = r.breaker.Call(ctx, func(ctx context.Context) error {
		return r.client.Set(ctx, key, data, r.opts.ttl()).Err()
	})
	if err != nil {
		r.logFailure("set", key, err)
	}
}

func (r *Redis[K, V]) SetIfPresent(ctx context.Context, k K, v V) bool {
	key := r.key(k)
	data, err := r.encode(v)
	if err != nil {
		r.logFailure("set_if_present", key, err)
		r.Invalidate(ctx, k)
		return false
	}

	var replaced bool
	err = r.breaker.Call(ctx, func(ctx context.Context) error {
		err := r.client.SetArgs(ctx, key, data, redis.SetArgs{Mode: "XX", TTL: r.opts.ttl()}).Err()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		replaced = err == nil
		return err
	})
	if err != nil {
		r.logFailure("set_if_present", key, err)
	}
	return replaced
}

func (r *Redis[K, V]) Invalidate(ctx context.Context, keys ...K) {
	if len(keys) == 0 {
		return
	}
	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = r.key(k)
	}

	// Invalidation bypasses the breaker: skipping it would leave stale data.
	if err := r.client.Del(ctx, redisKeys...).Err(); err != nil {
		r.logFailure("invalidate", r.prefix, err)
	}
}

func (r *Redis[K, V]) InvalidateAll(ctx context.Context) {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 256).Iterator()

	batch := make([]string, 0, 256)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			r.logFailure("invalidate_all", r.prefix, err)
		}
		batch = batch[:0]
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			flush()
		}
	}
	flush()

	if err := iter.Err(); err != nil {
		r.logFailure("invalidate_all", r.prefix, err)
	}
}

// don't fail the request if the cache fails
func (r *Redis[K, V]) logFailure(op, key string, err error) {
	if errors.Is(err, utils.ErrCircuitOpen) {
		utils.Debug("cache skipped, breaker open", "op", op, "key", key)
		return
	}
	utils.Error("cache operation failed", "op", op, "key", key, "error", err.Error())
}

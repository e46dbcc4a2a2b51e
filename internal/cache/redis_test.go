package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type balance struct {
	Owner  string  `json:"owner"`
	Amount float64 `json:"amount"`
}

func newTestRedis(t *testing.T, prefix string) (*Redis[string, balance], *miniredis.Miniredis, *fakeClock) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := newFakeClock()
	r := NewRedis[string, balance](client, prefix, func(k string) string { return k }, Options{
		IdleTTL: 3 * time.Minute,
		MaxAge:  time.Minute,
	})
	r.now = clock.Now
	return r, mr, clock
}

func TestRedisGetSet(t *testing.T) {
	ctx := context.Background()
	r, mr, _ := newTestRedis(t, "economy:tx:")

	_, ok := r.Get(ctx, "u1:gold")
	assert.False(t, ok)

	r.Set(ctx, "u1:gold", balance{Owner: "u1", Amount: 100})
	assert.True(t, mr.Exists("economy:tx:u1:gold"))
	assert.Equal(t, time.Minute, mr.TTL("economy:tx:u1:gold"))

	v, ok := r.Get(ctx, "u1:gold")
	require.True(t, ok)
	assert.Equal(t, 100.0, v.Amount)

	r.Invalidate(ctx, "u1:gold")
	_, ok = r.Get(ctx, "u1:gold")
	assert.False(t, ok)
}

func TestRedisSetIfPresent(t *testing.T) {
	ctx := context.Background()
	r, mr, _ := newTestRedis(t, "p:")

	assert.False(t, r.SetIfPresent(ctx, "cold", balance{Amount: 1}))
	assert.False(t, mr.Exists("p:cold"))

	r.Set(ctx, "hot", balance{Amount: 1})
	assert.True(t, r.SetIfPresent(ctx, "hot", balance{Amount: 2}))

	v, ok := r.Get(ctx, "hot")
	require.True(t, ok)
	assert.Equal(t, 2.0, v.Amount)
}

func TestRedisMaxAge(t *testing.T) {
	ctx := context.Background()
	r, mr, clock := newTestRedis(t, "p:")

	r.Set(ctx, "a", balance{Amount: 1})
	clock.Advance(40 * time.Second)

	_, ok := r.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, 20*time.Second, mr.TTL("p:a"), "TTL should shrink to the remaining max age")

	clock.Advance(21 * time.Second)
	_, ok = r.Get(ctx, "a")
	assert.False(t, ok)
	assert.False(t, mr.Exists("p:a"))
}

func TestRedisIdleExpiry(t *testing.T) {
	ctx := context.Background()
	r, mr, _ := newTestRedis(t, "p:")

	r.Set(ctx, "a", balance{Amount: 1})
	mr.FastForward(61 * time.Second)

	_, ok := r.Get(ctx, "a")
	assert.False(t, ok)
}

func TestRedisInvalidateAllKeepsOtherPrefixes(t *testing.T) {
	ctx := context.Background()
	r, mr, _ := newTestRedis(t, "mine:")
	require.NoError(t, mr.Set("other:x", "keep"))

	for _, k := range []string{"a", "b", "c"} {
		r.Set(ctx, k, balance{Owner: k})
	}

	r.InvalidateAll(ctx)

	for _, k := range []string{"a", "b", "c"} {
		assert.False(t, mr.Exists("mine:"+k))
	}
	assert.True(t, mr.Exists("other:x"))
}

func TestRedisCorruptEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	r, mr, _ := newTestRedis(t, "p:")
	require.NoError(t, mr.Set("p:bad", "{not json"))

	_, ok := r.Get(ctx, "bad")
	assert.False(t, ok)
	assert.False(t, mr.Exists("p:bad"))
}

func TestRedisDownDegradesToMiss(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	r := NewRedis[string, balance](client, "p:", func(k string) string { return k }, Options{})
	r.Set(ctx, "a", balance{Amount: 1})

	mr.Close()

	_, ok := r.Get(ctx, "a")
	assert.False(t, ok)
	assert.False(t, r.SetIfPresent(ctx, "a", balance{Amount: 2}))
}

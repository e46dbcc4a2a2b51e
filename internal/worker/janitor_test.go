package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sefa-b/game-economy/internal/cache"
)

type countingSweeper struct {
	calls   atomic.Int32
	evicted int
}

func (s *countingSweeper) Cleanup() int {
	s.calls.Add(1)
	return s.evicted
}

func TestJanitorSweep(t *testing.T) {
	a := &countingSweeper{evicted: 2}
	b := &countingSweeper{evicted: 3}

	j := NewJanitor(a, b)
	assert.Equal(t, 5, j.Sweep())
	assert.EqualValues(t, 1, a.calls.Load())
	assert.EqualValues(t, 1, b.calls.Load())
}

func TestJanitorSweepsMemoryCache(t *testing.T) {
	ctx := context.Background()
	m := cache.NewMemory[string, int](cache.Options{IdleTTL: time.Millisecond, MaxAge: time.Millisecond})
	m.Set(ctx, "a", 1)
	m.Set(ctx, "b", 2)

	time.Sleep(5 * time.Millisecond)

	j := NewJanitor(m)
	assert.Equal(t, 2, j.Sweep())
	assert.Zero(t, m.Len())
}

func TestJanitorRunsUntilStopped(t *testing.T) {
	s := &countingSweeper{}
	j := NewJanitor(s)

	j.Start(5 * time.Millisecond)
	j.Start(5 * time.Millisecond)

	require.Eventually(t, func() bool { return s.calls.Load() >= 2 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, j.Stop(ctx))

	after := s.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, s.calls.Load(), "no sweeps after Stop")

	assert.NoError(t, j.Stop(ctx), "stopping twice is a no-op")
}

func TestJanitorZeroIntervalDoesNotStart(t *testing.T) {
	s := &countingSweeper{}
	j := NewJanitor(s)

	j.Start(0)
	time.Sleep(10 * time.Millisecond)

	assert.Zero(t, s.calls.Load())
	assert.NoError(t, j.Stop(context.Background()))
}

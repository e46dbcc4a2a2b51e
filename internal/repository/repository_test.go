package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sefa-b/game-economy/internal/cache"
	"github.com/sefa-b/game-economy/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, Migrate(context.Background(), db))
	require.NoError(t, db.Health(context.Background()))
}

func TestOpenUnknownDriver(t *testing.T) {
	for _, driver := range []string{"oracle", "sqlite3", "pgx"} {
		_, err := Open(context.Background(), driver, ":memory:", PoolConfig{})
		assert.Error(t, err, driver)
	}
}

func TestWithTxCommit(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	res := WithTx(ctx, db, "test", func(ctx context.Context, tx Tx) (int, error) {
		_, err := tx.ExecContext(ctx, `INSERT INTO subjects (subject_id, nickname) VALUES ($1, $2)`, uuid.NewString(), "a")
		return 1, err
	})
	require.True(t, res.IsOK())
	assert.Equal(t, 1, res.OrElse(0))

	assert.Equal(t, 1, countRows(t, db, "subjects"))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	boom := errors.New("boom")

	res := WithTx(ctx, db, "test", func(ctx context.Context, tx Tx) (domain.Void, error) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO subjects (subject_id, nickname) VALUES ($1, $2)`, uuid.NewString(), "a"); err != nil {
			return domain.Void{}, err
		}
		return domain.Void{}, boom
	})

	require.True(t, res.IsError())
	assert.ErrorIs(t, res.Cause, boom)
	assert.ErrorIs(t, res.Cause, domain.ErrStore)
	assert.Equal(t, 0, countRows(t, db, "subjects"))
}

func TestWithTxKeepsClassifiedErrors(t *testing.T) {
	db := newTestDB(t)

	res := WithTx(context.Background(), db, "test", func(context.Context, Tx) (int, error) {
		return 0, domain.NotFound("thing", 1)
	})
	assert.Equal(t, domain.KindNotFound, domain.KindOf(res.Cause))
	assert.NotErrorIs(t, res.Cause, domain.ErrStore)
}

func TestWithTxRecoversPanic(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	res := WithTx(ctx, db, "test", func(ctx context.Context, tx Tx) (int, error) {
		_, _ = tx.ExecContext(ctx, `INSERT INTO subjects (subject_id, nickname) VALUES ($1, $2)`, uuid.NewString(), "a")
		panic("unexpected")
	})

	require.True(t, res.IsError())
	assert.ErrorIs(t, res.Cause, domain.ErrStore)
	assert.Equal(t, 0, countRows(t, db, "subjects"))

	// the connection must have been released
	assert.True(t, WithTx(ctx, db, "test", func(context.Context, Tx) (int, error) { return 1, nil }).IsOK())
}

func TestWithTxBeginFailure(t *testing.T) {
	db, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	db.Close()

	res := WithTx(context.Background(), db, "test", func(context.Context, Tx) (int, error) { return 1, nil })
	require.True(t, res.IsError())
	assert.ErrorIs(t, res.Cause, domain.ErrStore)
}

func countRows(t *testing.T, db *DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.SQL.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

// countingStore is a minimal Store for exercising CachedRepository alone.
type countingStore struct{}

func (countingStore) Key(int) string                             { return "k" }
func (countingStore) KeyString(k string) string                  { return k }
func (countingStore) Normalize(k string) (string, error)         { return k, nil }
func (countingStore) Validate(int) error                         { return nil }
func (countingStore) LoadAll(context.Context, Tx) ([]int, error) { return nil, nil }
func (countingStore) Upsert(context.Context, Tx, int) error      { return nil }
func (countingStore) Remove(context.Context, Tx, string) error   { return nil }
func (countingStore) RemoveAll(context.Context, Tx) error        { return nil }

func TestCachedRepositorySingleFlight(t *testing.T) {
	db := newTestDB(t)

	var calls atomic.Int32
	release := make(chan struct{})
	loader := func(ctx context.Context, tx Tx, key string) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}
	repo := NewCachedRepository[string, int]("counting", db, cache.NewMemory[string, int](cache.Options{}), loader, countingStore{}, RefreshIfHot)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]int, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = repo.Get(context.Background(), "k").OrElse(-1)
		}(i)
	}

	// let every caller reach the flight before the loader returns
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 7, v)
	}

	// now cached
	assert.Equal(t, 7, repo.Get(context.Background(), "k").OrElse(-1))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCachedRepositoryLoaderFailure(t *testing.T) {
	db := newTestDB(t)
	loader := func(context.Context, Tx, string) (int, error) { return 0, domain.NotFound("int", "k") }
	repo := NewCachedRepository[string, int]("counting", db, cache.NewMemory[string, int](cache.Options{}), loader, countingStore{}, "")

	res := repo.Get(context.Background(), "k")
	require.True(t, res.IsError())
	assert.ErrorIs(t, res.Cause, domain.ErrCacheLoad)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(res.Cause))
}

func TestCachedRepositoryGenerationFence(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	mem := cache.NewMemory[string, int](cache.Options{})
	repo := NewCachedRepository[string, int]("counting", db, mem, nil, countingStore{}, RefreshIfHot)

	stripe := stripeOf("k")
	gen := repo.generation(stripe)

	// a delete lands while a load is in flight
	repo.invalidate(ctx, "k")

	repo.cacheIfCurrent(ctx, "k", stripe, gen, 1)
	_, ok := mem.Get(ctx, "k")
	assert.False(t, ok, "a load that raced a delete must not repopulate the cache")

	repo.cacheIfCurrent(ctx, "k", stripe, repo.generation(stripe), 2)
	v, ok := mem.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestCachedRepositoryOverlappingWrites(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		order []string
	}{
		{"later commit refreshes first", []string{"b", "a"}},
		{"earlier commit refreshes first", []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := cache.NewMemory[string, int](cache.Options{})
			repo := NewCachedRepository[string, int]("counting", newTestDB(t), mem, nil, countingStore{}, RefreshIfHot)
			mem.Set(ctx, "k", 100)

			// both writers are inside their transactions at the same time
			seen := map[string]map[int]uint64{"a": repo.observe("k"), "b": repo.observe("k")}
			values := map[string]int{"a": 70, "b": 40}

			for _, w := range tt.order {
				repo.written(ctx, seen[w], values[w])
			}

			_, ok := mem.Get(ctx, "k")
			assert.False(t, ok, "overlapping writes must leave the key cold")
		})
	}
}

func TestCachedRepositoryWriteRefreshesHotKey(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory[string, int](cache.Options{})
	repo := NewCachedRepository[string, int]("counting", newTestDB(t), mem, nil, countingStore{}, RefreshIfHot)
	mem.Set(ctx, "k", 100)

	repo.written(ctx, repo.observe("k"), 40)
	repo.written(ctx, repo.observe("k"), 30)

	v, ok := mem.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, 30, v)
}

// slowCache blocks SetIfPresent until released, like a slow remote backend.
type slowCache struct {
	*cache.Memory[string, int]
	entered chan struct{}
	release chan struct{}
}

func (c *slowCache) SetIfPresent(ctx context.Context, key string, v int) bool {
	close(c.entered)
	<-c.release
	return c.Memory.SetIfPresent(ctx, key, v)
}

func TestCachedRepositoryCacheIODoesNotHoldLock(t *testing.T) {
	ctx := context.Background()
	slow := &slowCache{
		Memory:  cache.NewMemory[string, int](cache.Options{}),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	repo := NewCachedRepository[string, int]("counting", newTestDB(t), slow, nil, countingStore{}, RefreshIfHot)
	slow.Set(ctx, "k", 1)

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		repo.written(ctx, repo.observe("k"), 2)
	}()
	<-slow.entered

	others := make(chan struct{})
	go func() {
		defer close(others)
		repo.invalidate(ctx, "other")
		_ = repo.observe("other")
	}()

	select {
	case <-others:
	case <-time.After(time.Second):
		t.Fatal("generation bookkeeping blocked behind a slow cache write")
	}

	close(slow.release)
	<-writeDone
}

func TestCachedRepositoryIdentity(t *testing.T) {
	db := newTestDB(t)
	a := NewCachedRepository[string, int]("x", db, cache.NewMemory[string, int](cache.Options{}), nil, countingStore{}, "")
	b := NewCachedRepository[string, int]("x", db, cache.NewMemory[string, int](cache.Options{}), nil, countingStore{}, "")

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Contains(t, a.String(), a.ID().String())
	assert.Equal(t, "x", a.Name())
}

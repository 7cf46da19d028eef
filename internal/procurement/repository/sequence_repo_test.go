package repository

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/bitfantasy/nimo-mro/internal/procurement/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceRepository_NextPerKey(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seq := NewSequenceRepository(db)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := seq.Next(ctx, "QR")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := seq.Next(ctx, "PR-2026")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got, "keys count independently")
}

func TestRedisSequence_Next(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	seq := NewRedisSequence(rdb, "")
	ctx := context.Background()

	first, err := seq.Next(ctx, "QR")
	require.NoError(t, err)
	second, err := seq.Next(ctx, "QR")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)

	v, err := mr.Get("mro:seq:QR")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

// drawConcurrently calls Next n times from n goroutines and returns the sorted values.
func drawConcurrently(t *testing.T, seq Sequencer, key string, n int) []int64 {
	t.Helper()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		got  []int64
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := seq.Next(context.Background(), key)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			got = append(got, v)
		}()
	}
	wg.Wait()
	require.Empty(t, errs)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	return got
}

func expectedRun(n int) []int64 {
	want := make([]int64, n)
	for i := range want {
		want[i] = int64(i + 1)
	}
	return want
}

func TestRedisSequence_ConcurrentNextIsDistinct(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	got := drawConcurrently(t, NewRedisSequence(rdb, ""), "QR", 20)
	assert.Equal(t, expectedRun(20), got)
}

func TestSequenceRepository_ConcurrentNextIsDistinct(t *testing.T) {
	db := testutil.SetupTestDB(t)

	got := drawConcurrently(t, NewSequenceRepository(db), "QR", 20)
	assert.Equal(t, expectedRun(20), got)
}

func TestRedisSequence_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()

	_, err := NewRedisSequence(rdb, "x:").Next(context.Background(), "QR")
	assert.Error(t, err)
}

func TestNewRepositories_PicksSequencer(t *testing.T) {
	db := testutil.SetupTestDB(t)

	repos := NewRepositories(db, nil)
	assert.IsType(t, &SequenceRepository{}, repos.Sequence)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	repos = NewRepositories(db, rdb)
	assert.IsType(t, &RedisSequence{}, repos.Sequence)
}

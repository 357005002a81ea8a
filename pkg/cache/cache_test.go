package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(t *testing.T, clock *fakeClock) *Cache {
	t.Helper()
	c, err := New(Config{
		MaxEntries:    100,
		RetryAttempts: 2,
		RetryInterval: time.Millisecond,
		Now:           clock.Now,
	})
	require.NoError(t, err)
	return c
}

// countingFetch returns value and counts calls
func countingFetch[T any](calls *int32, value T) FetchFunc[T] {
	return func(ctx context.Context) (T, error) {
		atomic.AddInt32(calls, 1)
		return value, nil
	}
}

var opts30s = QueryOptions{StaleTime: 30 * time.Second}

func TestQuery_FreshReadMakesNoCall(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)
	ctx := context.Background()
	key := Key{"desks", "list"}
	var calls int32

	got, err := Query(ctx, c, key, opts30s, countingFetch(&calls, []string{"A1"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, got)
	assert.Equal(t, StateFresh, c.State(key))

	clock.Advance(29 * time.Second)
	got, err = Query(ctx, c, key, opts30s, countingFetch(&calls, []string{"B2"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, got)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQuery_StaleReadReturnsStaleAndCoalescesRevalidation(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)
	ctx := context.Background()
	key := Key{"reservations", "my"}

	c.Set(key, []string{"old"})
	clock.Advance(time.Minute)
	require.Equal(t, StateStale, c.State(key))

	var calls int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []string{"new"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := Query(ctx, c, key, opts30s, fetch)
			assert.NoError(t, err)
			assert.Equal(t, []string{"old"}, got)
		}()
	}
	wg.Wait()
	close(release)
	c.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	got, ok := Peek[[]string](c, key)
	require.True(t, ok)
	assert.Equal(t, []string{"new"}, got)
	assert.Equal(t, StateFresh, c.State(key))
}

func TestQuery_RequireFreshBlocksOnStale(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)
	key := Key{"floors", "list"}

	c.Set(key, 1)
	clock.Advance(time.Hour)

	var calls int32
	got, err := Query(context.Background(), c, key, QueryOptions{StaleTime: time.Minute, RequireFresh: true}, countingFetch(&calls, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, got)
	assert.Equal(t, int32(1), calls)
}

func TestQuery_ConcurrentMissSharesOneFetch(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	key := Key{"users", "list"}

	var calls int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 42, nil
	}

	results := make(chan int, 3)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := Query(context.Background(), c, key, opts30s, fetch)
			assert.NoError(t, err)
			results <- got
		}()
	}

	require.Eventually(t, func() bool { return c.State(key) == StateLoading }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	for got := range results {
		assert.Equal(t, 42, got)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQuery_RetriesTransientErrors(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	var calls int32
	fetch := func(ctx context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return "", errors.New("connection reset")
		}
		return "ok", nil
	}

	got, err := Query(context.Background(), c, Key{"auth", "me"}, opts30s, fetch)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(3), calls)
}

func TestQuery_DoesNotRetryNonRetryable(t *testing.T) {
	notFound := errors.New("not found")
	c, err := New(Config{
		RetryAttempts: 3,
		RetryInterval: time.Millisecond,
		Retryable:     func(err error) bool { return !errors.Is(err, notFound) },
	})
	require.NoError(t, err)

	var calls int32
	fetch := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", notFound
	}

	_, err = Query(context.Background(), c, Key{"desks", "detail", "9"}, opts30s, fetch)
	assert.Same(t, notFound, err)
	assert.Equal(t, int32(1), calls)
	assert.Equal(t, StateError, c.State(Key{"desks", "detail", "9"}))
}

func TestQuery_DisableRetryMakesOneAttempt(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	boom := errors.New("boom")
	var calls int32
	fetch := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", boom
	}

	_, err := Query(context.Background(), c, Key{"auth", "me"}, QueryOptions{DisableRetry: true}, fetch)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), calls)
}

func TestQuery_ErrorKeepsPreviousValueAndRefetches(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(t, clock)
	key := Key{"floors", "list"}
	c.Set(key, "v1")
	clock.Advance(time.Hour)

	boom := errors.New("boom")
	_, err := Query(context.Background(), c, key, QueryOptions{StaleTime: time.Minute, RequireFresh: true, DisableRetry: true},
		func(ctx context.Context) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateError, c.State(key))

	prev, ok := Peek[string](c, key)
	require.True(t, ok)
	assert.Equal(t, "v1", prev)

	var calls int32
	got, err := Query(context.Background(), c, key, opts30s, countingFetch(&calls, "v2"))
	require.NoError(t, err)
	assert.Equal(t, "v2", got)
	assert.Equal(t, int32(1), calls)
}

func TestQuery_SupersededResponseIsDiscarded(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	key := Key{"reservations", "my"}

	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		close(started)
		<-release
		return "late", nil
	}

	done := make(chan string)
	go func() {
		got, err := Query(context.Background(), c, key, opts30s, fetch)
		assert.NoError(t, err)
		done <- got
	}()

	<-started
	c.Set(key, "written")
	close(release)

	// the reader that issued the fetch still gets its answer
	assert.Equal(t, "late", <-done)

	got, ok := Peek[string](c, key)
	require.True(t, ok)
	assert.Equal(t, "written", got)
}

func TestQuery_ResponseAfterClearIsDiscarded(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	key := Key{"auth", "me"}

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = Query(context.Background(), c, key, opts30s, func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "alice", nil
		})
	}()

	<-started
	c.Clear()
	close(release)
	<-done

	_, ok := Peek[string](c, key)
	assert.False(t, ok)
	assert.Equal(t, StateAbsent, c.State(key))
}

func TestQuery_CancelledReaderDoesNotCancelSharedFetch(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	key := Key{"desks", "list"}

	release := make(chan struct{})
	var calls int32
	fetch := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "desks", ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error)
	go func() {
		_, err := Query(ctx, c, key, opts30s, fetch)
		errs <- err
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errs, context.Canceled)

	close(release)
	require.Eventually(t, func() bool { return c.State(key) == StateFresh }, time.Second, time.Millisecond)
}

func TestInvalidate_MarksPrefixStale(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	ctx := context.Background()
	var calls int32

	for _, key := range []Key{{"desks", "list", "{}"}, {"desks", "floor", "2"}, {"floors", "list"}} {
		_, err := Query(ctx, c, key, opts30s, countingFetch(&calls, "v"))
		require.NoError(t, err)
	}

	c.Invalidate(Key{"desks"})

	assert.Equal(t, StateStale, c.State(Key{"desks", "list", "{}"}))
	assert.Equal(t, StateStale, c.State(Key{"desks", "floor", "2"}))
	assert.Equal(t, StateFresh, c.State(Key{"floors", "list"}))

	// value stays readable until refetched
	got, ok := Peek[string](c, Key{"desks", "list", "{}"})
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestRemove_DeletesPrefix(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	c.Set(Key{"floors", "detail", "3"}, "f3")
	c.Set(Key{"floors", "detail", "4"}, "f4")
	c.Set(Key{"floors", "list"}, "all")

	c.Remove(Key{"floors", "detail", "3"})

	assert.Equal(t, StateAbsent, c.State(Key{"floors", "detail", "3"}))
	_, ok := Peek[string](c, Key{"floors", "detail", "4"})
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestClear_DropsEverything(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	c.Set(Key{"auth", "me"}, "alice")
	c.Set(Key{"reservations", "my"}, []int{1})

	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, StateAbsent, c.State(Key{"auth", "me"}))
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := New(Config{MaxEntries: 2})
	require.NoError(t, err)

	c.Set(Key{"a"}, 1)
	c.Set(Key{"b"}, 2)
	_, err = Query(context.Background(), c, Key{"a"}, QueryOptions{StaleTime: time.Hour}, func(ctx context.Context) (int, error) {
		return 0, errors.New("unexpected fetch")
	})
	require.NoError(t, err)
	c.Set(Key{"c"}, 3)

	_, okA := Peek[int](c, Key{"a"})
	_, okB := Peek[int](c, Key{"b"})
	assert.True(t, okA)
	assert.False(t, okB)
}

func TestKey_String(t *testing.T) {
	key := Key{"desks"}.With("available", "s|e")
	assert.Equal(t, "desks/available/s|e", key.String())
	assert.True(t, key.HasPrefix(Key{"desks"}))
	assert.False(t, Key{"desks"}.HasPrefix(key))
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestMeta_ForgetsKeysThatAreGone(t *testing.T) {
	c := newTestCache(t, newFakeClock())
	ctx := context.Background()
	var calls int32

	for i := range 20 {
		key := Key{"desks", "available", fmt.Sprintf("2025-03-01T%02d:00|2025-03-01T%02d:30", i, i)}
		_, err := Query(ctx, c, key, opts30s, countingFetch(&calls, []int{i}))
		require.NoError(t, err)
	}
	require.Len(t, c.meta, 20)

	c.Remove(Key{"desks", "available"})
	assert.Empty(t, c.meta)

	// a failed fetch that was superseded leaves nothing behind either
	key := Key{"desks", "detail", "9"}
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := Query(ctx, c, key, opts30s, func(ctx context.Context) (int, error) {
			<-release
			return 0, errors.New("boom")
		})
		done <- err
	}()
	require.Eventually(t, func() bool { return c.State(key) == StateLoading }, time.Second, time.Millisecond)
	c.Remove(key)
	close(release)
	require.Error(t, <-done)
	assert.Empty(t, c.meta)
}

func TestMeta_EvictionForgetsKeys(t *testing.T) {
	c, err := New(Config{MaxEntries: 2})
	require.NoError(t, err)

	for _, name := range []string{"a", "b", "c", "d"} {
		c.Set(Key{name}, name)
	}

	assert.Equal(t, 2, c.Len())
	assert.Len(t, c.meta, 2)
}

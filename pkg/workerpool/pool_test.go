package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProcess_Success(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())

	items := []Item[string]{
		{ID: "2902094", Execute: func(ctx context.Context) (string, error) { return "a", nil }},
		{ID: "2902095", Execute: func(ctx context.Context) (string, error) { return "b", nil }},
		{ID: "2902096", Execute: func(ctx context.Context) (string, error) { return "c", nil }},
	}

	results := Process(context.Background(), pool, items, nil)
	require.Len(t, results, 3)

	byID := make(map[string]string)
	for _, r := range results {
		require.NoError(t, r.Err)
		byID[r.ID] = r.Value
	}
	assert.Equal(t, map[string]string{"2902094": "a", "2902095": "b", "2902096": "c"}, byID)
}

func TestProcess_FailureIsIsolated(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())
	boom := errors.New("details endpoint down")

	items := []Item[int]{
		{ID: "ok-1", Execute: func(ctx context.Context) (int, error) { return 1, nil }},
		{ID: "bad", Execute: func(ctx context.Context) (int, error) { return 0, boom }},
		{ID: "ok-2", Execute: func(ctx context.Context) (int, error) { return 2, nil }},
	}

	results := Process(context.Background(), pool, items, nil)
	require.Len(t, results, 3)
	ordered := make([]Result[int], len(items))
	for _, r := range results {
		ordered[r.Index] = r
	}

	assert.NoError(t, ordered[0].Err)
	assert.Equal(t, 1, ordered[0].Value)
	assert.ErrorIs(t, ordered[1].Err, boom)
	assert.NoError(t, ordered[2].Err)
	assert.Equal(t, 2, ordered[2].Value)
}

func TestProcess_Empty(t *testing.T) {
	pool := New(Config{}, zap.NewNop())
	assert.Nil(t, Process[int](context.Background(), pool, nil, nil))
	assert.Equal(t, 8, pool.MaxConcurrent())
}

func TestProcess_BoundsConcurrency(t *testing.T) {
	const limit = 3
	pool := New(Config{MaxConcurrent: limit}, zap.NewNop())

	var current, peak int32
	items := make([]Item[int], 12)
	for i := range items {
		items[i] = Item[int]{
			ID: fmt.Sprintf("float-%d", i),
			Execute: func(ctx context.Context) (int, error) {
				n := atomic.AddInt32(&current, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&current, -1)
				return 0, nil
			},
		}
	}

	results := Process(context.Background(), pool, items, nil)
	assert.Len(t, results, len(items))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(limit))
}

func TestProcess_Progress(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zap.NewNop())

	var mu sync.Mutex
	var calls []int
	items := make([]Item[int], 4)
	for i := range items {
		items[i] = Item[int]{ID: fmt.Sprint(i), Execute: func(ctx context.Context) (int, error) { return 0, nil }}
	}

	Process(context.Background(), pool, items, func(completed, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 4, total)
		calls = append(calls, completed)
	})

	assert.Equal(t, []int{1, 2, 3, 4}, calls)
}

func TestProcess_CancelledContextSettlesWaiting(t *testing.T) {
	pool := New(Config{MaxConcurrent: 1}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	items := []Item[int]{
		{ID: "blocker", Execute: func(ctx context.Context) (int, error) {
			close(started)
			<-ctx.Done()
			return 0, ctx.Err()
		}},
		{ID: "waiting", Execute: func(ctx context.Context) (int, error) { return 1, nil }},
	}

	go func() {
		<-started
		cancel()
	}()

	results := Process(ctx, pool, items, nil)
	require.Len(t, results, 2)
	for _, r := range results {
		if r.ID == "blocker" {
			assert.ErrorIs(t, r.Err, context.Canceled)
		}
	}
}

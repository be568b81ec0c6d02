package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolMapKeepsOrderAndErrors(t *testing.T) {
	errOdd := errors.New("odd")
	wp := NewWorkerPool(func(ctx context.Context, v int) (int, error) {
		if v%2 == 1 {
			return 0, errOdd
		}
		return v * 10, nil
	}, 3)

	var progressCalls int
	wp.OnProgress(func(current, total int) {
		progressCalls++
		assert.Equal(t, 5, total)
	})

	results, err := wp.Map(context.Background(), []int{0, 1, 2, 3, 4})
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.Equal(t, 0, results[0].Value)
	assert.ErrorIs(t, results[1].Err, errOdd)
	assert.Equal(t, 20, results[2].Value)
	assert.ErrorIs(t, results[3].Err, errOdd)
	assert.Equal(t, 40, results[4].Value)
	assert.Equal(t, 5, progressCalls)
}

func TestWorkerPoolLimitInFlight(t *testing.T) {
	var current, peak int32
	wp := NewWorkerPool(func(ctx context.Context, v int) (int, error) {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return v, nil
	}, 8)
	wp.LimitInFlight(2)

	input := make([]int, 20)
	_, err := wp.Map(context.Background(), input)
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestWorkerPoolCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	wp := NewWorkerPool(func(ctx context.Context, v int) (int, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			cancel()
		}
		return v, nil
	}, 1)

	results, err := wp.Map(ctx, []int{1, 2, 3, 4, 5, 6})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 6)
	assert.Less(t, atomic.LoadInt32(&calls), int32(6))
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), 0))
}

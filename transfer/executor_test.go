package transfer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRunsAllTasks(t *testing.T) {
	pool := NewWorkerPool(3)

	var counter int64
	for i := 0; i < 20; i++ {
		require.NoError(t, pool.Submit(func() {
			atomic.AddInt64(&counter, 1)
		}))
	}

	pool.Close()
	assert.Equal(t, int64(20), atomic.LoadInt64(&counter))
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	const limit = 2
	pool := NewWorkerPool(limit)

	var running int64
	var peak int64
	var mu sync.Mutex

	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(func() {
			current := atomic.AddInt64(&running, 1)
			mu.Lock()
			if current > peak {
				peak = current
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&running, -1)
		}))
	}

	pool.Close()
	assert.LessOrEqual(t, peak, int64(limit))
}

func TestWorkerPoolSubmitDoesNotBlock(t *testing.T) {
	pool := NewWorkerPool(1)
	defer pool.Close()

	release := make(chan struct{})
	require.NoError(t, pool.Submit(func() { <-release }))

	// The single slot is occupied; further submissions must still return
	// immediately.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			_ = pool.Submit(func() {})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked while the pool was saturated")
	}
	close(release)
}

func TestWorkerPoolRejectsAfterClose(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Close()

	err := pool.Submit(func() {
		t.Error("task must not run after Close")
	})
	assert.Error(t, err)
}

func TestWorkerPoolDefaultsConcurrency(t *testing.T) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	stats := pool.Stats()
	assert.Equal(t, 5, stats.MaxConcurrency)
	assert.Equal(t, 5, stats.AvailableSlots)
	assert.Zero(t, stats.CurrentConcurrency)
}

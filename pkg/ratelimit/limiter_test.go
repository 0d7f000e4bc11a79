package ratelimit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jitter absorbs timer and scheduler noise in spacing assertions
const jitter = 5 * time.Millisecond

func TestGateSpacesConcurrentCallers(t *testing.T) {
	const interval = 40 * time.Millisecond
	gate := NewGate(interval)

	var (
		mu     sync.Mutex
		grants []time.Time
		wg     sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, gate.Wait(context.Background()))
			mu.Lock()
			grants = append(grants, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(grants, func(i, j int) bool { return grants[i].Before(grants[j]) })
	for i := 1; i < len(grants); i++ {
		gap := grants[i].Sub(grants[i-1])
		assert.GreaterOrEqual(t, gap, interval-jitter, "grant %d came %s after the previous one", i, gap)
	}
	assert.GreaterOrEqual(t, grants[len(grants)-1].Sub(grants[0]), 4*interval-jitter)
}

func TestGateFirstWaitIsImmediate(t *testing.T) {
	gate := NewGate(time.Hour)

	start := time.Now()
	require.NoError(t, gate.Wait(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, time.Hour, gate.Interval())
}

func TestGateZeroIntervalNeverBlocks(t *testing.T) {
	gate := NewGate(0)
	for i := 0; i < 100; i++ {
		assert.True(t, gate.Allow())
	}
}

func TestGateWaitHonorsCancellation(t *testing.T) {
	gate := NewGate(time.Hour)
	require.NoError(t, gate.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := gate.Wait(ctx)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGateReset(t *testing.T) {
	gate := NewGate(time.Hour)
	assert.True(t, gate.Allow())
	assert.False(t, gate.Allow())

	gate.Reset()
	assert.True(t, gate.Allow())
}

func TestSlidingWindow(t *testing.T) {
	sw := NewSlidingWindow(3, 100*time.Millisecond)

	for i := 0; i < 3; i++ {
		assert.True(t, sw.Allow(), "request %d", i+1)
	}
	assert.False(t, sw.Allow())

	start := time.Now()
	require.NoError(t, sw.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond-jitter-jitter)

	sw.Reset()
	assert.Empty(t, sw.requests)
	assert.True(t, sw.Allow())
}

func TestSlidingWindowWaitHonorsCancellation(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	require.True(t, sw.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sw.Wait(ctx), context.Canceled)
}

func TestLimitersSatisfyInterface(t *testing.T) {
	var _ Limiter = NewGate(time.Second)
	var _ Limiter = NewSlidingWindow(1, time.Second)
}

package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow reports whether a request may proceed now, consuming the slot if so
	Allow() bool
	// Wait blocks until a request is allowed or ctx is done
	Wait(ctx context.Context) error
	// Reset resets the limiter state
	Reset()
}

// Gate is a single shared gate that spaces acquisitions by at least a fixed
// interval, regardless of how many goroutines call Wait. Grants are
// serialized; a zero interval disables spacing.
type Gate struct {
	mu       sync.Mutex
	interval time.Duration
	limiter  *rate.Limiter
}

// NewGate creates a gate with the given minimum spacing
func NewGate(interval time.Duration) *Gate {
	return &Gate{
		interval: interval,
		limiter:  newIntervalLimiter(interval),
	}
}

func newIntervalLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

func (g *Gate) current() *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limiter
}

// Allow takes the slot if the interval since the last grant has elapsed
func (g *Gate) Allow() bool {
	return g.current().Allow()
}

// Wait blocks until the interval since the previous grant has elapsed. A
// canceled context releases the waiter without consuming a slot.
func (g *Gate) Wait(ctx context.Context) error {
	return g.current().Wait(ctx)
}

// Reset forgets the previous grant so the next Wait returns immediately
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limiter = newIntervalLimiter(g.interval)
}

// Interval returns the configured minimum spacing
func (g *Gate) Interval() time.Duration {
	return g.interval
}

// SlidingWindow allows at most maxRequests within any windowSize period.
// The search client uses it as a calls-per-second quota on top of the Gate.
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
	}
}

// Allow checks if a request can proceed
func (sw *SlidingWindow) Allow() bool {
	_, ok := sw.tryAcquire(time.Now())
	return ok
}

// Wait blocks until the oldest request in the window expires
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		wait, ok := sw.tryAcquire(time.Now())
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire records a request at now if there is room, otherwise returns
// how long until the oldest request leaves the window.
func (sw *SlidingWindow) tryAcquire(now time.Time) (time.Duration, bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.cleanOldRequests(now)
	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return 0, true
	}

	wait := sw.windowSize - now.Sub(sw.requests[0])
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// cleanOldRequests drops requests that left the window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}
	if i > 0 {
		sw.requests = append(sw.requests[:0], sw.requests[i:]...)
	}
}

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "imageharvester/pkg/errors"
	"imageharvester/pkg/logger"
)

func transient() error {
	return errs.NewNetwork("read tcp: i/o timeout", nil, true)
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		Base:   100 * time.Millisecond,
		Cap:    1 * time.Second,
		Factor: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{6, 1 * time.Second},
		{500, 1 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestSearchBackoffSchedule(t *testing.T) {
	backoff := SearchBackoff()
	backoff.rand = func() float64 { return 0.5 }

	assert.Equal(t, time.Second, backoff.Delay(1))
	assert.Equal(t, 2*time.Second, backoff.Delay(2))
	assert.Equal(t, 4*time.Second, backoff.Delay(3))
	assert.Equal(t, 30*time.Second, backoff.Delay(10))

	backoff.rand = func() float64 { return 0 }
	assert.Equal(t, 900*time.Millisecond, backoff.Delay(1))
}

func TestExponentialBackoffJitterStaysInRange(t *testing.T) {
	backoff := &ExponentialBackoff{
		Base:   100 * time.Millisecond,
		Cap:    time.Second,
		Factor: 2.0,
		Jitter: 0.3,
	}

	for i := 0; i < 50; i++ {
		d := backoff.Delay(2)
		assert.GreaterOrEqual(t, d, 140*time.Millisecond)
		assert.LessOrEqual(t, d, 260*time.Millisecond)
	}
}

func TestConstantBackoff(t *testing.T) {
	b := &ConstantBackoff{Pause: 50 * time.Millisecond}
	assert.Equal(t, time.Duration(0), b.Delay(0))
	assert.Equal(t, 50*time.Millisecond, b.Delay(1))
	assert.Equal(t, 50*time.Millisecond, b.Delay(7))
}

func TestShouldRetry(t *testing.T) {
	p := DownloadPolicy(1, 0)

	assert.True(t, p.ShouldRetry(transient()))
	assert.False(t, p.ShouldRetry(errs.NewNetwork("connection refused", nil, false)))
	assert.False(t, p.ShouldRetry(errs.NewHTTP(404, "Not Found")))
	assert.False(t, p.ShouldRetry(&errs.Error{Type: errs.ErrorTypeHTTP, Code: 503, Transient: true}))
	assert.False(t, p.ShouldRetry(errors.New("untyped")))

	sp := SearchPolicy(3)
	assert.True(t, sp.ShouldRetry(&errs.Error{Type: errs.ErrorTypeRateLimit, Code: 429, Transient: true}))
	assert.False(t, sp.ShouldRetry(&errs.Error{Type: errs.ErrorTypeAuth, Code: 401}))
}

func TestDoSucceedsAfterTransientFailure(t *testing.T) {
	p := DownloadPolicy(1, 0)
	p.Logger = logger.NewNopLogger()

	var seen []int
	err := Do(context.Background(), p, func(attempt int) error {
		seen = append(seen, attempt)
		if attempt == 1 {
			return transient()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestDoStopsAtMaxAttempts(t *testing.T) {
	p := DownloadPolicy(2, time.Millisecond)
	p.Logger = logger.NewNopLogger()

	var retries []int
	p.OnRetry = func(attempt int, err error, delay time.Duration) {
		retries = append(retries, attempt)
		assert.Equal(t, time.Millisecond, delay)
	}

	calls := 0
	err := Do(context.Background(), p, func(int) error {
		calls++
		return transient()
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retries)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNetwork))
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	p := DownloadPolicy(3, 0)
	p.Logger = logger.NewNopLogger()

	calls := 0
	err := Do(context.Background(), p, func(int) error {
		calls++
		return errs.NewHTTP(404, "Not Found")
	})

	assert.Equal(t, 1, calls)
	var e *errs.Error
	require.True(t, errs.As(err, &e))
	assert.Equal(t, 404, e.Code)
}

func TestDoZeroRetries(t *testing.T) {
	p := DownloadPolicy(0, 0)
	p.Logger = logger.NewNopLogger()

	calls := 0
	_ = Do(context.Background(), p, func(int) error {
		calls++
		return transient()
	})
	assert.Equal(t, 1, calls)
}

func TestDoHonorsCancellationDuringPause(t *testing.T) {
	p := DownloadPolicy(5, time.Hour)
	p.Logger = logger.NewNopLogger()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, p, func(int) error {
		calls++
		cancel()
		return transient()
	})

	assert.Equal(t, 1, calls)
	assert.True(t, errs.IsType(err, errs.ErrorTypeCanceled))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelayForOverridesBackoff(t *testing.T) {
	p := SearchPolicy(2)
	p.Logger = logger.NewNopLogger()
	p.DelayFor = func(err error) (time.Duration, bool) {
		return 5 * time.Millisecond, errs.IsType(err, errs.ErrorTypeRateLimit)
	}

	var delays []time.Duration
	p.OnRetry = func(_ int, _ error, d time.Duration) { delays = append(delays, d) }

	_ = Do(context.Background(), p, func(int) error {
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Code: 429, Transient: true}
	})
	assert.Equal(t, []time.Duration{5 * time.Millisecond}, delays)
}

func TestDoWithResult(t *testing.T) {
	p := DownloadPolicy(1, 0)
	p.Logger = logger.NewNopLogger()

	got, err := DoWithResult(context.Background(), p, func(attempt int) (string, error) {
		if attempt == 1 {
			return "", transient()
		}
		return "payload", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "payload", got)
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), 0))
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, d := range []time.Duration{time.Hour, 0} {
		err := Sleep(ctx, d)
		assert.ErrorIs(t, err, context.Canceled)
		assert.True(t, errs.IsType(err, errs.ErrorTypeCanceled))
	}
}

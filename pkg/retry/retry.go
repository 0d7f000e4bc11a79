package retry

import (
	"context"
	"time"

	errs "imageharvester/pkg/errors"
	"imageharvester/pkg/logger"
)

// Operation performs one attempt. attempt starts at 1.
type Operation func(attempt int) error

// OperationWithResult is an Operation that produces a value
type OperationWithResult[T any] func(attempt int) (T, error)

// Policy is an explicit bounded-retry policy. An error is retried only when
// it is a typed error flagged transient whose type is listed in
// RetryableTypes, and only while attempts remain.
type Policy struct {
	// MaxAttempts counts the first attempt; values below 1 mean 1
	MaxAttempts int
	// RetryableTypes lists the error types eligible for another attempt
	RetryableTypes []errs.ErrorType
	// Backoff gives the pause before the next attempt
	Backoff Schedule
	// DelayFor may override the backoff for a specific error, e.g. Retry-After
	DelayFor func(err error) (time.Duration, bool)
	// OnRetry is called before each pause
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
}

// DownloadPolicy retries transient network failures retryCount times with
// a constant pause. HTTP status errors are never retried.
func DownloadPolicy(retryCount int, delay time.Duration) *Policy {
	return &Policy{
		MaxAttempts:    retryCount + 1,
		RetryableTypes: []errs.ErrorType{errs.ErrorTypeNetwork},
		Backoff:        &ConstantBackoff{Pause: delay},
	}
}

// SearchPolicy retries transient network, throttling and server failures
// against the search provider with exponential backoff (1s, 2s, 4s, ...).
func SearchPolicy(maxAttempts int) *Policy {
	return &Policy{
		MaxAttempts: maxAttempts,
		RetryableTypes: []errs.ErrorType{
			errs.ErrorTypeNetwork,
			errs.ErrorTypeRateLimit,
			errs.ErrorTypeProvider,
		},
		Backoff: SearchBackoff(),
	}
}

// ShouldRetry reports whether err is eligible for another attempt
func (p *Policy) ShouldRetry(err error) bool {
	var e *errs.Error
	if !errs.As(err, &e) || !e.Transient {
		return false
	}
	for _, t := range p.RetryableTypes {
		if e.Type == t {
			return true
		}
	}
	return false
}

func (p *Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p *Policy) delay(attempt int, err error) time.Duration {
	if p.DelayFor != nil {
		if d, ok := p.DelayFor(err); ok {
			return d
		}
	}
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff.Delay(attempt)
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// policy runs out of attempts. The last error is returned unchanged so
// callers can inspect its type. A context canceled during a pause yields a
// canceled error.
func Do(ctx context.Context, p *Policy, op Operation) error {
	if p == nil {
		p = &Policy{MaxAttempts: 1}
	}
	log := logger.OrDefault(p.Logger)

	for attempt := 1; ; attempt++ {
		err := op(attempt)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		if !p.ShouldRetry(err) {
			return err
		}
		if attempt >= p.attempts() {
			log.WarnWithFields("max retry attempts exceeded", map[string]interface{}{
				"attempts":   attempt,
				"last_error": err.Error(),
			})
			return err
		}

		delay := p.delay(attempt, err)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		log.DebugWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": p.attempts(),
		})

		if err := Sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// DoWithResult is Do for operations that return a value
func DoWithResult[T any](ctx context.Context, p *Policy, op OperationWithResult[T]) (T, error) {
	var result T
	err := Do(ctx, p, func(attempt int) error {
		var opErr error
		result, opErr = op(attempt)
		return opErr
	})
	return result, err
}

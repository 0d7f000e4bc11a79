package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs an outbound HTTP request at a level matching its status.
// Status 0 means the request never got a response.
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": float64(duration.Microseconds()) / 1000,
	}

	l = OrDefault(l)
	switch {
	case statusCode >= 200 && statusCode < 300:
		l.DebugWithFields("HTTP request completed", fields)
	case statusCode >= 400 && statusCode < 500:
		l.WarnWithFields("HTTP request client error", fields)
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	default:
		l.WarnWithFields("HTTP request failed", fields)
	}
}

// LogRateLimit logs a provider throttling event
func LogRateLimit(l Logger, endpoint string, retryAfter time.Duration) {
	OrDefault(l).WithFields(map[string]interface{}{
		"endpoint":    endpoint,
		"retry_after": retryAfter,
		"action":      "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogOutcome logs the terminal result of one reference
func LogOutcome(l Logger, kind, url string, err error, fields map[string]interface{}) {
	l = OrDefault(l).WithFields(fields).WithFields(map[string]interface{}{
		"outcome": kind,
		"url":     url,
	})

	if err != nil {
		l.WithError(err).Warn("Image failed")
		return
	}
	l.Debug("Image processed")
}

// LogProgress logs how many admitted references have completed
func LogProgress(l Logger, query string, completed, admitted, limit int) {
	percentage := 0.0
	if limit > 0 {
		percentage = float64(completed) / float64(limit) * 100
	}

	OrDefault(l).WithFields(map[string]interface{}{
		"query":      query,
		"completed":  completed,
		"admitted":   admitted,
		"limit":      limit,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Debug("Harvest progress")
}

// LogRunSummary logs the totals of a finished harvest run
func LogRunSummary(l Logger, runID, query string, admitted, saved, skipped, failed int, elapsed time.Duration) {
	OrDefault(l).InfoWithFields("Harvest run finished", map[string]interface{}{
		"run_id":     runID,
		"query":      query,
		"admitted":   admitted,
		"saved":      saved,
		"skipped":    skipped,
		"failed":     failed,
		"elapsed_ms": elapsed.Milliseconds(),
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	l = OrDefault(l).WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Debug("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	OrDefault(l).WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Debug("Component stopped")
}

// LogMetrics logs performance metrics
func LogMetrics(l Logger, operation string, metrics map[string]interface{}) {
	fields := map[string]interface{}{
		"operation": operation,
		"type":      "metrics",
	}
	for k, v := range metrics {
		fields[k] = v
	}
	OrDefault(l).InfoWithFields("Performance metrics", fields)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }

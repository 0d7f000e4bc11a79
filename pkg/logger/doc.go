// Package logger provides the structured logging interface used across the
// harvester.
//
// It wraps zerolog behind a small Logger interface. Console output is
// colored and goes to stderr so it does not interleave with the progress
// line on stdout; file output, when configured, is JSON.
//
//	err := logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("query", "red pandas")
//	log.Info("Harvest started")
//
// Components take a Logger in their constructors. Tests pass
// NewNopLogger() or a TestLogger to capture and assert on entries.
package logger

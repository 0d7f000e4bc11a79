package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imageharvester/pkg/config"
)

func bufferLogger(buf *bytes.Buffer) *zerologLogger {
	zlog := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog, fields: make(map[string]interface{})}
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug level", cfg: &config.LoggingConfig{Level: "debug"}},
		{name: "invalid level", cfg: &config.LoggingConfig{Level: "invalid"}, wantErr: true},
		{name: "explicit file", cfg: &config.LoggingConfig{Level: "info", File: filepath.Join(dir, "a", "harvester.log")}},
		{name: "file per run", cfg: &config.LoggingConfig{Level: "info", FilePerRun: true, Directory: filepath.Join(dir, "logs")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}

	entries, err := os.ReadDir(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLogFilePath(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	assert.Equal(t, "/var/log/h.log", LogFilePath(&config.LoggingConfig{File: "/var/log/h.log", FilePerRun: true}, now))
	assert.Equal(t, "", LogFilePath(&config.LoggingConfig{}, now))
	assert.Equal(t, filepath.Join("logs", "image_harvester_20240309_140507.log"),
		LogFilePath(&config.LoggingConfig{FilePerRun: true}, now))
	assert.Equal(t, filepath.Join("out", "image_harvester_20240309_140507.log"),
		LogFilePath(&config.LoggingConfig{FilePerRun: true, Directory: "out"}, now))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestFieldsAreWritten(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	l.WithField("query", "red panda").
		WithFields(map[string]interface{}{"admitted": 3, "done": true}).
		InfoWithFields("run finished", map[string]interface{}{"elapsed": 2 * time.Second})

	out := buf.String()
	assert.Contains(t, out, "run finished")
	assert.Contains(t, out, `"query":"red panda"`)
	assert.Contains(t, out, `"admitted":3`)
	assert.Contains(t, out, `"done":true`)
	assert.Contains(t, out, `"elapsed":2000`)
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := bufferLogger(&buf)
	_ = parent.WithField("child", "only")

	parent.Info("parent message")
	assert.NotContains(t, buf.String(), "child")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	assert.Same(t, l, l.WithError(nil))

	l.WithError(errors.New("connection reset")).Error("fetch failed")
	assert.Contains(t, buf.String(), "connection reset")
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Initialize(&config.LoggingConfig{Level: "debug"}))
	assert.NotNil(t, GetLogger())

	Debug("debug message")
	Info("info message")
	WithField("key", "value").Info("with field")
	WithError(errors.New("boom")).Error("with error")

	tl := NewTestLogger()
	assert.Same(t, tl, OrDefault(tl))
	assert.Equal(t, GetLogger(), OrDefault(nil))
}

func TestTestLoggerCapturesDerivedLoggers(t *testing.T) {
	tl := NewTestLogger()
	child := tl.WithField("component", "downloader").WithError(errors.New("timeout"))

	child.Warn("retrying")
	tl.Info("started")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "WARN", msgs[0].Level)
	assert.Equal(t, "downloader", msgs[0].Fields["component"])
	assert.EqualError(t, msgs[0].Error, "timeout")
	assert.True(t, tl.HasMessage("started"))
	assert.Len(t, tl.GetMessagesByLevel("INFO"), 1)
	assert.False(t, tl.HasError())

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogRequest(tl, "GET", "https://example.com/a.jpg", 200, 15*time.Millisecond)
	LogRequest(tl, "GET", "https://example.com/b.jpg", 404, time.Millisecond)
	LogRequest(tl, "GET", "https://example.com/c.jpg", 503, time.Millisecond)
	LogRequest(tl, "GET", "https://example.com/d.jpg", 0, time.Second)

	assert.Len(t, tl.GetMessagesByLevel("DEBUG"), 1)
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 2)
	assert.Len(t, tl.GetMessagesByLevel("ERROR"), 1)

	tl.Clear()
	LogOutcome(tl, "failed", "https://example.com/b.jpg", errors.New("http error"), map[string]interface{}{"seq": 2})
	LogOutcome(tl, "saved", "https://example.com/a.jpg", nil, nil)

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Image failed", msgs[0].Message)
	assert.Equal(t, 2, msgs[0].Fields["seq"])
	assert.Equal(t, "failed", msgs[0].Fields["outcome"])
	assert.Equal(t, "Image processed", msgs[1].Message)

	tl.Clear()
	LogRateLimit(tl, "images/search", 2*time.Second)
	LogProgress(tl, "cats", 2, 4, 10)
	LogComponentStart(tl, "worker_pool", map[string]interface{}{"workers": 4})
	LogComponentStop(tl, "worker_pool", "drained")
	LogMetrics(tl, "harvest", map[string]interface{}{"saved": 3})
	LogRunSummary(tl, "run-1", "cats", 4, 2, 1, 1, time.Second)

	assert.True(t, tl.HasMessage("Rate limit reached, backing off"))
	assert.True(t, tl.HasMessage("Harvest progress"))
	assert.True(t, tl.HasMessage("Component started"))
	assert.True(t, tl.HasMessage("Component stopped"))
	assert.True(t, tl.HasMessage("Performance metrics"))
	require.True(t, tl.HasMessage("Harvest run finished"))
	summary := tl.GetMessagesByLevel("INFO")
	assert.Equal(t, 4, summary[len(summary)-1].Fields["admitted"])
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("a", 1).WithError(errors.New("x")).Error("nothing")
	assert.Nil(t, l.GetZerolog())
}

package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/locallm/internal/core/domain"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNew_JSONToWriterWhenNotTerminal(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer

	log, cleanup, err := New(&Config{Level: "info", Writer: &buf})
	require.NoError(t, err)
	defer cleanup()

	log.Info("connection restored", "error", errors.New("boom"), "server", "\x1b[34mhttp://localhost:1234\x1b[0m")
	log.Debug("hidden")

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record))
	assert.Equal(t, "connection restored", record["msg"])
	assert.Equal(t, "boom", record["error"])
	assert.Equal(t, "http://localhost:1234", record["server"])
	assert.Contains(t, record, "timestamp")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_RoundsDurations(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer

	log, cleanup, err := New(&Config{Level: "debug", Writer: &buf})
	require.NoError(t, err)
	defer cleanup()

	log.Debug("retrying request", "delay", 1234567*time.Microsecond)

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record))
	assert.Equal(t, "1.235s", record["delay"])
}

func TestNew_FileOutputKeepsDebugRecords(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	dir := t.TempDir()
	var terminal bytes.Buffer

	log, cleanup, err := New(&Config{
		Level:      "warn",
		FileOutput: true,
		LogDir:     dir,
		MaxSize:    1,
		Writer:     &terminal,
	})
	require.NoError(t, err)

	log.Debug("retrying request", "attempt", 1)
	log.Warn("both")
	cleanup()

	data, err := os.ReadFile(filepath.Join(dir, DefaultLogOutputName))
	require.NoError(t, err)

	assert.Contains(t, string(data), "retrying request")
	assert.Contains(t, string(data), "both")
	assert.NotContains(t, terminal.String(), "retrying request")
	assert.Contains(t, terminal.String(), "both")
}

func TestStyledLogger_FeatureStateText(t *testing.T) {
	sl := NewDiscard()
	for _, state := range []domain.FeatureState{domain.StateAvailable, domain.StateLimited, domain.StateUnavailable, domain.StateDisabled} {
		assert.Contains(t, stripAnsiCodes(sl.FeatureStateText(state)), string(state))
	}

	// must not panic on a discarding handler
	sl.InfoFeatureState("Feature", domain.FeatureChat, domain.StateUnavailable)
	sl.With("k", "v").WithRequestID("abc").InfoWithCount("Models", 3)
}

func TestFatalWithLogger_UsesExitCode(t *testing.T) {
	var code int
	exitFunc = func(c int) { code = c }
	t.Cleanup(func() { exitFunc = os.Exit })

	FatalWithLogger(slog.New(slog.DiscardHandler), "failed")
	assert.Equal(t, ExitFailure, code)

	FatalConfig(slog.New(slog.DiscardHandler), "bad config")
	assert.Equal(t, ExitConfigError, code)
}

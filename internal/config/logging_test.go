package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/sigilgate/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		expected config.LogLevel
	}{
		{"off lowercase", "off", config.LogLevelOff},
		{"none", "none", config.LogLevelOff},
		{"error uppercase", "ERROR", config.LogLevelError},
		{"warn", "warn", config.LogLevelWarn},
		{"warning", "warning", config.LogLevelWarn},
		{"debug with whitespace", "  debug  ", config.LogLevelDebug},
		{"invalid returns error", "invalid", config.LogLevelError},
		{"empty returns error", "", config.LogLevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, config.ParseLogLevel(tt.input))
		})
	}
}

func TestLogLevel_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "off", config.LogLevelOff.String())
	assert.Equal(t, "error", config.LogLevelError.String())
	assert.Equal(t, "warn", config.LogLevelWarn.String())
	assert.Equal(t, "debug", config.LogLevelDebug.String())
	assert.Equal(t, "error", config.LogLevel(99).String())
}

func TestNewLogger_WritesToFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "logs", "gate.log")

	logger, err := config.NewLogger(config.LogLevelDebug, path)
	require.NoError(t, err)

	logger.Debug("connect %s", "metamask")
	logger.Warn("chain addition: %v", "boom")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG] connect metamask")
	assert.Contains(t, string(data), "[WARN] chain addition: boom")
}

func TestNewLogger_LevelOffCreatesNothing(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "gate.log")

	logger, err := config.NewLogger(config.LogLevelOff, path)
	require.NoError(t, err)
	logger.Error("ignored")
	require.NoError(t, logger.Close())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriterLogger_LevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := config.NewWriterLogger(config.LogLevelWarn, &buf)

	logger.Debug("hidden")
	logger.Warn("shown %d", 1)
	logger.Error("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 1")
	assert.Contains(t, out, "[ERROR] shown 2")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestLogger_Writer(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := config.NewWriterLogger(config.LogLevelDebug, &buf)

	_, err := logger.Writer(config.LogLevelError).Write([]byte("  from writer \n"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "[ERROR] from writer")
}

func TestNullLogger(t *testing.T) {
	t.Parallel()
	logger := config.NullLogger()
	logger.Debug("a")
	logger.Warn("b")
	logger.Error("c")
	assert.Equal(t, config.LogLevelOff, logger.Level())
	require.NoError(t, logger.Close())
}

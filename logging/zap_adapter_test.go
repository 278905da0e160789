package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(t *testing.T, level LogLevel) (Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger, err := NewZapLogger(LogConfig{
		Level:  level,
		Output: buf,
	})
	require.NoError(t, err)
	return logger, buf
}

func TestZapAdapter_Levels(t *testing.T) {
	logger, buf := newBufferedLogger(t, DebugLevel)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "DEBUG")
	assert.Contains(t, out, "debug message")
	assert.Contains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
	assert.Contains(t, out, "boom")
}

func TestZapAdapter_LevelFiltering(t *testing.T) {
	logger, buf := newBufferedLogger(t, WarnLevel)

	logger.Debug("hidden")
	logger.Info("also hidden")
	logger.Warn("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}

func TestZapAdapter_WithFields(t *testing.T) {
	logger, buf := newBufferedLogger(t, InfoLevel)

	logger.WithFields(String("tier", "local")).Info("field test", Int("size", 42))

	out := buf.String()
	assert.Contains(t, out, "local")
	assert.Contains(t, out, "42")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"bogus", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseLevel(tt.input), "input %q", tt.input)
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	// Must not panic
	logger.Debug("a")
	logger.Error("b", errors.New("x"), Bool("flag", true))
}

package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected LogLevel
	}{
		{name: "debug", input: "debug", expected: LevelDebug},
		{name: "info", input: "info", expected: LevelInfo},
		{name: "warn", input: "warn", expected: LevelWarn},
		{name: "warning alias", input: "warning", expected: LevelWarn},
		{name: "error", input: "error", expected: LevelError},
		{name: "case insensitive", input: "DEBUG", expected: LevelDebug},
		{name: "surrounding space", input: "  error ", expected: LevelError},
		{name: "unknown defaults to info", input: "verbose", expected: LevelInfo},
		{name: "empty defaults to info", input: "", expected: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestLevelFromEnvDebugWins(t *testing.T) {
	t.Setenv("DEBUG", "true")
	t.Setenv("LOG_LEVEL", "error")
	assert.Equal(t, LevelDebug, levelFromEnv())

	t.Setenv("DEBUG", "")
	assert.Equal(t, LevelError, levelFromEnv())
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "debug", LevelDebug.String())
	assert.Equal(t, "info", LevelInfo.String())
	assert.Equal(t, "warn", LevelWarn.String())
	assert.Equal(t, "error", LevelError.String())
	assert.Equal(t, "unknown(42)", LogLevel(42).String())
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	previous := GetLevel()
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(previous)
	})

	SetLevel(LevelWarn)
	Debug("debug %d", 1)
	Info("info %d", 2)
	Warn("warn %d", 3)
	Error("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "[WARN] warn 3")
	assert.Contains(t, out, "[ERROR] error 4")
	assert.False(t, IsDebugEnabled())

	buf.Reset()
	SetLevel(LevelDebug)
	Debug("now visible")
	assert.True(t, strings.Contains(buf.String(), "[DEBUG] now visible"))
	assert.True(t, IsDebugEnabled())
}

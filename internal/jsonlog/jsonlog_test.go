package jsonlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Level      string            `json:"level"`
	Message    string            `json:"message"`
	Properties map[string]string `json:"properties"`
	Trace      string            `json:"trace"`
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []entry {
	t.Helper()
	var out []entry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e entry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		out = append(out, e)
	}
	return out
}

func TestLoggerFiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelWarn)

	logger.PrintDebug("debug", nil)
	logger.PrintInfo("info", nil)
	logger.PrintWarn("warn", map[string]string{"k": "v"})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, "v", entries[0].Properties["k"])
	assert.Empty(t, entries[0].Trace)
}

func TestLoggerErrorIncludesTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelInfo)

	logger.PrintError(errors.New("boom"), map[string]string{"request_method": "GET"})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "ERROR", entries[0].Level)
	assert.Equal(t, "boom", entries[0].Message)
	assert.NotEmpty(t, entries[0].Trace)
}

func TestLoggerFatalExits(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelInfo)
	code := -1
	logger.exit = func(c int) { code = c }

	logger.PrintFatal(errors.New("cannot start"), nil)

	assert.Equal(t, 1, code)
	assert.Equal(t, "FATAL", decodeLines(t, &buf)[0].Level)
}

func TestLoggerWrite(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelInfo)

	_, err := logger.Write([]byte("http: TLS handshake error\n"))
	require.NoError(t, err)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "http: TLS handshake error", entries[0].Message)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		" warn ":  LevelWarn,
		"error":   LevelError,
		"fatal":   LevelFatal,
		"off":     LevelOff,
		"unknown": LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

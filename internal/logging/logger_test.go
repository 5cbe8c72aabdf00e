package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel, format string) (*ChatLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewLogger(&LoggerConfig{Level: level, Format: format, Output: &buf}), &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestChatLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(LevelWarn, "text")
	ctx := context.Background()

	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	logger.Warn(ctx, nil, "warn message")
	logger.Error(ctx, errors.New("boom"), "error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
	assert.Contains(t, out, "boom")
}

func TestChatLogger_JSONFields(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug, "json")

	logger.WithComponent("server").
		With("activity_id", "a1").
		Info(context.Background(), "message stored", "message_id", "m1", 42, "dropped")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "message stored", record["msg"])
	assert.Equal(t, "server", record["component"])
	assert.Equal(t, "a1", record["activity_id"])
	assert.Equal(t, "m1", record["message_id"])
	assert.NotContains(t, record, "42")
}

func TestChatLogger_WithDoesNotMutateParent(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, "text")

	_ = logger.With("child", "yes")
	logger.Info(context.Background(), "parent")

	assert.NotContains(t, buf.String(), "child")
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.NotPanics(t, func() {
		logger.Error(context.Background(), errors.New("x"), "dropped")
	})
}

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "password field",
			input:    "user password: secret123",
			expected: "[REDACTED]",
		},
		{
			name:     "token field",
			input:    "auth token abc123",
			expected: "[REDACTED]",
		},
		{
			name:     "normal text",
			input:    "normal log message",
			expected: "normal log message",
		},
		{
			name:     "long text truncation",
			input:    strings.Repeat("a", 1500),
			expected: strings.Repeat("a", 1000) + "...[TRUNCATED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeForLog(tt.input))
		})
	}
}

func TestLogSecurityEvent(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, "json")

	LogSecurityEvent(context.Background(), logger, "origin_rejected", map[string]interface{}{
		"origin": "https://evil.example",
		"header": "secret-token",
	})

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "security", record["event_type"])
	assert.Equal(t, "origin_rejected", record["event"])
	assert.Equal(t, "https://evil.example", record["origin"])
	assert.Equal(t, "[REDACTED]", record["header"])
}

func TestPerfLogger(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug, "text")
	ctx := context.Background()

	StartOperation(logger, "render").End(ctx, "file", "a.md")
	assert.Contains(t, buf.String(), "operation=render")
	assert.Contains(t, buf.String(), "duration_ms=")

	buf.Reset()
	StartOperation(logger, "render").EndWithError(ctx, errors.New("disk full"))
	assert.Contains(t, buf.String(), "disk full")
}

func TestNewStdLogger(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug, "json")

	std := NewStdLogger(logger.WithComponent("http"), LevelWarn)
	std.Print("http: TLS handshake error")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "http", record["component"])
	assert.Equal(t, "http: TLS handshake error", record["msg"])
}

type otherLogger struct{ Logger }

func TestNewStdLogger_ForeignLogger(t *testing.T) {
	std := NewStdLogger(otherLogger{Discard()}, LevelError)
	require.NotNil(t, std)
	assert.NotPanics(t, func() { std.Print("dropped") })
}

package errors

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ChatError
		expected string
	}{
		{
			name:     "message only",
			err:      &ChatError{Message: "boom"},
			expected: "boom",
		},
		{
			name:     "code and component",
			err:      NewValidationError(ErrCodeEmptyMessage, "message is empty").WithComponent("chat"),
			expected: "[ERR_EMPTY_MESSAGE] component:chat message is empty",
		},
		{
			name:     "with cause",
			err:      NewIOError(ErrCodeFileNotFound, "read failed", io.EOF),
			expected: "[ERR_FILE_NOT_FOUND] read failed: EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestChatError_IsAndUnwrap(t *testing.T) {
	cause := errors.New("disk gone")
	err := fmt.Errorf("outer: %w", NewIOError(ErrCodeStoreUnavailable, "store", cause))

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, &ChatError{Type: ErrorTypeIO, Code: ErrCodeStoreUnavailable}))
	assert.False(t, errors.Is(err, &ChatError{Type: ErrorTypeIO, Code: ErrCodeFileNotFound}))

	var ce *ChatError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrorTypeIO, ce.Type)
}

func TestChatError_WithContext(t *testing.T) {
	err := NewValidationError(ErrCodeInvalidURL, "bad url").
		WithContext("url", "ftp://x").
		WithContext("index", 2)

	assert.Equal(t, "ftp://x", err.Context["url"])
	assert.Equal(t, 2, err.Context["index"])
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", NewValidationError(ErrCodeEmptyMessage, "x"), http.StatusBadRequest},
		{"not found", NewNotFoundError(ErrCodeActivityNotFound, "x"), http.StatusNotFound},
		{"security", ErrInvalidOrigin("https://evil.example"), http.StatusForbidden},
		{"config", NewConfigError(ErrCodeConfigInvalid, "x"), http.StatusInternalServerError},
		{"io", NewIOError(ErrCodeStoreUnavailable, "x", nil), http.StatusInternalServerError},
		{"foreign", errors.New("plain"), http.StatusInternalServerError},
		{"wrapped validation", fmt.Errorf("ctx: %w", ErrEmptyMessage()), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}

func TestCodeAndPublicMessage(t *testing.T) {
	assert.Equal(t, ErrCodeEmptyMessage, Code(ErrEmptyMessage()))
	assert.Equal(t, ErrCodeInternal, Code(errors.New("x")))

	assert.Equal(t, "message is empty", PublicMessage(ErrEmptyMessage()))
	assert.Equal(t, "internal server error", PublicMessage(NewInternalError(ErrCodeInternal, "db password wrong", nil)))
	assert.Equal(t, "internal server error", PublicMessage(errors.New("raw")))
}

func TestIsRecoverableAndType(t *testing.T) {
	assert.True(t, IsRecoverable(NewValidationError("X", "x")))
	assert.False(t, IsRecoverable(NewSecurityError("X", "x")))
	assert.False(t, IsRecoverable(errors.New("x")))

	assert.True(t, IsSecurityError(ErrPathTraversal("../etc")))
	assert.False(t, IsSecurityError(ErrInvalidPath("x")))
	assert.True(t, IsType(ErrInvalidActivity(""), ErrorTypeValidation))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeIO, "X", "x"))

	base := errors.New("base")
	wrapped := WrapIO(base, ErrCodeStoreUnavailable, "open store")
	assert.Equal(t, ErrorTypeIO, wrapped.Type)
	assert.False(t, wrapped.Recoverable)
	assert.Same(t, base, ExtractCause(wrapped))

	inner := NewValidationError(ErrCodeInvalidURL, "bad").WithComponent("chat")
	outer := WrapValidation(inner, ErrCodeInvalidFrame, "frame rejected")
	assert.Equal(t, "chat", outer.Component)
	assert.True(t, outer.Recoverable)
	assert.Equal(t, inner, ExtractCause(outer))
}

func TestGetErrorContext(t *testing.T) {
	assert.Nil(t, GetErrorContext(nil))

	ctx := GetErrorContext(NewValidationError(ErrCodeInvalidURL, "bad").WithContext("url", "x").WithComponent("chat"))
	assert.Equal(t, "x", ctx["url"])
	assert.Equal(t, "chat", ctx["component"])
	assert.Equal(t, "validation", ctx["type"])
	assert.Equal(t, ErrCodeInvalidURL, ctx["code"])

	plain := GetErrorContext(errors.New("plain"))
	assert.Equal(t, "unknown", plain["type"])
}

func TestCombineErrors(t *testing.T) {
	assert.Nil(t, CombineErrors(nil, nil))

	single := errors.New("one")
	assert.Same(t, single, CombineErrors(nil, single))

	a, b := errors.New("a"), errors.New("b")
	combined := CombineErrors(a, nil, b)
	require.Error(t, combined)
	assert.True(t, errors.Is(combined, a))
	assert.True(t, errors.Is(combined, b))
	assert.Contains(t, combined.Error(), "2 errors")
}

func TestValidationErrorCollection(t *testing.T) {
	var vec ValidationErrorCollection
	assert.False(t, vec.HasErrors())
	assert.Nil(t, vec.ToChatError())
	assert.Equal(t, "no validation errors", vec.Error())

	vec.AddField("server.port", 70000, "port must be between 0 and 65535")
	assert.Contains(t, vec.Error(), "server.port")

	vec.AddField("chat.max_images", -1, "must not be negative")
	assert.Equal(t, "validation failed with 2 errors", vec.Error())

	ce := vec.ToChatError()
	require.NotNil(t, ce)
	assert.Equal(t, ErrorTypeValidation, ce.Type)
	assert.Equal(t, ErrCodeValidationFailed, ce.Code)
	assert.Equal(t, 70000, ce.Context["server.port"])
}

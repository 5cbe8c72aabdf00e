package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeInternal   ErrorType = "internal"
)

// ChatError is a structured error type with context.
type ChatError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	Recoverable bool
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ChatError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison on type and code.
func (e *ChatError) Is(target error) bool {
	var t *ChatError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *ChatError) WithContext(key string, value interface{}) *ChatError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent adds component context.
func (e *ChatError) WithComponent(component string) *ChatError {
	e.Component = component

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *ChatError {
	return &ChatError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *ChatError {
	return &ChatError{
		Type:    ErrorTypeSecurity,
		Code:    code,
		Message: message,
	}
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(code, message string) *ChatError {
	return &ChatError{
		Type:        ErrorTypeNotFound,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *ChatError {
	return &ChatError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewNetworkError creates a network error.
func NewNetworkError(code, message string, cause error) *ChatError {
	return &ChatError{
		Type:        ErrorTypeNetwork,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *ChatError {
	return &ChatError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *ChatError {
	return &ChatError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.Recoverable
	}

	return false
}

// IsType reports whether err is a ChatError of the given type.
func IsType(err error, errType ErrorType) bool {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.Type == errType
	}

	return false
}

// IsSecurityError checks if an error is security-related.
func IsSecurityError(err error) bool {
	return IsType(err, ErrorTypeSecurity)
}

// HTTPStatus maps an error onto the status code an API handler should return.
// Errors that are not ChatErrors are treated as internal.
func HTTPStatus(err error) int {
	var ce *ChatError
	if !errors.As(err, &ce) {
		return http.StatusInternalServerError
	}

	switch ce.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeSecurity:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the error code for err, or ErrCodeInternal for foreign errors.
func Code(err error) string {
	var ce *ChatError
	if errors.As(err, &ce) && ce.Code != "" {
		return ce.Code
	}

	return ErrCodeInternal
}

// PublicMessage returns a message safe to show to API clients. Internal
// details of non-recoverable errors are not exposed.
func PublicMessage(err error) string {
	var ce *ChatError
	if !errors.As(err, &ce) {
		return "internal server error"
	}

	switch ce.Type {
	case ErrorTypeValidation, ErrorTypeNotFound, ErrorTypeSecurity:
		return ce.Message
	default:
		return "internal server error"
	}
}

// Common error codes.
const (
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodePathTraversal    = "ERR_PATH_TRAVERSAL"
	ErrCodeInvalidOrigin    = "ERR_INVALID_ORIGIN"
	ErrCodeInvalidURL       = "ERR_INVALID_URL"
	ErrCodeInvalidFrame     = "ERR_INVALID_FRAME"
	ErrCodeEmptyMessage     = "ERR_EMPTY_MESSAGE"
	ErrCodeMessageTooLarge  = "ERR_MESSAGE_TOO_LARGE"
	ErrCodeInvalidActivity  = "ERR_INVALID_ACTIVITY"
	ErrCodeActivityNotFound = "ERR_ACTIVITY_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeStoreUnavailable = "ERR_STORE_UNAVAILABLE"
	ErrCodeFileNotFound     = "ERR_FILE_NOT_FOUND"
	ErrCodeRenderFailed     = "ERR_RENDER_FAILED"
	ErrCodeInternal         = "ERR_INTERNAL"
	ErrCodeValidationFailed = "ERR_VALIDATION_FAILED"
)

// FieldValidationError reports a single invalid field.
type FieldValidationError struct {
	FieldName    string
	FieldValue   interface{}
	ErrorMessage string
}

// Error implements the error interface.
func (fve *FieldValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s", fve.FieldName, fve.ErrorMessage)
}

// ValidationErrorCollection represents a collection of validation errors.
type ValidationErrorCollection struct {
	Errors []*FieldValidationError
}

// Error implements the error interface.
func (vec *ValidationErrorCollection) Error() string {
	if len(vec.Errors) == 0 {
		return "no validation errors"
	}
	if len(vec.Errors) == 1 {
		return vec.Errors[0].Error()
	}

	return fmt.Sprintf("validation failed with %d errors", len(vec.Errors))
}

// AddField adds a field validation error to the collection.
func (vec *ValidationErrorCollection) AddField(field string, value interface{}, message string) {
	vec.Errors = append(vec.Errors, &FieldValidationError{
		FieldName:    field,
		FieldValue:   value,
		ErrorMessage: message,
	})
}

// HasErrors returns true if there are any validation errors.
func (vec *ValidationErrorCollection) HasErrors() bool {
	return len(vec.Errors) > 0
}

// ToChatError converts the collection to a single validation ChatError, or
// nil when the collection is empty.
func (vec *ValidationErrorCollection) ToChatError() *ChatError {
	if !vec.HasErrors() {
		return nil
	}

	messages := make([]string, 0, len(vec.Errors))
	context := make(map[string]interface{}, len(vec.Errors))
	for _, err := range vec.Errors {
		messages = append(messages, err.Error())
		context[err.FieldName] = err.FieldValue
	}

	return &ChatError{
		Type:        ErrorTypeValidation,
		Code:        ErrCodeValidationFailed,
		Message:     strings.Join(messages, "; "),
		Context:     context,
		Recoverable: true,
	}
}

// ErrInvalidPath creates a path validation error.
func ErrInvalidPath(path string) *ChatError {
	return NewValidationError(ErrCodeInvalidPath, "invalid path: "+path)
}

// ErrPathTraversal creates a path traversal security error.
func ErrPathTraversal(path string) *ChatError {
	return NewSecurityError(ErrCodePathTraversal, "path traversal attempt: "+path)
}

// ErrInvalidOrigin creates an invalid origin security error.
func ErrInvalidOrigin(origin string) *ChatError {
	return NewSecurityError(ErrCodeInvalidOrigin, "invalid origin: "+origin)
}

// ErrEmptyMessage is returned for frames with neither text nor images.
func ErrEmptyMessage() *ChatError {
	return NewValidationError(ErrCodeEmptyMessage, "message is empty")
}

// ErrInvalidActivity creates an activity id validation error.
func ErrInvalidActivity(id string) *ChatError {
	return NewValidationError(ErrCodeInvalidActivity, "invalid activity id: "+id)
}

package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context, creating a ChatError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *ChatError {
	if err == nil {
		return nil
	}

	var ce *ChatError
	if errors.As(err, &ce) {
		return &ChatError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       ce,
			Context:     ce.Context,
			Component:   ce.Component,
			Recoverable: ce.Recoverable,
		}
	}

	return &ChatError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeValidation || errType == ErrorTypeNetwork,
	}
}

// WrapValidation wraps an error as a validation error
func WrapValidation(err error, code, message string) *ChatError {
	return Wrap(err, ErrorTypeValidation, code, message)
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *ChatError {
	wrapped := Wrap(err, ErrorTypeIO, code, message)
	if wrapped != nil {
		wrapped.Recoverable = false
	}
	return wrapped
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, code, message string) *ChatError {
	wrapped := Wrap(err, ErrorTypeConfig, code, message)
	if wrapped != nil {
		wrapped.Recoverable = false
	}
	return wrapped
}

// WrapInternal wraps an error as an internal error
func WrapInternal(err error, code, message string) *ChatError {
	wrapped := Wrap(err, ErrorTypeInternal, code, message)
	if wrapped != nil {
		wrapped.Recoverable = false
	}
	return wrapped
}

// GetErrorContext extracts loggable context from an error.
func GetErrorContext(err error) map[string]interface{} {
	if err == nil {
		return nil
	}

	var ce *ChatError
	if errors.As(err, &ce) {
		context := make(map[string]interface{}, len(ce.Context)+4)
		for k, v := range ce.Context {
			context[k] = v
		}
		if ce.Component != "" {
			context["component"] = ce.Component
		}
		context["type"] = string(ce.Type)
		context["code"] = ce.Code
		context["recoverable"] = ce.Recoverable
		return context
	}

	return map[string]interface{}{
		"message": err.Error(),
		"type":    "unknown",
	}
}

// ExtractCause extracts the root cause from a wrapped error
func ExtractCause(err error) error {
	for err != nil {
		var ce *ChatError
		if !errors.As(err, &ce) {
			return err
		}
		if ce.Cause == nil {
			return ce
		}
		err = ce.Cause
	}
	return nil
}

// CombineErrors combines multiple errors into a single error with context
func CombineErrors(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}

	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	}

	messages := make([]string, 0, len(nonNil))
	for _, err := range nonNil {
		messages = append(messages, err.Error())
	}

	return &ChatError{
		Type:    ErrorTypeInternal,
		Code:    "ERR_MULTIPLE_ERRORS",
		Message: fmt.Sprintf("multiple errors occurred: %d errors", len(nonNil)),
		Cause:   errors.Join(nonNil...),
		Context: map[string]interface{}{
			"error_count": len(nonNil),
			"errors":      messages,
		},
	}
}

package utils

import (
	"errors"
	"fmt"
)

// ErrorKind is a stable machine-readable failure category. Callers branch on
// kinds, never on message text.
type ErrorKind string

const (
	KindInvalidConfiguration ErrorKind = "invalid_configuration"
	KindEmbeddingUnavailable ErrorKind = "embedding_unavailable"
	KindDimensionMismatch    ErrorKind = "dimension_mismatch"
	KindMissingEmbedding     ErrorKind = "missing_embedding"
	KindUnknownPromptType    ErrorKind = "unknown_prompt_type"
	KindGenerationFailed     ErrorKind = "generation_failed"
	KindIndexUnavailable     ErrorKind = "index_unavailable"
)

// AppError carries a stable kind plus a human-readable message. It is the
// only error shape that crosses the service boundary.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError builds an AppError with a formatted message.
func NewAppError(kind ErrorKind, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapAppError builds an AppError around an underlying cause.
func WrapAppError(kind ErrorKind, err error, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the error kind, or empty string for untyped errors.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies transcription failures for retry and fallback decisions.
type ErrorKind string

const (
	ErrorKindNetwork           ErrorKind = "network"
	ErrorKindRateLimited       ErrorKind = "rate_limited"
	ErrorKindServer            ErrorKind = "server"
	ErrorKindTimeout           ErrorKind = "timeout"
	ErrorKindUnauthorized      ErrorKind = "unauthorized"
	ErrorKindUnsupportedFormat ErrorKind = "unsupported_format"
	ErrorKindPayloadTooLarge   ErrorKind = "payload_too_large"
	ErrorKindValidation        ErrorKind = "validation"
)

// TranscriptionError is a classified failure from the remote transcription path.
type TranscriptionError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *TranscriptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could plausibly succeed.
func (e *TranscriptionError) Retryable() bool {
	switch e.Kind {
	case ErrorKindNetwork, ErrorKindRateLimited, ErrorKindServer, ErrorKindTimeout:
		return true
	default:
		return false
	}
}

// NewError builds a classified transcription error wrapping an optional cause.
func NewError(kind ErrorKind, message string, cause error) *TranscriptionError {
	return &TranscriptionError{Kind: kind, Message: message, Err: cause}
}

// KindOf extracts the error kind, defaulting to network for unclassified errors.
func KindOf(err error) ErrorKind {
	var terr *TranscriptionError
	if errors.As(err, &terr) {
		return terr.Kind
	}
	return ErrorKindNetwork
}

// IsRetryable reports whether err is worth retrying. Unclassified errors are
// treated as transient.
func IsRetryable(err error) bool {
	var terr *TranscriptionError
	if errors.As(err, &terr) {
		return terr.Retryable()
	}
	return true
}

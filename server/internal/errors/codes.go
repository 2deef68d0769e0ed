// Package errors defines the typed error taxonomy of the preference
// exchange. Handlers map these codes onto the fixed wire responses; nothing
// here is fatal to the process, every request fails on its own.
package errors

import (
	"fmt"
)

// ErrorCode represents a specific error type for exchange operations.
type ErrorCode string

const (
	// ErrCodeMalformedLine indicates a blob line that cannot be parsed.
	ErrCodeMalformedLine ErrorCode = "MALFORMED_LINE"
	// ErrCodeInvalidToken indicates an unknown or already consumed save token.
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
	// ErrCodeIncompleteUpload indicates an upload body missing its sentinel.
	ErrCodeIncompleteUpload ErrorCode = "INCOMPLETE_UPLOAD"
	// ErrCodeMissingCredential indicates a request body missing the username or password line.
	ErrCodeMissingCredential ErrorCode = "MISSING_CREDENTIAL"
	// ErrCodeUnauthorized indicates authentication failure.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeStoreConnect indicates the persistent store is unreachable.
	ErrCodeStoreConnect ErrorCode = "STORE_CONNECT"
	// ErrCodeStoreRead indicates a failed store read.
	ErrCodeStoreRead ErrorCode = "STORE_READ"
	// ErrCodeStoreWrite indicates a failed store write.
	ErrCodeStoreWrite ErrorCode = "STORE_WRITE"
)

// ExchangeError represents a structured error for exchange operations.
type ExchangeError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ExchangeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ExchangeError) Unwrap() error {
	return e.Cause
}

// GetCode returns the error code.
func (e *ExchangeError) GetCode() ErrorCode {
	return e.Code
}

// Convenience constructors for common error types.

// MalformedLine creates a malformed-line error.
func MalformedLine(msg string, cause error) *ExchangeError {
	return &ExchangeError{Code: ErrCodeMalformedLine, Message: msg, Cause: cause}
}

// InvalidToken creates an invalid-token error.
func InvalidToken(token string) *ExchangeError {
	return &ExchangeError{Code: ErrCodeInvalidToken, Message: fmt.Sprintf("unknown save token: %s", token)}
}

// IncompleteUpload creates an incomplete-upload error.
func IncompleteUpload(msg string) *ExchangeError {
	return &ExchangeError{Code: ErrCodeIncompleteUpload, Message: msg}
}

// MissingCredential creates a missing-credential error.
func MissingCredential(field string) *ExchangeError {
	return &ExchangeError{Code: ErrCodeMissingCredential, Message: fmt.Sprintf("missing %s in POST data", field)}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *ExchangeError {
	return &ExchangeError{Code: ErrCodeUnauthorized, Message: msg}
}

// StoreRead creates a store read error.
func StoreRead(msg string, cause error) *ExchangeError {
	return &ExchangeError{Code: ErrCodeStoreRead, Message: msg, Cause: cause}
}

// StoreWrite creates a store write error.
func StoreWrite(msg string, cause error) *ExchangeError {
	return &ExchangeError{Code: ErrCodeStoreWrite, Message: msg, Cause: cause}
}

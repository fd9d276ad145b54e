package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents an mstash error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrResolveFailed  ErrorCode = "RESOLVE_FAILED"  // 502: boundary unreachable or non-2xx; aborts that link
	ErrDownloadFailed ErrorCode = "DOWNLOAD_FAILED" // 502: per-item; skips that item only
	ErrDecodeFailed   ErrorCode = "DECODE_FAILED"   // 422: payload text is not valid base64
	ErrImportFailed   ErrorCode = "IMPORT_FAILED"   // 422: import input does not parse as records
	ErrStorage        ErrorCode = "STORAGE"         // 500: persistence-layer I/O failure
	ErrNetworkFailed  ErrorCode = "NETWORK_FAILED"  // 502: asset fetch failed with no cached fallback
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// StashError represents a structured error with code, status, and details.
type StashError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *StashError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *StashError {
	return &StashError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing record.
func NewNotFound(identifier string) *StashError {
	return &StashError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("record not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewResolveFailed creates an error for a failed link resolution.
// Resolution failure aborts the whole link; no partial records are committed.
func NewResolveFailed(link string, err error) *StashError {
	msg := "resolve failed"
	if err != nil {
		msg = err.Error()
	}
	return &StashError{
		Code:    ErrResolveFailed,
		Status:  502,
		Message: msg,
		Details: map[string]any{"link": link},
	}
}

// NewDownloadFailed creates an error for a single failed media download.
func NewDownloadFailed(url string, err error) *StashError {
	msg := "download failed"
	if err != nil {
		msg = err.Error()
	}
	return &StashError{
		Code:    ErrDownloadFailed,
		Status:  502,
		Message: msg,
		Details: map[string]any{"url": url},
	}
}

// NewDecodeFailed creates an error for malformed stored payload text.
func NewDecodeFailed(err error) *StashError {
	msg := "payload is not valid base64"
	if err != nil {
		msg = err.Error()
	}
	return &StashError{
		Code:    ErrDecodeFailed,
		Status:  422,
		Message: msg,
	}
}

// NewImportFailed creates an error for unparseable import input.
func NewImportFailed(msg string, details map[string]any) *StashError {
	return &StashError{
		Code:    ErrImportFailed,
		Status:  422,
		Message: msg,
		Details: details,
	}
}

// NewStorage creates an error for a persistence-layer I/O failure.
func NewStorage(err error) *StashError {
	msg := "storage failure"
	if err != nil {
		msg = err.Error()
	}
	return &StashError{
		Code:    ErrStorage,
		Status:  500,
		Message: msg,
	}
}

// NewNetworkFailed creates an error for an asset fetch with no cached fallback.
func NewNetworkFailed(url string, err error) *StashError {
	msg := "network failure"
	if err != nil {
		msg = err.Error()
	}
	return &StashError{
		Code:    ErrNetworkFailed,
		Status:  502,
		Message: msg,
		Details: map[string]any{"url": url},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *StashError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &StashError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a StashError with the given code, unwrapping as
// needed.
func Is(err error, code ErrorCode) bool {
	var sErr *StashError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}

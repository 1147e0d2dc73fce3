package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrNotConnected        = errors.New("backend not connected")
	ErrEmptyQuery          = errors.New("query text is empty")
	ErrQueryInFlight       = errors.New("a query is already in flight")
	ErrInvalidFileType     = errors.New("only NetCDF (.nc) files can be uploaded")
	ErrUploadUnavailable   = errors.New("upload endpoint is not available")
	ErrUploadInFlight      = errors.New("an upload is already in progress")
	ErrAllCandidatesFailed = errors.New("all candidate URLs failed")
	ErrInvalidBaseURL      = errors.New("invalid base URL")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrUnexpectedResponse  = errors.New("unexpected response from backend")
)

// StatusError reports a non-2xx response from the backend.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: backend returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: backend returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsRetryable reports whether the status indicates a transient backend condition.
func (e *StatusError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// StatusCode returns the backend status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

package syncerror

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"syscall"
)

// SyncError is a sentinel error in the synchronization error taxonomy.
type SyncError string

// Error implements the error interface.
func (e SyncError) Error() string { return string(e) }

const (
	// ErrOffline indicates no network is available.
	ErrOffline SyncError = "device is offline"

	// ErrServerUnreachable indicates the network is up but the remote
	// service did not answer a probe or request.
	ErrServerUnreachable SyncError = "server unreachable"

	// ErrTimeout indicates an operation exceeded its bound.
	ErrTimeout SyncError = "operation timed out"

	// ErrNoDataOffline indicates a read was requested while offline and
	// no cached value exists.
	ErrNoDataOffline SyncError = "no cached data available while offline"

	// ErrCannotSyncNow indicates a replay was requested without a
	// reachable server.
	ErrCannotSyncNow SyncError = "cannot sync now: server not reachable"

	// ErrNotFound indicates the remote service has no such resource.
	ErrNotFound SyncError = "resource not found"
)

// ValidationError is a business-logic rejection from the remote service.
// Its message is preserved verbatim so the caller can render it.
type ValidationError struct {
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string { return e.Message }

// NewValidation creates a ValidationError with the given message.
func NewValidation(message string) *ValidationError {
	if message == "" {
		message = "request rejected by remote service"
	}
	return &ValidationError{Message: message}
}

// ExhaustedRetriesError is returned when an operation kept failing with a
// retryable error until the retry budget ran out. It unwraps to the last
// underlying error so callers see a precise message.
type ExhaustedRetriesError struct {
	Attempts int
	Last     error
}

// Error implements the error interface.
func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap returns the last underlying error.
func (e *ExhaustedRetriesError) Unwrap() error { return e.Last }

// IsConnectivity reports whether err is attributable to an absent network
// or unreachable server, as opposed to a business-logic rejection.
// Connectivity-class errors are handled locally (cache fallback, queueing)
// and are never worth retrying in place.
func IsConnectivity(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrOffline) ||
		errors.Is(err, ErrServerUnreachable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrNoDataOffline) ||
		errors.Is(err, ErrCannotSyncNow) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	return false
}

// HTTPStatus maps an error to the HTTP status code the local API reports.
func HTTPStatus(err error) int {
	var vErr *ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &vErr):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case IsConnectivity(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Code maps an error to a stable machine-readable code for API responses.
func Code(err error) string {
	var vErr *ValidationError
	switch {
	case err == nil:
		return "OK"
	case errors.Is(err, ErrOffline):
		return "OFFLINE"
	case errors.Is(err, ErrNoDataOffline):
		return "NO_DATA_OFFLINE"
	case errors.Is(err, ErrCannotSyncNow):
		return "CANNOT_SYNC_NOW"
	case errors.Is(err, ErrTimeout):
		return "TIMEOUT"
	case errors.Is(err, ErrServerUnreachable):
		return "SERVER_UNREACHABLE"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.As(err, &vErr):
		return "VALIDATION_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

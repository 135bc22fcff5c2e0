package routes

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"csv-share-access/internal/blob"
	"csv-share-access/internal/crypto"
	"csv-share-access/internal/dataset"
	"csv-share-access/internal/filestore"
	"csv-share-access/internal/links"
	"csv-share-access/internal/recovery"
	"csv-share-access/internal/storage"
	"csv-share-access/internal/validate"
)

// HTTPError represents an error with an associated HTTP status code and user message
type HTTPError struct {
	Err        error    // The underlying error
	StatusCode int      // HTTP status code
	Message    string   // User-friendly message
	StopCodes  []string // Optional stop codes for client-side handling
	Internal   bool     // Whether this is an internal error (hide details from user)
}

// ErrorInfo contains error metadata for user-facing errors
type ErrorInfo struct {
	Message   string   // User-friendly message
	StopCodes []string // Optional stop codes for client-side application
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NewHTTPError creates a new HTTPError
func NewHTTPError(statusCode int, err error, message string, stopCodes ...string) *HTTPError {
	return &HTTPError{
		Err:        err,
		StatusCode: statusCode,
		Message:    message,
		StopCodes:  stopCodes,
		Internal:   statusCode >= 500,
	}
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRateLimited        = errors.New("rate limited")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrNotFound           = errors.New("not found")

	ErrServiceUnavailable = errors.New("service unavailable")
)

const retryMessage = "Temporary server issue. Please try again."

// errorStatusMap maps errors to HTTP status codes
var errorStatusMap = map[error]int{
	// 400 Bad Request
	ErrInvalidRequest:    http.StatusBadRequest,
	validate.ErrInvalid:  http.StatusBadRequest,
	dataset.ErrNoHeaders: http.StatusBadRequest,

	// 401 Unauthorized
	ErrUnauthorized:       http.StatusUnauthorized,
	ErrInvalidCredentials: http.StatusUnauthorized,

	// 403 Forbidden
	links.ErrLinkInactive:   http.StatusForbidden,
	recovery.ErrNotApproved: http.StatusForbidden,
	crypto.ErrDecrypt:       http.StatusForbidden,

	// 404 Not Found
	ErrNotFound:               http.StatusNotFound,
	storage.ErrNotFound:       http.StatusNotFound,
	blob.ErrNotFound:          http.StatusNotFound,
	links.ErrLinkNotFound:     http.StatusNotFound,
	links.ErrDeviceNotFound:   http.StatusNotFound,
	recovery.ErrNotFound:      http.StatusNotFound,
	filestore.ErrFileNotFound: http.StatusNotFound,

	// 409 Conflict
	links.ErrPasswordAlreadyUsed:  http.StatusConflict,
	links.ErrRequestAlreadyUsed:   http.StatusConflict,
	links.ErrNoCurrentFile:        http.StatusConflict,
	recovery.ErrInvalidTransition: http.StatusConflict,
	storage.ErrDuplicate:          http.StatusConflict,

	// 413 / 429
	dataset.ErrTooLarge: http.StatusRequestEntityTooLarge,
	ErrRateLimited:      http.StatusTooManyRequests,

	// 503 Service Unavailable
	ErrServiceUnavailable:    http.StatusServiceUnavailable,
	context.DeadlineExceeded: http.StatusServiceUnavailable,
}

// errorInfoMap maps errors to user-friendly messages and optional stop codes
var errorInfoMap = map[error]ErrorInfo{
	ErrUnauthorized: {
		Message:   "Not authorized",
		StopCodes: []string{"AUTH_REQUIRED"},
	},
	ErrInvalidCredentials: {
		Message:   "Invalid credentials",
		StopCodes: []string{"AUTH_INVALID_CREDENTIALS"},
	},
	ErrRateLimited: {
		Message:   "Too many attempts. Please try again later.",
		StopCodes: []string{"RATE_LIMITED"},
	},
	ErrInvalidRequest: {
		Message:   "Invalid input. Please check your entries.",
		StopCodes: []string{"INVALID_REQUEST"},
	},

	links.ErrLinkInactive: {
		Message:   "This link is not available.",
		StopCodes: []string{"LINK_INACTIVE"},
	},
	recovery.ErrNotApproved: {
		Message:   "Access request has not been approved.",
		StopCodes: []string{"REQUEST_NOT_APPROVED"},
	},
	crypto.ErrDecrypt: {
		Message:   "The file could not be verified.",
		StopCodes: []string{"INTEGRITY_FAILURE"},
	},

	links.ErrPasswordAlreadyUsed: {
		Message:   "This link has already been activated on another device. Request access instead.",
		StopCodes: []string{"LINK_ALREADY_CLAIMED"},
	},
	links.ErrRequestAlreadyUsed: {
		Message:   "This access request has already been used.",
		StopCodes: []string{"REQUEST_ALREADY_USED"},
	},
	links.ErrNoCurrentFile: {
		Message:   "Upload a CSV file first.",
		StopCodes: []string{"NO_CURRENT_FILE"},
	},
	recovery.ErrInvalidTransition: {
		Message:   "This request has already been resolved.",
		StopCodes: []string{"REQUEST_RESOLVED"},
	},

	dataset.ErrTooLarge: {
		Message:   dataset.ErrTooLarge.Error(),
		StopCodes: []string{"FILE_TOO_LARGE"},
	},

	ErrServiceUnavailable: {
		Message:   retryMessage,
		StopCodes: []string{"RETRYABLE"},
	},
	context.DeadlineExceeded: {
		Message:   retryMessage,
		StopCodes: []string{"RETRYABLE"},
	},
}

// known reports whether err maps onto a status other than the 500 default.
func known(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return true
	}
	for knownErr := range errorStatusMap {
		if errors.Is(err, knownErr) {
			return true
		}
	}
	return false
}

// unavailable marks err as a retryable collaborator failure unless it already
// has a mapping.
func unavailable(err error) error {
	if known(err) {
		return err
	}
	return errors.Join(ErrServiceUnavailable, err)
}

// GetErrorStatus returns the HTTP status code for an error
func GetErrorStatus(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}

	for knownErr, status := range errorStatusMap {
		if errors.Is(err, knownErr) {
			return status
		}
	}

	return http.StatusInternalServerError
}

// GetErrorInfo returns error information including message and stop codes
func GetErrorInfo(err error) ErrorInfo {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return ErrorInfo{
			Message:   httpErr.Message,
			StopCodes: httpErr.StopCodes,
		}
	}

	// Validation messages are written for the user.
	var invalid *validate.Error
	if errors.As(err, &invalid) {
		return ErrorInfo{Message: invalid.Message, StopCodes: []string{"VALIDATION"}}
	}

	for knownErr, info := range errorInfoMap {
		if errors.Is(err, knownErr) {
			return info
		}
	}

	return ErrorInfo{Message: MapActionError(err, "An internal error occurred")}
}

var actionErrors = []struct {
	pattern *regexp.Regexp
	message string
}{
	{regexp.MustCompile(`(?i)duplicate key|unique constraint`), "That item already exists."},
	{regexp.MustCompile(`(?i)invalid input|invalid uuid|invalid syntax`), "Invalid input. Please check your entries."},
	{regexp.MustCompile(`(?i)not found|missing file`), "Requested item was not found."},
	{regexp.MustCompile(`(?i)storage|bucket|object`), "Storage service error. Please try again."},
	{regexp.MustCompile(`(?i)missing env`), "Server configuration error."},
	{regexp.MustCompile(`(?i)permission|not authorized|unauthorized`), "You are not allowed to perform this action."},
	{regexp.MustCompile(`(?i)timeout|network|fetch failed`), retryMessage},
}

// MapActionError turns an unexpected error into a message safe to show. The
// first matching pattern wins, otherwise fallback is returned.
func MapActionError(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	msg := err.Error()
	for _, ae := range actionErrors {
		if ae.pattern.MatchString(msg) {
			return ae.message
		}
	}
	return fallback
}

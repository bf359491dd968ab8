package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrRetriesExhausted is wrapped by TransportError when every allowed attempt
	// ended with a retryable status.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrConflictingQuery is returned when a request sets both Query and Params.
	ErrConflictingQuery = errors.New("query options and raw params are mutually exclusive")
	// ErrInvalidMethod is returned for verbs outside GET/PUT/PATCH/POST/DELETE/OPTIONS/HEAD.
	ErrInvalidMethod = errors.New("invalid http method")

	// ErrNotFound matches LookupError for zero results.
	ErrNotFound = errors.New("not found")
	// ErrConflict matches LookupError for more than one result.
	ErrConflict = errors.New("conflict")
	// ErrPermissionFiltered matches PermissionError.
	ErrPermissionFiltered = errors.New("results filtered by permissions")
)

// TransportError is a connection-level failure: refused, timed out, or out of retries.
type TransportError struct {
	Method   string
	URL      string
	Attempts int
	Status   int // last status when retries ran out on a retryable status, else 0
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: %v after %d attempts (last status %d)", e.Method, e.URL, e.Err, e.Attempts, e.Status)
	}
	return fmt.Sprintf("%s %s: %v after %d attempts", e.Method, e.URL, e.Err, e.Attempts)
}

// Unwrap returns underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx response.
type APIError struct {
	Status    int
	Body      map[string]any // parsed JSON body, empty when the body was not a JSON object
	RequestID string
	Method    string
	URL       string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: status %d %s", e.Method, e.URL, e.Status, http.StatusText(e.Status))
	if msg, ok := e.Body["message"].(string); ok && msg != "" {
		fmt.Fprintf(&b, ": %s", msg)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " (request_id=%s)", e.RequestID)
	}
	return b.String()
}

// LookupError is returned by GetCollectionSingle when the result count is not one.
type LookupError struct {
	Path  string
	Count int
}

// Status maps the lookup failure to its HTTP equivalent.
func (e *LookupError) Status() int {
	if e.Count == 0 {
		return http.StatusNotFound
	}
	return http.StatusConflict
}

func (e *LookupError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("%s: no results", e.Path)
	}
	return fmt.Sprintf("%s: expected exactly one result, got %d", e.Path, e.Count)
}

// Is matches ErrNotFound or ErrConflict.
func (e *LookupError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Count == 0
	case ErrConflict:
		return e.Count > 1
	}
	return false
}

// PermissionError is raised in strict mode when the server signalled filtered results.
type PermissionError struct {
	Path  string
	Codes []ErrorCode
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s: some results were filtered due to insufficient permissions", e.Path)
}

// Is matches ErrPermissionFiltered.
func (e *PermissionError) Is(target error) bool {
	return target == ErrPermissionFiltered
}

// StatusCode extracts the HTTP status from an APIError or LookupError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	var lookupErr *LookupError
	if errors.As(err, &lookupErr) {
		return lookupErr.Status()
	}
	return 0
}

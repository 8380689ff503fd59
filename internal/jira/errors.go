package jira

import (
	"errors"
	"fmt"
)

var (
	// ErrTrackerAPI matches any non-2xx Jira response (see APIError).
	ErrTrackerAPI = errors.New("jira API error")
	// ErrTrackerUnreachable wraps transport-level failures.
	ErrTrackerUnreachable = errors.New("jira unreachable")
)

// APIError is returned for non-2xx responses and carries the status code and
// raw response body.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira API returned %d for %s %s: %s", e.StatusCode, e.Method, e.Path, e.Body)
}

// Is lets errors.Is(err, ErrTrackerAPI) match any APIError.
func (e *APIError) Is(target error) bool {
	return target == ErrTrackerAPI
}

// StatusCode extracts the HTTP status from an APIError in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

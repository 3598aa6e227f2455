package client

import (
	"fmt"
	"net/http"
)

// HTTPError is returned when the upstream answers with a non-success status
// that is not treated as "absent" (or when the caller asked for Strict mode).
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream error (status %d) for %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("upstream error (status %d) for %s: %s", e.StatusCode, e.URL, e.Body)
}

// ProtocolError reports a response whose shape breaks the paging or JSON contract.
type ProtocolError struct {
	URL    string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error for %s: %s", e.URL, e.Reason)
}

// IsNotFoundStatus reports whether code means the requested entity does not exist.
// The terminology service answers 400 for malformed identifiers and 404 for unknown ones.
func IsNotFoundStatus(code int) bool {
	return code == http.StatusBadRequest || code == http.StatusNotFound
}

// retryableStatus reports whether code is a transient server error worth retrying.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

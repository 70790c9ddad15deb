package api

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Provider sub-status carried on a 401 when the access token expired
// mid-flight. The dispatcher refreshes and replays exactly once.
const subStatusTokenExpired = 11003

// ErrTokenExpired marks the internal expired-token condition between the
// first attempt and the single replay. It never escapes the dispatcher.
var ErrTokenExpired = errors.New("access token expired")

// HTTPError represents a non-2xx API response.
type HTTPError struct {
	Status    int
	SubStatus int
	Method    string
	URL       string
	// Message is the best-effort machine-readable userMessage from the body.
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d (%s)", e.Method, e.URL, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %d", e.Method, e.URL, e.Status)
}

// StaleWriteError represents a playlist mutation rejected because the
// supplied ETag no longer matches the server's. The caller must re-fetch
// the playlist and retry; it is never retried automatically.
type StaleWriteError struct {
	PlaylistID string
}

func (e *StaleWriteError) Error() string {
	return fmt.Sprintf("playlist %s was modified concurrently, write rejected", e.PlaylistID)
}

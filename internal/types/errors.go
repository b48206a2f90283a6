package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrMaxRetries        = errors.New("max retries exceeded")
	ErrMissingCheckpoint = errors.New("required checkpoint artifact not found")
	ErrUnknownStage      = errors.New("unknown pipeline stage")
	ErrUnknownGroup      = errors.New("unknown category group")
	ErrEmptyResponse     = errors.New("empty response body")
)

// FetchError wraps errors from HTTP calls against the MediaWiki API or the
// REST summary endpoint.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// QueryError wraps errors from SPARQL query execution.
type QueryError struct {
	Endpoint string
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("sparql query error (%s): %v", e.Endpoint, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// StorageError wraps errors from export sinks.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// StageError wraps a failure in one pipeline stage for one group. The
// pipeline reports it and moves on to the next group rather than aborting
// the whole run.
type StageError struct {
	Stage string
	Group string
	Err   error
}

func (e *StageError) Error() string {
	if e.Group != "" {
		return fmt.Sprintf("stage %q failed for group %q: %v", e.Stage, e.Group, e.Err)
	}
	return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

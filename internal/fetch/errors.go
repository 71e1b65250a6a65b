package fetch

import "fmt"

// SetupError represents failures that abort a run before any work item is
// processed: a missing input table, a missing required column, or an
// unusable destination directory.
type SetupError struct {
	Resource string // what failed to set up (table path, directory, ...)
	Reason   string // human-readable explanation
	Err      error  // underlying error, if any
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup error for %s: %s", e.Resource, e.Reason)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// PermanentError represents per-item failures that retrying cannot change:
// the artifact does not exist (404 class) or the API key was rejected
// (401/403 class).
type PermanentError struct {
	Operation  string // the operation that failed (e.g. "fetch_artifact")
	StatusCode int    // HTTP status code, if applicable (0 for non-HTTP causes)
	Reason     string // error message from the API or local layer
	Err        error  // underlying error, if any
}

func (e *PermanentError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("permanent failure during %s (HTTP %d): %s", e.Operation, e.StatusCode, e.Reason)
	}

	return fmt.Sprintf("permanent failure during %s: %s", e.Operation, e.Reason)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// RetryableError represents transient transport failures: connection errors,
// timeouts, and 5xx responses. Eligible for bounded retry.
type RetryableError struct {
	Operation  string
	StatusCode int
	Reason     string
	Err        error
}

func (e *RetryableError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("retryable failure during %s (HTTP %d): %s", e.Operation, e.StatusCode, e.Reason)
	}

	return fmt.Sprintf("retryable failure during %s: %s", e.Operation, e.Reason)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// LocalIOError represents a failed local write of an otherwise successful
// fetch. Treated as permanent for the item and triggers partial-file cleanup.
type LocalIOError struct {
	Path string
	Err  error
}

func (e *LocalIOError) Error() string {
	return fmt.Sprintf("local io error writing %s: %v", e.Path, e.Err)
}

func (e *LocalIOError) Unwrap() error {
	return e.Err
}

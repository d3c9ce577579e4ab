package monitor

import "fmt"

// FetchError wraps a failure to load or render the target page.
// Navigation timeouts, browser launch failures and network errors all surface
// as a FetchError.
type FetchError struct {
	URL string
	Err error
}

// Error implements error.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// RunFailure is the terminal error of a run that exhausted its attempts.
type RunFailure struct {
	Attempts int
	Err      error
}

// Error implements error.
func (e *RunFailure) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap exposes the last attempt's error.
func (e *RunFailure) Unwrap() error {
	return e.Err
}

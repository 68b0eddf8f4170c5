package types

import (
	"errors"
	"fmt"
)

// TransientFetchError reports a request that kept failing with a
// retryable condition (network error, HTTP 429, HTTP 5xx) until the retry
// budget ran out.
type TransientFetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("fetching %s: giving up after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// AuthError reports a request the source refused (HTTP 401/403). It is
// never retried.
type AuthError struct {
	URL    string
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("fetching %s: access refused (HTTP %d); check LETTERBOXD_TOKEN", e.URL, e.Status)
}

// SchemaError reports a record whose shape does not match what the parser
// expects. The offending record is skipped.
type SchemaError struct {
	Source string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unexpected record shape at %s: %s", e.Source, e.Reason)
}

// WriteError reports an export destination that could not be written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// IsAuth reports whether err is or wraps an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsSchema reports whether err is or wraps a SchemaError.
func IsSchema(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsTransient reports whether err is or wraps a TransientFetchError.
func IsTransient(err error) bool {
	var te *TransientFetchError
	return errors.As(err, &te)
}

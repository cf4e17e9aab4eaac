// Package apperrors implements the error taxonomy of the cluster core:
// each category is a distinct type so callers can branch with
// errors.As instead of matching on strings.
package apperrors

import "fmt"

// ConfigurationError wraps an invalid or missing configuration value.
// It is fatal at startup.
type ConfigurationError struct{ Err error }

func NewConfigurationError(err error) *ConfigurationError { return &ConfigurationError{Err: err} }
func (e *ConfigurationError) Error() string               { return fmt.Sprintf("configuration error: %v", e.Err) }
func (e *ConfigurationError) Unwrap() error               { return e.Err }

// StoreTransientError wraps a temporary coordination-store failure.
// Callers log it, skip the operation, and continue after a backoff.
type StoreTransientError struct{ Err error }

func NewStoreTransientError(err error) *StoreTransientError { return &StoreTransientError{Err: err} }
func (e *StoreTransientError) Error() string                { return fmt.Sprintf("store transient error: %v", e.Err) }
func (e *StoreTransientError) Unwrap() error                { return e.Err }

// InvalidJobError means a submission failed schema validation. It is
// dropped with a structured log; the fire-and-forget submitter is
// never notified.
type InvalidJobError struct{ Err error }

func NewInvalidJobError(err error) *InvalidJobError { return &InvalidJobError{Err: err} }
func (e *InvalidJobError) Error() string            { return fmt.Sprintf("invalid job: %v", e.Err) }
func (e *InvalidJobError) Unwrap() error            { return e.Err }

// InvalidURLError is a terminal, job-level error: the Job's URL could
// not be parsed.
type InvalidURLError struct {
	URL string
	Err error
}

func NewInvalidURLError(url string, err error) *InvalidURLError {
	return &InvalidURLError{URL: url, Err: err}
}
func (e *InvalidURLError) Error() string { return fmt.Sprintf("invalid url %q: %v", e.URL, e.Err) }
func (e *InvalidURLError) Unwrap() error { return e.Err }

// RequestFailedError wraps a transport-level failure: connect error,
// timeout, or DNS failure.
type RequestFailedError struct{ Err error }

func NewRequestFailedError(err error) *RequestFailedError { return &RequestFailedError{Err: err} }
func (e *RequestFailedError) Error() string               { return fmt.Sprintf("request failed: %v", e.Err) }
func (e *RequestFailedError) Unwrap() error               { return e.Err }

// UnknownParserError is a terminal job error: the requested parser name
// is not registered.
type UnknownParserError struct{ Name string }

func NewUnknownParserError(name string) *UnknownParserError { return &UnknownParserError{Name: name} }
func (e *UnknownParserError) Error() string                 { return fmt.Sprintf("unknown parser %q", e.Name) }

// ParserError is a terminal job error: the parser itself failed.
type ParserError struct{ Err error }

func NewParserError(err error) *ParserError { return &ParserError{Err: err} }
func (e *ParserError) Error() string        { return fmt.Sprintf("parser error: %v", e.Err) }
func (e *ParserError) Unwrap() error        { return e.Err }

// Package errors provides custom error types for the longbox system.
// These errors enable programmatic error checking and keep the failure
// taxonomy explicit: transient source errors, malformed records, cluster
// merge errors, and repository write failures are distinct classes with
// distinct handling.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is reports whether any error in err's tree matches target.
var Is = errors.Is

// As finds the first error in err's tree that matches target.
var As = errors.As

// Common sentinel errors for the longbox system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrSourceUnavailable indicates that a source is temporarily unavailable
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrRateLimited indicates that a source's rate limit has been exceeded
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")
)

// ValidationError represents a validation failure, including a raw record
// missing required identity fields.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// SourceError represents a failure from one external source adapter.
type SourceError struct {
	Source     string
	StatusCode int
	Message    string
	Endpoint   string
	Err        error
}

// Error implements the error interface
func (e *SourceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("source error from %s (status %d): %s", e.Source, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("source error from %s: %s", e.Source, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *SourceError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *SourceError) Is(target error) bool {
	if e.StatusCode == 429 {
		return target == ErrRateLimited
	}
	if e.StatusCode >= 500 {
		return target == ErrSourceUnavailable
	}
	return false
}

// NewSourceError creates a new SourceError
func NewSourceError(source string, statusCode int, message string) *SourceError {
	return &SourceError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
	}
}

// Transient reports whether a source error is worth retrying: network
// failures, timeouts, rate limiting, and 5xx responses.
func Transient(err error) bool {
	var se *SourceError
	if errors.As(err, &se) {
		return se.StatusCode == 0 || se.StatusCode == 429 || se.StatusCode >= 500
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrSourceUnavailable)
}

// MergeError represents a failure while merging one cluster of raw records.
// The aggregator records it against the pass and skips the cluster.
type MergeError struct {
	EntityKey string
	Sources   []string
	Err       error
}

// Error implements the error interface
func (e *MergeError) Error() string {
	if len(e.Sources) > 0 {
		return fmt.Sprintf("merge error for %s (sources: %v): %v", e.EntityKey, e.Sources, e.Err)
	}
	return fmt.Sprintf("merge error for %s: %v", e.EntityKey, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *MergeError) Unwrap() error {
	return e.Err
}

// StorageError represents a repository write failure. This is the only error
// class treated as fatal for the entity being written.
type StorageError struct {
	Operation string // "upsert", "open", "migrate"
	Kind      string // "data_source", "first_appearance", "attribute", ...
	Key       string
	Err       error
}

// Error implements the error interface
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s of %s %s: %v", e.Operation, e.Kind, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s of %s: %v", e.Operation, e.Kind, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *StorageError) Unwrap() error {
	return e.Err
}

// ParseError represents an error when parsing source payloads or fixtures.
type ParseError struct {
	Format  string // "json", "yaml"
	Subject string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("parse error in %s %s: %s", e.Format, e.Subject, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRateLimited checks if an error is a rate limit error
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsSourceUnavailable checks if an error indicates source unavailability
func IsSourceUnavailable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}

// Helper wrapping functions for common patterns

// WrapSource wraps an error as a SourceError
func WrapSource(source, endpoint string, err error) error {
	if err == nil {
		return nil
	}
	return &SourceError{
		Source:   source,
		Endpoint: endpoint,
		Message:  err.Error(),
		Err:      err,
	}
}

// WrapMerge wraps an error as a MergeError
func WrapMerge(entityKey string, sources []string, err error) error {
	if err == nil {
		return nil
	}
	return &MergeError{EntityKey: entityKey, Sources: sources, Err: err}
}

// WrapStorage wraps an error as a StorageError
func WrapStorage(operation, kind, key string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Operation: operation, Kind: kind, Key: key, Err: err}
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, subject string, err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{Format: format, Subject: subject, Message: err.Error(), Err: err}
}

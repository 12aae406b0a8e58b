package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Classifier Errors.

	// ErrRateLimited indicates an upstream API rate limit was hit.
	// The classify retry loop never retries on this: rate limits are a
	// signal for the caller to back off.
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates a request exceeded its configured timeout.
	ErrTimeout = errors.New("timeout")

	// ErrInvalidFormat indicates a backend response could not be parsed
	// into a classification output.
	ErrInvalidFormat = errors.New("invalid response format")

	// ErrConfig indicates a classifier or adapter is misconfigured.
	ErrConfig = errors.New("configuration error")

	// Publisher / Post Source Errors.

	// ErrAuth indicates authentication with an external platform failed.
	ErrAuth = errors.New("authentication failed")

	// Definitions Errors.

	// ErrNoDefinitions indicates the definitions source contains no
	// definitions at all. The run loop treats this as fatal for the cycle.
	ErrNoDefinitions = errors.New("no definitions found")
)

// DuplicateIDError reports two definition files claiming the same tag ID.
type DuplicateIDError struct {
	ID    string
	Files []string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate ID %q in files: %v", e.ID, e.Files)
}

// InvalidIDError reports a tag ID that does not match [a-z0-9_]+.
type InvalidIDError struct {
	ID string
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid ID %q: must match [a-z0-9_]+", e.ID)
}

// ContentTooLongError reports rendered content exceeding a platform limit.
type ContentTooLongError struct {
	Length int
	Max    int
}

func (e *ContentTooLongError) Error() string {
	return fmt.Sprintf("content too long: %d > %d", e.Length, e.Max)
}

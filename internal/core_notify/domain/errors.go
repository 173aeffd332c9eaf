package domain

import "errors"

var (
	// ErrConfiguration indicates an invalid request shape (zero channels or
	// recipients, missing content, invalid provider chain, conflicting per-user
	// policy flags, invalid timezone inputs). Always raised before dispatch work.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrNotFound indicates that a requested resource was not found.
	ErrNotFound = errors.New("resource not found")
	// ErrBatchTokenMismatch indicates a chunk submission with the wrong batch
	// token. Terminal; distinct from ErrNotFound so callers can tell wrong id
	// from wrong secret.
	ErrBatchTokenMismatch = errors.New("batch token mismatch")
	// ErrAllProvidersFailed is the terminal aggregate of every provider in a
	// chain failing.
	ErrAllProvidersFailed = errors.New("all providers failed")
	// ErrRequireAllSuccess is the post-hoc gate raised when requireAllSuccess
	// was set and at least one channel failed after all were attempted.
	ErrRequireAllSuccess = errors.New("not all channels succeeded")
	// ErrDuplicateEntry indicates a unique constraint violation.
	ErrDuplicateEntry = errors.New("duplicate entry")
)

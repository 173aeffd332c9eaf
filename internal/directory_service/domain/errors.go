package domain

import "errors"

var (
	// ErrContactNotFound indicates no directory entry matched the identifier.
	ErrContactNotFound = errors.New("contact not found")
)

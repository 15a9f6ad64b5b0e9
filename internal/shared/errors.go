package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrNoSession indicates the request carries no usable session.
	ErrNoSession = errors.New("no session")
)

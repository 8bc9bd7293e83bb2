// File: internal/core/errors.go
package core

import "errors"

var (
	// ErrMissingParam reports a :name placeholder with no bound value.
	ErrMissingParam = errors.New("missing parameter")

	// ErrSessionClosed reports use of a session after Close.
	ErrSessionClosed = errors.New("session is closed")
)

// Package apperr defines the error taxonomy shared by all fleetmon services.
// Handlers classify errors with errors.Is against these sentinels; services
// wrap them with fmt.Errorf("...: %w", ...) to add context.
package apperr

import "errors"

var (
	// Authentication failures.
	ErrNotFound      = errors.New("not found")
	ErrInvalidSecret = errors.New("invalid secret")
	ErrMalformed     = errors.New("malformed token")
	ErrBadSignature  = errors.New("bad token signature")
	ErrExpired       = errors.New("token expired")

	// Request failures. Validation and Forbidden are non-retryable for
	// device clients; Storage is the only retryable class.
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
	ErrStorage    = errors.New("storage failure")
)

package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrQuotaExceeded is returned when a tenant resource limit would be crossed.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrAlreadyExists is returned when a write collides with a unique value.
	ErrAlreadyExists = errors.New("already exists")
)

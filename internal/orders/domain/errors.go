package domain

import "errors"

var (
	// ErrNotFound is returned when an order does not exist or is not visible to the caller.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidTransition is returned when a status edge is not in the lifecycle graph.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrForbidden is returned when the actor lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence is returned when a unit of work fails to commit.
	ErrPersistence = errors.New("operation failed")
)

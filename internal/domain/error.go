package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrMalformedSuggestions = errors.New("malformed song suggestions")
	ErrLockTimeout          = errors.New("timed out waiting for agent lock")
	ErrGeneratorUnavailable = errors.New("generator unavailable")
)

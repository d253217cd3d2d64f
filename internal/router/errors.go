package router

import "errors"

var (
	ErrNotFound             = errors.New("service not found")
	ErrDuplicateID          = errors.New("service id already registered")
	ErrCyclicFallback       = errors.New("fallback chain forms a cycle")
	ErrIncompatibleFallback = errors.New("fallback service has an incompatible capability")
	ErrInvalidService       = errors.New("invalid service config")
	ErrServiceDisabled      = errors.New("service is disabled")
	ErrNoServiceAvailable   = errors.New("no service available")
)

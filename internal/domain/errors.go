// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates input that violates a business rule. Validation
// failures are surfaced to the caller immediately and never trigger fallback.
var ErrValidation = errors.New("validation failed")

// ErrInfrastructure indicates a persistence operation failed after the
// bounded retry policy was exhausted. The system's state is uncertain after
// such a failure, so callers must not fall back to cached data.
var ErrInfrastructure = errors.New("infrastructure failure")

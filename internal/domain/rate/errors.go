package rate

import "errors"

// Terminal business errors of the acquisition engine. They carry enough
// context for a user-facing message and are never retried internally.
var (
	// ErrNoProviders means the tenant is in auto mode with no active
	// provider configured.
	ErrNoProviders = errors.New("no rate providers configured")

	// ErrAllProvidersExhausted means every enabled provider is out of
	// monthly quota (or disabled).
	ErrAllProvidersExhausted = errors.New("all rate providers exhausted")

	// ErrNoCachedRate means fallback found no historical rate to serve.
	ErrNoCachedRate = errors.New("no cached rate available")
)

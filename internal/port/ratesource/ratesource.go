// Package ratesource defines the port for external rate-provider APIs and
// the typed failures the failover logic is built on.
package ratesource

import (
	"context"
	"errors"
	"time"
)

// Typed provider failures. The orchestrator never surfaces these to the
// caller; they steer the switch-and-retry and fallback paths.
var (
	// ErrRateLimited means the provider throttled us. Gets exactly one
	// provider switch and retry.
	ErrRateLimited = errors.New("ratesource: rate limited by provider")
	// ErrAuthFailed means the API key was rejected.
	ErrAuthFailed = errors.New("ratesource: authentication failed")
	// ErrTimeout means the provider did not answer within the fetch timeout.
	ErrTimeout = errors.New("ratesource: request timed out")
	// ErrMalformed means the provider answered with something we could not
	// interpret as a rate.
	ErrMalformed = errors.New("ratesource: malformed response")
)

// IsRateLimited reports whether err should trigger the one-switch-one-retry
// path rather than direct fallback.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// Client fetches conversion rates from one configured provider.
type Client interface {
	// Name returns the provider code this client implements.
	Name() string

	// Fetch returns the rate for one unit of base in quote currency, or
	// one of the typed errors above.
	Fetch(ctx context.Context, base, quote string) (float64, error)

	// TestConnection reports whether the provider currently answers.
	TestConnection(ctx context.Context) bool
}

// Config carries the per-provider settings a client is built from.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

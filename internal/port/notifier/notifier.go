// Package notifier defines the notification port. Delivery is
// fire-and-forget: a failing sink never affects the engine's outcome.
package notifier

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Kind classifies a notification.
type Kind string

const (
	// KindWarning fires when remaining quota drops into the warning band.
	KindWarning Kind = "quota_warning"
	// KindCritical fires when remaining quota drops into the critical band.
	KindCritical Kind = "quota_critical"
	// KindProviderSwitch fires after a failover commits.
	KindProviderSwitch Kind = "provider_switch"
	// KindFallback fires when a cached rate is served instead of a live one.
	KindFallback Kind = "rate_fallback"
	// KindSuccess fires when a refresh recovers via a switched provider.
	KindSuccess Kind = "rate_success"
)

// Notification is the payload sent through a Notifier.
type Notification struct {
	Kind     Kind           `json:"kind"`
	TenantID string         `json:"tenant_id"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// Notifier is the port interface for a notification sink.
type Notifier interface {
	// Name returns the unique identifier for this sink (e.g. "slack", "nats").
	Name() string

	// Send delivers a notification.
	Send(ctx context.Context, n Notification) error
}

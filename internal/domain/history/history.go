// Package history defines the immutable audit records of the rate engine.
package history

import (
	"time"

	"github.com/kursd/kursd/internal/domain/rate"
)

// EventType classifies a RateEvent.
type EventType string

const (
	// EventRateChange records a new rate acquired from a provider.
	EventRateChange EventType = "rate_change"
	// EventProviderSwitch marks a failover in the rate event stream.
	EventProviderSwitch EventType = "provider_switch"
	// EventAPIRequest records a single raw fetch attempt, success or not.
	EventAPIRequest EventType = "api_request"
	// EventManualUpdate records an administrator setting the manual rate.
	EventManualUpdate EventType = "manual_update"
)

// RateEvent is an append-only audit record. Events are never updated or
// deleted except by the age-based retention sweep.
type RateEvent struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenant_id"`
	Rate          *float64       `json:"rate,omitempty"`
	ProviderID    string         `json:"provider_id,omitempty"`
	ProviderLabel string         `json:"provider_label,omitempty"`
	Source        rate.Source    `json:"source"`
	EventType     EventType      `json:"event_type"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// SwitchReason explains why the active provider changed.
type SwitchReason string

const (
	ReasonQuotaExhausted   SwitchReason = "quota_exhausted"
	ReasonRateLimited      SwitchReason = "rate_limited"
	ReasonProviderDisabled SwitchReason = "provider_disabled"
)

// SwitchEvent is appended whenever a tenant's active provider changes.
type SwitchEvent struct {
	ID            string       `json:"id"`
	TenantID      string       `json:"tenant_id"`
	OldProviderID string       `json:"old_provider_id,omitempty"`
	NewProviderID string       `json:"new_provider_id"`
	Reason        SwitchReason `json:"reason"`
	CreatedAt     time.Time    `json:"created_at"`
}

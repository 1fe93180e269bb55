// Package rate defines the domain types for the per-tenant conversion rate.
package rate

import "time"

// Mode determines where a tenant's rate comes from.
type Mode string

const (
	// ModeManual serves the administrator-configured rate as-is.
	ModeManual Mode = "manual"
	// ModeAuto acquires the rate from the provider failover chain.
	ModeAuto Mode = "auto"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeManual || m == ModeAuto
}

// Source identifies where a served rate value originated.
type Source string

const (
	SourceManual Source = "manual"
	SourceAPI    Source = "api"
	SourceCached Source = "cached"
)

// Settings holds a tenant's rate configuration and the last acquired rate.
// There is exactly one Settings row per tenant; it is updated, never deleted.
type Settings struct {
	TenantID         string    `json:"tenant_id"`
	Mode             Mode      `json:"mode"`
	ManualRate       *float64  `json:"manual_rate,omitempty"`
	CurrentRate      *float64  `json:"current_rate,omitempty"`
	ActiveProviderID string    `json:"active_provider_id,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Snapshot is the outcome of a rate read or refresh: the value, where it
// came from, and whether it is older than the freshness window.
type Snapshot struct {
	Rate          float64   `json:"rate"`
	Timestamp     time.Time `json:"timestamp"`
	Source        Source    `json:"source"`
	ProviderLabel string    `json:"provider_label"`
	Stale         bool      `json:"stale"`
}

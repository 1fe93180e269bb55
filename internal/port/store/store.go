// Package store defines the persistence port of the rate engine. All
// tenant-scoped methods read the tenant ID from the context, the same way
// the HTTP layer injects it.
package store

import (
	"context"
	"time"

	"github.com/kursd/kursd/internal/domain/history"
	"github.com/kursd/kursd/internal/domain/provider"
	"github.com/kursd/kursd/internal/domain/quota"
	"github.com/kursd/kursd/internal/domain/rate"
)

// RateUpdate is the atomic commit unit of a successful fetch: the quota
// increment, the settings update and the rate_change event succeed or fail
// together. IncrementQuota is false for unlimited providers.
type RateUpdate struct {
	ProviderID     string
	Rate           float64
	IncrementQuota bool
	// SeedLimit creates the monthly quota record on first use.
	SeedLimit int
	Year      int
	Month     time.Month
	Now       time.Time
	Event     history.RateEvent
}

// ProviderSwitch is the atomic commit unit of a failover: the active
// provider pointer moves and the switch event is appended together.
// Notification dispatch happens outside this unit.
type ProviderSwitch struct {
	NewProviderID string
	Now           time.Time
	Event         history.SwitchEvent
}

// Store is the repository port for the five engine entities.
type Store interface {
	// Settings. A tenant that has never been configured gets default
	// auto-mode settings; the row is created lazily on first write.
	GetRateSettings(ctx context.Context) (*rate.Settings, error)
	// SetManualRate persists the manual rate, switches the tenant to
	// manual mode and appends the manual_update event in one unit.
	SetManualRate(ctx context.Context, value float64, now time.Time, ev history.RateEvent) error
	SetMode(ctx context.Context, mode rate.Mode, now time.Time) error
	SetActiveProvider(ctx context.Context, providerID string, now time.Time) error
	CommitRateUpdate(ctx context.Context, upd RateUpdate) error
	SwitchActiveProvider(ctx context.Context, sw ProviderSwitch) error

	// Providers
	ListProviders(ctx context.Context) ([]provider.Provider, error)
	// ListEnabledProviders returns enabled providers ordered by ascending
	// priority, insertion order on ties.
	ListEnabledProviders(ctx context.Context) ([]provider.Provider, error)
	GetProvider(ctx context.Context, id string) (*provider.Provider, error)
	CreateProvider(ctx context.Context, p *provider.Provider) error
	UpdateProvider(ctx context.Context, p *provider.Provider) error

	// Quota. GetQuota returns nil (no error) for a provider whose monthly
	// record was never created.
	GetQuota(ctx context.Context, providerID string) (*quota.Record, error)
	// ResetQuotaIfStale zeroes the counter iff the stored (year, month)
	// differs from the given one. The compare-and-swap makes concurrent
	// first-use resets collapse to exactly one.
	ResetQuotaIfStale(ctx context.Context, providerID string, year int, month time.Month, now time.Time) (bool, error)

	// History
	AppendRateEvent(ctx context.Context, ev history.RateEvent) error
	// LatestRateEvent returns the most recent event carrying a non-null
	// rate for the tenant, any source.
	LatestRateEvent(ctx context.Context) (*history.RateEvent, error)
	ListRateEvents(ctx context.Context, limit, offset int) ([]history.RateEvent, error)
	ListSwitchEvents(ctx context.Context, limit int) ([]history.SwitchEvent, error)
	// PurgeRateEvents deletes events older than cutoff and returns the
	// number removed. Housekeeping only, no bearing on correctness.
	PurgeRateEvents(ctx context.Context, cutoff time.Time) (int64, error)
}

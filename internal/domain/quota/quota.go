// Package quota tracks per-provider monthly request budgets.
package quota

import (
	"time"

	"github.com/kursd/kursd/internal/domain/provider"
)

// Record is the usage counter for one provider in one billing month,
// keyed by (provider, year, month). It is created lazily on first use,
// seeded from the provider's monthly quota.
type Record struct {
	ProviderID   string     `json:"provider_id"`
	Year         int        `json:"year"`
	Month        time.Month `json:"month"`
	RequestsMade int        `json:"requests_made"`
	QuotaLimit   int        `json:"quota_limit"`
	LastResetAt  time.Time  `json:"last_reset_at"`
}

// ShouldReset reports whether the record belongs to a month other than
// now's. A reset happens exactly once per month boundary crossing.
func (r *Record) ShouldReset(now time.Time) bool {
	return r.Year != now.Year() || r.Month != now.Month()
}

// Remaining returns the requests left in r, never negative. A nil record
// (never used this month) has the provider's full quota remaining.
func Remaining(r *Record, p *provider.Provider) int {
	if r == nil {
		return p.MonthlyQuota
	}
	if rem := r.QuotaLimit - r.RequestsMade; rem > 0 {
		return rem
	}
	return 0
}

// Exhausted reports whether p has no quota left this month. Unlimited
// providers are never exhausted.
func Exhausted(r *Record, p *provider.Provider) bool {
	if p.IsUnlimited {
		return false
	}
	return Remaining(r, p) <= 0
}

// NextResetDate returns the first instant of the month after now, when the
// quota counter rolls over.
func NextResetDate(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
}

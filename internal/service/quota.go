package service

import (
	"context"
	"fmt"

	"github.com/kursd/kursd/internal/clock"
	"github.com/kursd/kursd/internal/domain/provider"
	"github.com/kursd/kursd/internal/domain/quota"
	"github.com/kursd/kursd/internal/port/store"
)

// QuotaService owns the monthly usage counters: point-of-use reset and the
// dashboard projection. Increments happen inside the store's commit unit so
// a rate is never current without its increment.
type QuotaService struct {
	store store.Store
	clk   clock.Clock
}

// NewQuotaService creates a QuotaService.
func NewQuotaService(st store.Store, clk clock.Clock) *QuotaService {
	return &QuotaService{store: st, clk: clk}
}

// CurrentRecord returns the provider's usage record for the current month,
// applying the monthly reset when the stored record belongs to an earlier
// month. Returns nil for a provider that has never been used.
func (s *QuotaService) CurrentRecord(ctx context.Context, p *provider.Provider) (*quota.Record, error) {
	rec, err := s.store.GetQuota(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	now := s.clk.Now()
	if !rec.ShouldReset(now) {
		return rec, nil
	}

	// The CAS inside ResetQuotaIfStale means concurrent first uses in a
	// new month collapse to a single reset.
	if _, err := s.store.ResetQuotaIfStale(ctx, p.ID, now.Year(), now.Month(), now); err != nil {
		return nil, err
	}
	return s.store.GetQuota(ctx, p.ID)
}

// Status returns the per-provider quota dashboard projection, sorted by
// failover priority. Read-only: stale records are projected as reset
// without being written.
func (s *QuotaService) Status(ctx context.Context) ([]quota.ProviderStatus, error) {
	settings, err := s.store.GetRateSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("quota status settings: %w", err)
	}

	providers, err := s.store.ListProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("quota status providers: %w", err)
	}

	now := s.clk.Now()
	result := make([]quota.ProviderStatus, 0, len(providers))
	for i := range providers {
		p := &providers[i]

		rec, err := s.store.GetQuota(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("quota status %s: %w", p.ID, err)
		}
		if rec != nil && rec.ShouldReset(now) {
			rec = nil
		}

		st := quota.ProviderStatus{
			ProviderID:  p.ID,
			Code:        p.Code,
			Name:        p.Name,
			Priority:    p.Priority,
			IsEnabled:   p.IsEnabled,
			IsUnlimited: p.IsUnlimited,
			IsActive:    p.ID == settings.ActiveProviderID,
			NextResetAt: quota.NextResetDate(now),
		}
		if !p.IsUnlimited {
			st.Limit = p.MonthlyQuota
			st.Remaining = quota.Remaining(rec, p)
			st.Used = st.Limit - st.Remaining
			if st.Limit > 0 {
				st.PercentUsed = float64(st.Used) / float64(st.Limit) * 100
			}
			st.Exhausted = quota.Exhausted(rec, p)
		}
		result = append(result, st)
	}
	return result, nil
}

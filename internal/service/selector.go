package service

import (
	"context"
	"fmt"

	"github.com/kursd/kursd/internal/clock"
	"github.com/kursd/kursd/internal/domain/provider"
	"github.com/kursd/kursd/internal/domain/quota"
	"github.com/kursd/kursd/internal/port/store"
)

// SelectorService picks the next usable provider in the failover chain.
type SelectorService struct {
	store store.Store
	clk   clock.Clock
}

// NewSelectorService creates a SelectorService.
func NewSelectorService(st store.Store, clk clock.Clock) *SelectorService {
	return &SelectorService{store: st, clk: clk}
}

// NextAvailable returns the first enabled provider, in ascending priority
// order, that is unlimited or has quota left this month. excludeID skips
// the provider currently being failed away from. Returns nil when no
// candidate qualifies. Provider counts are single digits, so the linear
// scan with one quota read per candidate is fine.
func (s *SelectorService) NextAvailable(ctx context.Context, excludeID string) (*provider.Provider, error) {
	providers, err := s.store.ListEnabledProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("next available: %w", err)
	}

	now := s.clk.Now()
	for i := range providers {
		p := &providers[i]
		if p.ID == excludeID {
			continue
		}
		if p.IsUnlimited {
			return p, nil
		}

		rec, err := s.store.GetQuota(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("next available quota %s: %w", p.ID, err)
		}
		// A record from an earlier month is a full quota waiting for
		// its point-of-use reset.
		if rec != nil && rec.ShouldReset(now) {
			rec = nil
		}
		if !quota.Exhausted(rec, p) {
			return p, nil
		}
	}
	return nil, nil
}

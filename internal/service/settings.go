package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kursd/kursd/internal/clock"
	"github.com/kursd/kursd/internal/config"
	"github.com/kursd/kursd/internal/domain"
	"github.com/kursd/kursd/internal/domain/history"
	"github.com/kursd/kursd/internal/domain/rate"
	"github.com/kursd/kursd/internal/port/cache"
	"github.com/kursd/kursd/internal/port/store"
	"github.com/kursd/kursd/internal/resilience"
)

// SettingsService serves the read path of the current rate and the manual
// rate / mode writes. Reads never trigger a fetch.
type SettingsService struct {
	store    store.Store
	cache    cache.Cache
	clk      clock.Clock
	cfg      config.Engine
	cacheTTL time.Duration
	bounds   rate.Bounds
}

// NewSettingsService creates a SettingsService.
func NewSettingsService(st store.Store, c cache.Cache, clk clock.Clock, engineCfg config.Engine, cacheTTL time.Duration) *SettingsService {
	return &SettingsService{
		store:    st,
		cache:    c,
		clk:      clk,
		cfg:      engineCfg,
		cacheTTL: cacheTTL,
		bounds:   rate.Bounds{Min: engineCfg.MinPlausibleRate, Max: engineCfg.MaxPlausibleRate},
	}
}

// CurrentRate returns the tenant's authoritative rate without fetching:
// the manual rate in manual mode, otherwise the latest acquired rate,
// otherwise the most recent historical rate. Returns domain.ErrNotFound
// when the tenant has no rate at all.
func (s *SettingsService) CurrentRate(ctx context.Context) (*rate.Snapshot, error) {
	key := rateCacheKey(tenantID(ctx))
	if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var snap rate.Snapshot
		if err := json.Unmarshal(data, &snap); err == nil {
			return &snap, nil
		}
	}

	snap, err := s.resolveRate(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(snap); err == nil {
		if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
			slog.Debug("rate cache set failed", "error", err)
		}
	}
	return snap, nil
}

func (s *SettingsService) resolveRate(ctx context.Context) (*rate.Snapshot, error) {
	settings, err := s.store.GetRateSettings(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()

	if settings.Mode == rate.ModeManual && settings.ManualRate != nil {
		return &rate.Snapshot{
			Rate:          *settings.ManualRate,
			Timestamp:     settings.UpdatedAt,
			Source:        rate.SourceManual,
			ProviderLabel: "manual",
		}, nil
	}

	if settings.CurrentRate != nil {
		label := "api"
		if settings.ActiveProviderID != "" {
			if p, err := s.store.GetProvider(ctx, settings.ActiveProviderID); err == nil {
				label = p.Name
			}
		}
		return &rate.Snapshot{
			Rate:          *settings.CurrentRate,
			Timestamp:     settings.UpdatedAt,
			Source:        rate.SourceAPI,
			ProviderLabel: label,
			Stale:         now.Sub(settings.UpdatedAt) > s.cfg.FreshnessWindow,
		}, nil
	}

	ev, err := s.store.LatestRateEvent(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("current rate: %w", domain.ErrNotFound)
		}
		return nil, err
	}

	label := ev.ProviderLabel
	if label == "" {
		label = "cached"
	}
	return &rate.Snapshot{
		Rate:          *ev.Rate,
		Timestamp:     ev.CreatedAt,
		Source:        rate.SourceCached,
		ProviderLabel: label,
		Stale:         now.Sub(ev.CreatedAt) > s.cfg.FreshnessWindow,
	}, nil
}

// SetManualRate validates and persists the manual rate, switching the
// tenant to manual mode and appending one manual_update event.
func (s *SettingsService) SetManualRate(ctx context.Context, value float64) error {
	if err := s.bounds.Validate(value); err != nil {
		return err
	}

	now := s.clk.Now()
	ev := history.RateEvent{
		TenantID:      tenantID(ctx),
		Rate:          &value,
		ProviderLabel: "manual",
		Source:        rate.SourceManual,
		EventType:     history.EventManualUpdate,
		CreatedAt:     now,
	}

	err := resilience.Persist(ctx, s.cfg, "set manual rate", func(ctx context.Context) error {
		return s.store.SetManualRate(ctx, value, now, ev)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

// SetMode switches the tenant between manual and auto acquisition.
// Switching to auto requires at least one enabled provider.
func (s *SettingsService) SetMode(ctx context.Context, mode rate.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", domain.ErrValidation, mode)
	}

	if mode == rate.ModeAuto {
		providers, err := s.store.ListEnabledProviders(ctx)
		if err != nil {
			return err
		}
		if len(providers) == 0 {
			return fmt.Errorf("%w: auto mode requires at least one enabled provider", domain.ErrValidation)
		}
	}

	err := resilience.Persist(ctx, s.cfg, "set mode", func(ctx context.Context) error {
		return s.store.SetMode(ctx, mode, s.clk.Now())
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

// invalidate drops the tenant's cached snapshot after a write.
func (s *SettingsService) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, rateCacheKey(tenantID(ctx))); err != nil {
		slog.Debug("rate cache invalidate failed", "error", err)
	}
}

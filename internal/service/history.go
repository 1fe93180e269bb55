package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/kursd/kursd/internal/clock"
	"github.com/kursd/kursd/internal/domain/history"
	"github.com/kursd/kursd/internal/domain/provider"
	"github.com/kursd/kursd/internal/domain/rate"
	"github.com/kursd/kursd/internal/port/store"
)

// HistoryService is the audit recorder: append-only rate and switch events
// plus the age-based retention sweep.
type HistoryService struct {
	store           store.Store
	clk             clock.Clock
	retentionMonths int
}

// NewHistoryService creates a HistoryService.
func NewHistoryService(st store.Store, clk clock.Clock, retentionMonths int) *HistoryService {
	return &HistoryService{store: st, clk: clk, retentionMonths: retentionMonths}
}

// RecordAPIAttempt appends a request-level audit record for one raw fetch
// attempt. Best-effort: a failed audit write is logged, not propagated, so
// attempt auditing never changes the refresh outcome. The rate field stays
// null; only rate_change events feed the fallback read.
func (s *HistoryService) RecordAPIAttempt(ctx context.Context, p *provider.Provider, success bool, took time.Duration, attemptErr error) {
	meta := map[string]any{
		"provider_code": p.Code,
		"success":       success,
		"duration_ms":   took.Milliseconds(),
	}
	if attemptErr != nil {
		meta["error"] = attemptErr.Error()
	}

	ev := history.RateEvent{
		TenantID:      tenantID(ctx),
		ProviderID:    p.ID,
		ProviderLabel: p.Name,
		Source:        rate.SourceAPI,
		EventType:     history.EventAPIRequest,
		Metadata:      meta,
		CreatedAt:     s.clk.Now(),
	}
	if err := s.store.AppendRateEvent(ctx, ev); err != nil {
		slog.Warn("api attempt audit failed", "provider", p.Code, "error", err)
	}
}

// Latest returns the most recent event carrying a rate for the tenant.
func (s *HistoryService) Latest(ctx context.Context) (*history.RateEvent, error) {
	return s.store.LatestRateEvent(ctx)
}

// List returns the tenant's audit trail, newest first.
func (s *HistoryService) List(ctx context.Context, limit, offset int) ([]history.RateEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListRateEvents(ctx, limit, offset)
}

// Switches returns the tenant's failover history, newest first.
func (s *HistoryService) Switches(ctx context.Context, limit int) ([]history.SwitchEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListSwitchEvents(ctx, limit)
}

// Purge deletes audit records older than the retention horizon and returns
// the number removed. Housekeeping only; correctness never depends on it.
func (s *HistoryService) Purge(ctx context.Context) (int64, error) {
	cutoff := s.clk.Now().AddDate(0, -s.retentionMonths, 0)
	return s.store.PurgeRateEvents(ctx, cutoff)
}

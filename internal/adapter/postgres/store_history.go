package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kursd/kursd/internal/domain/history"
)

// AppendRateEvent appends a single audit record outside any transaction.
func (s *Store) AppendRateEvent(ctx context.Context, ev history.RateEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rate_events (id, tenant_id, rate, provider_id, provider_label, source, event_type, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ev.ID, ev.TenantID, ev.Rate, nullIfEmpty(ev.ProviderID), ev.ProviderLabel,
		ev.Source, ev.EventType, metadataOrEmpty(ev.Metadata), ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("append rate event: %w", err)
	}
	return nil
}

// LatestRateEvent returns the most recent event carrying a non-null rate
// for the tenant, any source. This is the fallback read.
func (s *Store) LatestRateEvent(ctx context.Context) (*history.RateEvent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, rate, provider_id, provider_label, source, event_type, metadata, created_at
		 FROM rate_events
		 WHERE tenant_id = $1 AND rate IS NOT NULL
		 ORDER BY created_at DESC
		 LIMIT 1`,
		tenantFromCtx(ctx))

	ev, err := scanRateEvent(row)
	if err != nil {
		return nil, notFoundWrap(err, "latest rate event")
	}
	return ev, nil
}

// ListRateEvents returns the tenant's audit trail, newest first.
func (s *Store) ListRateEvents(ctx context.Context, limit, offset int) ([]history.RateEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, rate, provider_id, provider_label, source, event_type, metadata, created_at
		 FROM rate_events
		 WHERE tenant_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		tenantFromCtx(ctx), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list rate events: %w", err)
	}
	defer rows.Close()

	var result []history.RateEvent
	for rows.Next() {
		ev, err := scanRateEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rate event: %w", err)
		}
		result = append(result, *ev)
	}
	return result, rows.Err()
}

// ListSwitchEvents returns the tenant's failover history, newest first.
func (s *Store) ListSwitchEvents(ctx context.Context, limit int) ([]history.SwitchEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, old_provider_id, new_provider_id, reason, created_at
		 FROM provider_switch_events
		 WHERE tenant_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		tenantFromCtx(ctx), limit)
	if err != nil {
		return nil, fmt.Errorf("list switch events: %w", err)
	}
	defer rows.Close()

	var result []history.SwitchEvent
	for rows.Next() {
		var (
			ev  history.SwitchEvent
			old *string
		)
		if err := rows.Scan(&ev.ID, &ev.TenantID, &old, &ev.NewProviderID, &ev.Reason, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan switch event: %w", err)
		}
		ev.OldProviderID = orEmpty(old)
		result = append(result, ev)
	}
	return result, rows.Err()
}

// PurgeRateEvents deletes audit records older than cutoff.
func (s *Store) PurgeRateEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM rate_events WHERE tenant_id = $1 AND created_at < $2`,
		tenantFromCtx(ctx), cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge rate events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRateEvent(row pgx.Row) (*history.RateEvent, error) {
	var (
		ev         history.RateEvent
		providerID *string
	)
	err := row.Scan(&ev.ID, &ev.TenantID, &ev.Rate, &providerID, &ev.ProviderLabel,
		&ev.Source, &ev.EventType, &ev.Metadata, &ev.CreatedAt)
	if err != nil {
		return nil, err
	}
	ev.ProviderID = orEmpty(providerID)
	return &ev, nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kursd/kursd/internal/domain/history"
	"github.com/kursd/kursd/internal/port/store"
)

// CommitRateUpdate applies the outcome of a successful fetch as one
// transaction: the quota increment (unless the provider is unlimited), the
// settings update and the rate_change event. A rate is never recorded as
// current without its quota increment having also committed.
func (s *Store) CommitRateUpdate(ctx context.Context, upd store.RateUpdate) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("commit rate update begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if upd.IncrementQuota {
		// Single-statement upsert keeps concurrent increments atomic;
		// no read-modify-write in application code.
		_, err = tx.Exec(ctx,
			`INSERT INTO quota_records (provider_id, year, month, requests_made, quota_limit, last_reset_at)
			 VALUES ($1, $2, $3, 1, $4, $5)
			 ON CONFLICT (provider_id) DO UPDATE
			 SET requests_made = quota_records.requests_made + 1`,
			upd.ProviderID, upd.Year, int(upd.Month), upd.SeedLimit, upd.Now)
		if err != nil {
			return fmt.Errorf("increment quota: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO rate_settings (tenant_id, current_rate, active_provider_id, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tenant_id) DO UPDATE
		 SET current_rate = EXCLUDED.current_rate,
		     active_provider_id = EXCLUDED.active_provider_id,
		     updated_at = EXCLUDED.updated_at`,
		tenantFromCtx(ctx), upd.Rate, upd.ProviderID, upd.Now)
	if err != nil {
		return fmt.Errorf("update current rate: %w", err)
	}

	if err := insertRateEvent(ctx, tx, upd.Event); err != nil {
		return fmt.Errorf("rate change event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rate update: %w", err)
	}
	return nil
}

// SwitchActiveProvider moves the active provider pointer and appends the
// switch event in one transaction. Notification dispatch stays outside so a
// sink failure never rolls back a committed switch.
func (s *Store) SwitchActiveProvider(ctx context.Context, sw store.ProviderSwitch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("switch provider begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO rate_settings (tenant_id, active_provider_id, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (tenant_id) DO UPDATE
		 SET active_provider_id = EXCLUDED.active_provider_id, updated_at = EXCLUDED.updated_at`,
		tenantFromCtx(ctx), sw.NewProviderID, sw.Now)
	if err != nil {
		return fmt.Errorf("update active provider: %w", err)
	}

	ev := sw.Event
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO provider_switch_events (id, tenant_id, old_provider_id, new_provider_id, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.ID, ev.TenantID, nullIfEmpty(ev.OldProviderID), ev.NewProviderID, ev.Reason, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("switch event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("switch provider commit: %w", err)
	}
	return nil
}

// insertRateEvent appends a rate event using the given transaction.
func insertRateEvent(ctx context.Context, tx pgx.Tx, ev history.RateEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO rate_events (id, tenant_id, rate, provider_id, provider_label, source, event_type, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ev.ID, ev.TenantID, ev.Rate, nullIfEmpty(ev.ProviderID), ev.ProviderLabel,
		ev.Source, ev.EventType, metadataOrEmpty(ev.Metadata), ev.CreatedAt)
	return err
}

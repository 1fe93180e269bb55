package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kursd/kursd/internal/domain/history"
	"github.com/kursd/kursd/internal/domain/rate"
)

// GetRateSettings returns the tenant's rate settings. A tenant that has
// never been configured gets the default auto-mode settings; the row is
// created lazily on first write.
func (s *Store) GetRateSettings(ctx context.Context) (*rate.Settings, error) {
	tenantID := tenantFromCtx(ctx)

	var (
		st         rate.Settings
		providerID *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT mode, manual_rate, current_rate, active_provider_id, updated_at
		 FROM rate_settings WHERE tenant_id = $1`,
		tenantID).Scan(&st.Mode, &st.ManualRate, &st.CurrentRate, &providerID, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &rate.Settings{TenantID: tenantID, Mode: rate.ModeAuto}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rate settings: %w", err)
	}

	st.TenantID = tenantID
	st.ActiveProviderID = orEmpty(providerID)
	return &st, nil
}

// SetManualRate persists the manual rate, switches the tenant to manual mode
// and appends the manual_update event in one transaction.
func (s *Store) SetManualRate(ctx context.Context, value float64, now time.Time, ev history.RateEvent) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("set manual rate begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO rate_settings (tenant_id, mode, manual_rate, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tenant_id) DO UPDATE
		 SET mode = EXCLUDED.mode, manual_rate = EXCLUDED.manual_rate, updated_at = EXCLUDED.updated_at`,
		tenantFromCtx(ctx), rate.ModeManual, value, now)
	if err != nil {
		return fmt.Errorf("set manual rate: %w", err)
	}

	if err := insertRateEvent(ctx, tx, ev); err != nil {
		return fmt.Errorf("set manual rate event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("set manual rate commit: %w", err)
	}
	return nil
}

// SetMode updates the acquisition mode without touching the stored rates.
func (s *Store) SetMode(ctx context.Context, mode rate.Mode, now time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rate_settings (tenant_id, mode, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (tenant_id) DO UPDATE
		 SET mode = EXCLUDED.mode, updated_at = EXCLUDED.updated_at`,
		tenantFromCtx(ctx), mode, now)
	if err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	return nil
}

// SetActiveProvider moves the active provider pointer without recording a
// switch event. Used when a tenant's first provider is configured.
func (s *Store) SetActiveProvider(ctx context.Context, providerID string, now time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO rate_settings (tenant_id, active_provider_id, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (tenant_id) DO UPDATE
		 SET active_provider_id = EXCLUDED.active_provider_id, updated_at = EXCLUDED.updated_at`,
		tenantFromCtx(ctx), nullIfEmpty(providerID), now)
	if err != nil {
		return fmt.Errorf("set active provider: %w", err)
	}
	return nil
}

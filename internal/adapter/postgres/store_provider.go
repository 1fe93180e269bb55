package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kursd/kursd/internal/domain/provider"
)

const providerColumns = `id, tenant_id, code, name, api_url, api_key, requires_api_key,
	is_unlimited, monthly_quota, priority, is_enabled, warning_threshold, critical_threshold,
	created_at, updated_at`

// ListProviders returns all of the tenant's providers in failover order.
func (s *Store) ListProviders(ctx context.Context) ([]provider.Provider, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+providerColumns+` FROM providers
		 WHERE tenant_id = $1
		 ORDER BY priority, created_at`,
		tenantFromCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	return scanProviders(rows)
}

// ListEnabledProviders returns the tenant's enabled providers ordered by
// ascending priority, insertion order on ties.
func (s *Store) ListEnabledProviders(ctx context.Context) ([]provider.Provider, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+providerColumns+` FROM providers
		 WHERE tenant_id = $1 AND is_enabled
		 ORDER BY priority, created_at`,
		tenantFromCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("list enabled providers: %w", err)
	}
	defer rows.Close()

	return scanProviders(rows)
}

// GetProvider returns a single provider by ID within the current tenant.
func (s *Store) GetProvider(ctx context.Context, id string) (*provider.Provider, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+providerColumns+` FROM providers WHERE id = $1 AND tenant_id = $2`,
		id, tenantFromCtx(ctx))

	p, err := scanProvider(row)
	if err != nil {
		return nil, notFoundWrap(err, "get provider %s", id)
	}
	return p, nil
}

// CreateProvider inserts a new provider configuration.
func (s *Store) CreateProvider(ctx context.Context, p *provider.Provider) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.TenantID = tenantFromCtx(ctx)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO providers (id, tenant_id, code, name, api_url, api_key, requires_api_key,
		   is_unlimited, monthly_quota, priority, is_enabled, warning_threshold, critical_threshold,
		   created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`,
		p.ID, p.TenantID, p.Code, p.Name, p.APIURL, p.APIKey, p.RequiresAPIKey,
		p.IsUnlimited, p.MonthlyQuota, p.Priority, p.IsEnabled,
		p.WarningThreshold, p.CriticalThreshold, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}
	return nil
}

// UpdateProvider overwrites an existing provider configuration. Providers
// are never hard-deleted; disabling is done through IsEnabled.
func (s *Store) UpdateProvider(ctx context.Context, p *provider.Provider) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE providers
		 SET code = $3, name = $4, api_url = $5, api_key = $6, requires_api_key = $7,
		     is_unlimited = $8, monthly_quota = $9, priority = $10, is_enabled = $11,
		     warning_threshold = $12, critical_threshold = $13, updated_at = $14
		 WHERE id = $1 AND tenant_id = $2`,
		p.ID, tenantFromCtx(ctx), p.Code, p.Name, p.APIURL, p.APIKey, p.RequiresAPIKey,
		p.IsUnlimited, p.MonthlyQuota, p.Priority, p.IsEnabled,
		p.WarningThreshold, p.CriticalThreshold, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update provider: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundWrap(pgx.ErrNoRows, "update provider %s", p.ID)
	}
	return nil
}

func scanProvider(row pgx.Row) (*provider.Provider, error) {
	var p provider.Provider
	err := row.Scan(&p.ID, &p.TenantID, &p.Code, &p.Name, &p.APIURL, &p.APIKey,
		&p.RequiresAPIKey, &p.IsUnlimited, &p.MonthlyQuota, &p.Priority, &p.IsEnabled,
		&p.WarningThreshold, &p.CriticalThreshold, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanProviders(rows pgx.Rows) ([]provider.Provider, error) {
	var result []provider.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

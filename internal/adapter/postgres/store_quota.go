package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kursd/kursd/internal/domain/quota"
)

// GetQuota returns the provider's monthly quota record, or nil if it was
// never created.
func (s *Store) GetQuota(ctx context.Context, providerID string) (*quota.Record, error) {
	var (
		rec   quota.Record
		month int
	)
	err := s.pool.QueryRow(ctx,
		`SELECT provider_id, year, month, requests_made, quota_limit, last_reset_at
		 FROM quota_records WHERE provider_id = $1`,
		providerID).Scan(&rec.ProviderID, &rec.Year, &month, &rec.RequestsMade, &rec.QuotaLimit, &rec.LastResetAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quota %s: %w", providerID, err)
	}

	rec.Month = time.Month(month)
	return &rec, nil
}

// ResetQuotaIfStale zeroes the counter iff the stored (year, month) differs
// from the given one. The guard in the WHERE clause is the compare-and-swap
// that makes concurrent first-use resets collapse to exactly one; repeating
// the call within the same month is a no-op.
func (s *Store) ResetQuotaIfStale(ctx context.Context, providerID string, year int, month time.Month, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE quota_records
		 SET requests_made = 0, year = $2, month = $3, last_reset_at = $4
		 WHERE provider_id = $1 AND (year <> $2 OR month <> $3)`,
		providerID, year, int(month), now)
	if err != nil {
		return false, fmt.Errorf("reset quota %s: %w", providerID, err)
	}
	return tag.RowsAffected() > 0, nil
}

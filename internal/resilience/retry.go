package resilience

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-retry"

	"github.com/kursd/kursd/internal/config"
	"github.com/kursd/kursd/internal/domain"
)

// Persist runs a persistence operation with bounded exponential backoff.
// When the attempts are exhausted the error is wrapped as an infrastructure
// failure, which callers must surface instead of falling back: after a
// storage failure the system's state is uncertain.
func Persist(ctx context.Context, cfg config.Engine, op string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(uint64(cfg.RetryAttempts), retry.NewExponential(cfg.RetryBaseDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrInfrastructure, err)
	}
	return nil
}

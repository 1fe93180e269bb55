// Package provider defines rate-provider configurations and their quota
// policy.
package provider

import (
	"fmt"
	"time"

	"github.com/kursd/kursd/internal/domain"
)

// Provider is an external rate-source API configuration. Providers are
// tenant-scoped and soft-disabled via IsEnabled; they are never hard-deleted
// while quota or history records reference them.
type Provider struct {
	ID             string `json:"id"`
	TenantID       string `json:"tenant_id"`
	Code           string `json:"code"` // selects the client implementation
	Name           string `json:"name"`
	APIURL         string `json:"api_url"`
	APIKey         string `json:"-"` // encrypted at rest, never serialized
	RequiresAPIKey bool   `json:"requires_api_key"`
	IsUnlimited    bool   `json:"is_unlimited"`
	MonthlyQuota   int    `json:"monthly_quota"` // meaningless when IsUnlimited
	// Priority orders the failover chain; lower means tried first. Ties
	// are broken by insertion order.
	Priority  int  `json:"priority"`
	IsEnabled bool `json:"is_enabled"`
	// Thresholds are counts of remaining requests, not percentages.
	WarningThreshold  int       `json:"warning_threshold"`
	CriticalThreshold int       `json:"critical_threshold"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Validate checks the administrative invariants of a provider config.
func (p *Provider) Validate() error {
	if p.Code == "" {
		return fmt.Errorf("%w: provider code is required", domain.ErrValidation)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: provider name is required", domain.ErrValidation)
	}
	if p.APIURL == "" {
		return fmt.Errorf("%w: provider api_url is required", domain.ErrValidation)
	}
	if p.RequiresAPIKey && p.APIKey == "" {
		return fmt.Errorf("%w: provider %s requires an API key", domain.ErrValidation, p.Code)
	}
	if !p.IsUnlimited && p.MonthlyQuota <= 0 {
		return fmt.Errorf("%w: monthly quota must be positive for limited providers", domain.ErrValidation)
	}
	if p.WarningThreshold < 0 || p.CriticalThreshold < 0 {
		return fmt.Errorf("%w: thresholds must be non-negative", domain.ErrValidation)
	}
	if p.CriticalThreshold > p.WarningThreshold {
		return fmt.Errorf("%w: critical threshold (%d) must not exceed warning threshold (%d)",
			domain.ErrValidation, p.CriticalThreshold, p.WarningThreshold)
	}
	return nil
}

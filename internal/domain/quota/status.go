package quota

import "time"

// ProviderStatus is the dashboard projection of one provider's quota,
// listed in failover order.
type ProviderStatus struct {
	ProviderID  string    `json:"provider_id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Priority    int       `json:"priority"`
	IsEnabled   bool      `json:"is_enabled"`
	IsUnlimited bool      `json:"is_unlimited"`
	IsActive    bool      `json:"is_active"`
	Used        int       `json:"used"`
	Limit       int       `json:"limit"`
	Remaining   int       `json:"remaining"`
	PercentUsed float64   `json:"percent_used"`
	Exhausted   bool      `json:"exhausted"`
	NextResetAt time.Time `json:"next_reset_at"`
}

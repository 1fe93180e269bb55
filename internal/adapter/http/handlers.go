// Package http exposes the rate engine over a JSON REST API.
package http

import (
	"net/http"
	"strconv"

	"github.com/kursd/kursd/internal/adapter/ws"
	"github.com/kursd/kursd/internal/domain/provider"
	"github.com/kursd/kursd/internal/domain/rate"
	"github.com/kursd/kursd/internal/service"
)

// Handlers bundles the service dependencies for all HTTP endpoints.
type Handlers struct {
	Settings     *service.SettingsService
	Orchestrator *service.Orchestrator
	Providers    *service.ProviderService
	Quotas       *service.QuotaService
	History      *service.HistoryService
	Hub          *ws.Hub
	Ready        func(r *http.Request) error
}

// ---------------------------------------------------------------------------
// Rates
// ---------------------------------------------------------------------------

// GetCurrentRate serves the tenant's current rate without contacting any
// provider.
func (h *Handlers) GetCurrentRate(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Settings.CurrentRate(r.Context())
	if err != nil {
		writeDomainError(w, err, "no rate configured for tenant")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// RefreshRate runs a full acquisition cycle and returns the resulting rate.
func (h *Handlers) RefreshRate(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Orchestrator.RefreshRate(r.Context())
	if err != nil {
		writeDomainError(w, err, "rate refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type manualRateRequest struct {
	Rate float64 `json:"rate"`
}

// SetManualRate stores an administrator-provided rate and switches the
// tenant to manual mode.
func (h *Handlers) SetManualRate(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[manualRateRequest](w, r)
	if !ok {
		return
	}
	if err := h.Settings.SetManualRate(r.Context(), req.Rate); err != nil {
		writeDomainError(w, err, "rate settings not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rate": req.Rate, "mode": rate.ModeManual})
}

type modeRequest struct {
	Mode string `json:"mode"`
}

// SetMode switches the tenant between manual and automatic acquisition.
func (h *Handlers) SetMode(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[modeRequest](w, r)
	if !ok {
		return
	}
	if err := h.Settings.SetMode(r.Context(), rate.Mode(req.Mode)); err != nil {
		writeDomainError(w, err, "rate settings not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mode": req.Mode})
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

// ListRateHistory returns the tenant's audit trail, newest first.
func (h *Handlers) ListRateHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	events, err := h.History.List(r.Context(), limit, offset)
	if err != nil {
		writeDomainError(w, err, "history not found")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// ListSwitchHistory returns the tenant's failover history, newest first.
func (h *Handlers) ListSwitchHistory(w http.ResponseWriter, r *http.Request) {
	events, err := h.History.Switches(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeDomainError(w, err, "switch history not found")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// ---------------------------------------------------------------------------
// Quota
// ---------------------------------------------------------------------------

// QuotaStatus returns the per-provider quota dashboard.
func (h *Handlers) QuotaStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Quotas.Status(r.Context())
	if err != nil {
		writeDomainError(w, err, "quota status unavailable")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// ---------------------------------------------------------------------------
// Providers
// ---------------------------------------------------------------------------

// providerRequest is the admin-facing provider payload. The API key is
// write-only; it never appears in responses.
type providerRequest struct {
	Code              string `json:"code"`
	Name              string `json:"name"`
	APIURL            string `json:"api_url"`
	APIKey            string `json:"api_key"`
	RequiresAPIKey    bool   `json:"requires_api_key"`
	IsUnlimited       bool   `json:"is_unlimited"`
	MonthlyQuota      int    `json:"monthly_quota"`
	Priority          int    `json:"priority"`
	IsEnabled         bool   `json:"is_enabled"`
	WarningThreshold  int    `json:"warning_threshold"`
	CriticalThreshold int    `json:"critical_threshold"`
}

func (req *providerRequest) toDomain() *provider.Provider {
	return &provider.Provider{
		Code:              req.Code,
		Name:              req.Name,
		APIURL:            req.APIURL,
		APIKey:            req.APIKey,
		RequiresAPIKey:    req.RequiresAPIKey,
		IsUnlimited:       req.IsUnlimited,
		MonthlyQuota:      req.MonthlyQuota,
		Priority:          req.Priority,
		IsEnabled:         req.IsEnabled,
		WarningThreshold:  req.WarningThreshold,
		CriticalThreshold: req.CriticalThreshold,
	}
}

// ListProviders returns all provider configurations for the tenant.
func (h *Handlers) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.Providers.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "providers not found")
		return
	}
	writeJSON(w, http.StatusOK, providers)
}

// GetProvider returns one provider configuration.
func (h *Handlers) GetProvider(w http.ResponseWriter, r *http.Request) {
	p, err := h.Providers.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "provider not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreateProvider registers a new provider configuration.
func (h *Handlers) CreateProvider(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[providerRequest](w, r)
	if !ok {
		return
	}
	p := req.toDomain()
	if err := h.Providers.Create(r.Context(), p); err != nil {
		writeDomainError(w, err, "provider not found")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// UpdateProvider updates an existing provider configuration. An omitted
// API key keeps the stored one.
func (h *Handlers) UpdateProvider(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[providerRequest](w, r)
	if !ok {
		return
	}
	p := req.toDomain()
	p.ID = urlParam(r, "id")
	if err := h.Providers.Update(r.Context(), p); err != nil {
		writeDomainError(w, err, "provider not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// TestProvider checks whether the provider answers with usable data.
func (h *Handlers) TestProvider(w http.ResponseWriter, r *http.Request) {
	ok, err := h.Providers.TestConnection(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "provider not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reachable": ok})
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

// Health reports process liveness and storage reachability.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil {
		if err := h.Ready(r); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/kursd/kursd/internal/adapter/otel"
	"github.com/kursd/kursd/internal/clock"
	"github.com/kursd/kursd/internal/config"
	"github.com/kursd/kursd/internal/domain"
	"github.com/kursd/kursd/internal/domain/history"
	"github.com/kursd/kursd/internal/domain/provider"
	"github.com/kursd/kursd/internal/domain/quota"
	"github.com/kursd/kursd/internal/domain/rate"
	"github.com/kursd/kursd/internal/port/cache"
	"github.com/kursd/kursd/internal/port/notifier"
	"github.com/kursd/kursd/internal/port/ratesource"
	"github.com/kursd/kursd/internal/port/store"
	"github.com/kursd/kursd/internal/resilience"
)

// Orchestrator drives a rate refresh end to end: quota reset and threshold
// checks, provider selection, fetch, atomic commit, failover and the cached
// fallback. It is the only component that writes rate state.
type Orchestrator struct {
	store     store.Store
	providers *ProviderService
	quotas    *QuotaService
	selector  *SelectorService
	history   *HistoryService
	notify    *NotificationService
	cache     cache.Cache
	clk       clock.Clock
	cfg       config.Engine
	metrics   *otel.Metrics
	bounds    rate.Bounds

	// group collapses concurrent refreshes for the same tenant into one
	// provider call.
	group singleflight.Group
}

// NewOrchestrator wires the refresh pipeline.
func NewOrchestrator(
	st store.Store,
	providers *ProviderService,
	quotas *QuotaService,
	selector *SelectorService,
	hist *HistoryService,
	notify *NotificationService,
	c cache.Cache,
	clk clock.Clock,
	engineCfg config.Engine,
	metrics *otel.Metrics,
) *Orchestrator {
	return &Orchestrator{
		store:     st,
		providers: providers,
		quotas:    quotas,
		selector:  selector,
		history:   hist,
		notify:    notify,
		cache:     c,
		clk:       clk,
		cfg:       engineCfg,
		metrics:   metrics,
		bounds:    rate.Bounds{Min: engineCfg.MinPlausibleRate, Max: engineCfg.MaxPlausibleRate},
	}
}

// RefreshRate acquires a current rate for the tenant. Concurrent calls for
// the same tenant share a single acquisition.
func (o *Orchestrator) RefreshRate(ctx context.Context) (*rate.Snapshot, error) {
	v, err, _ := o.group.Do(tenantID(ctx), func() (any, error) {
		return o.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*rate.Snapshot), nil
}

func (o *Orchestrator) refresh(ctx context.Context) (*rate.Snapshot, error) {
	settings, err := o.store.GetRateSettings(ctx)
	if err != nil {
		return nil, err
	}

	if settings.Mode == rate.ModeManual {
		return o.manualSnapshot(settings)
	}

	active, err := o.resolveActive(ctx, settings)
	if err != nil {
		if errors.Is(err, domain.ErrInfrastructure) {
			return nil, err
		}
		return o.fallback(ctx, err)
	}

	rec, err := o.quotas.CurrentRecord(ctx, active)
	if err != nil {
		return nil, err
	}

	o.notifyThresholds(ctx, active, rec)

	switched := false
	if quota.Exhausted(rec, active) {
		next, err := o.switchProvider(ctx, active, history.ReasonQuotaExhausted)
		if err != nil {
			if errors.Is(err, domain.ErrInfrastructure) {
				return nil, err
			}
			return o.fallback(ctx, err)
		}
		active = next
		switched = true
	}

	snap, err := o.fetchAndCommit(ctx, active)
	if err == nil {
		if switched {
			o.notifyRecovered(ctx, active, snap.Rate)
		}
		return snap, nil
	}
	if errors.Is(err, domain.ErrInfrastructure) {
		return nil, err
	}

	// A throttled provider gets exactly one switch and one retry. Any
	// other provider failure, or a second failure after the switch, is
	// served from cached history.
	if ratesource.IsRateLimited(err) && !switched {
		next, swErr := o.switchProvider(ctx, active, history.ReasonRateLimited)
		if swErr != nil {
			if errors.Is(swErr, domain.ErrInfrastructure) {
				return nil, swErr
			}
			return o.fallback(ctx, swErr)
		}

		snap, err = o.fetchAndCommit(ctx, next)
		if err == nil {
			o.notifyRecovered(ctx, next, snap.Rate)
			return snap, nil
		}
		if errors.Is(err, domain.ErrInfrastructure) {
			return nil, err
		}
	}

	return o.fallback(ctx, err)
}

func (o *Orchestrator) manualSnapshot(settings *rate.Settings) (*rate.Snapshot, error) {
	if settings.ManualRate == nil {
		return nil, fmt.Errorf("%w: manual mode without a manual rate", domain.ErrValidation)
	}
	if err := o.bounds.Validate(*settings.ManualRate); err != nil {
		return nil, err
	}
	return &rate.Snapshot{
		Rate:          *settings.ManualRate,
		Timestamp:     settings.UpdatedAt,
		Source:        rate.SourceManual,
		ProviderLabel: "manual",
	}, nil
}

// resolveActive returns the tenant's active provider, repairing the pointer
// when it is unset, dangling or points at a disabled provider.
func (o *Orchestrator) resolveActive(ctx context.Context, settings *rate.Settings) (*provider.Provider, error) {
	if settings.ActiveProviderID == "" {
		next, err := o.selector.NextAvailable(ctx, "")
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, fmt.Errorf("refresh: %w", rate.ErrNoProviders)
		}
		err = resilience.Persist(ctx, o.cfg, "set active provider", func(ctx context.Context) error {
			return o.store.SetActiveProvider(ctx, next.ID, o.clk.Now())
		})
		if err != nil {
			return nil, err
		}
		return next, nil
	}

	p, err := o.store.GetProvider(ctx, settings.ActiveProviderID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return o.switchProvider(ctx, &provider.Provider{ID: settings.ActiveProviderID}, history.ReasonProviderDisabled)
	case err != nil:
		return nil, err
	case !p.IsEnabled:
		return o.switchProvider(ctx, p, history.ReasonProviderDisabled)
	}
	return p, nil
}

// notifyThresholds emits at most one quota notification per refresh: the
// critical band wins over the warning band, and an exhausted or unlimited
// provider emits neither.
func (o *Orchestrator) notifyThresholds(ctx context.Context, p *provider.Provider, rec *quota.Record) {
	if p.IsUnlimited {
		return
	}
	remaining := quota.Remaining(rec, p)
	if remaining <= 0 {
		return
	}

	switch {
	case remaining <= p.CriticalThreshold:
		meta := map[string]any{
			"provider_id":   p.ID,
			"provider_code": p.Code,
			"remaining":     remaining,
			"limit":         p.MonthlyQuota,
		}
		inLine := "no provider is next in line"
		if next, err := o.selector.NextAvailable(ctx, p.ID); err == nil && next != nil {
			nextRemaining := o.remainingLabel(ctx, next)
			meta["next_provider_id"] = next.ID
			meta["next_remaining"] = nextRemaining
			inLine = fmt.Sprintf("next in line is %s with %s requests remaining", next.Name, nextRemaining)
		}
		o.send(ctx, notifier.Notification{
			Kind:     notifier.KindCritical,
			TenantID: tenantID(ctx),
			Title:    "Provider quota critical",
			Message: fmt.Sprintf("%s has %d of %d requests left this month; %s",
				p.Name, remaining, p.MonthlyQuota, inLine),
			Meta: meta,
		})
	case remaining <= p.WarningThreshold:
		o.send(ctx, notifier.Notification{
			Kind:     notifier.KindWarning,
			TenantID: tenantID(ctx),
			Title:    "Provider quota warning",
			Message: fmt.Sprintf("%s has %d of %d requests left this month",
				p.Name, remaining, p.MonthlyQuota),
			Meta: map[string]any{
				"provider_id":   p.ID,
				"provider_code": p.Code,
				"remaining":     remaining,
				"limit":         p.MonthlyQuota,
			},
		})
	}
}

// remainingLabel renders a provider's quota headroom for notification text.
func (o *Orchestrator) remainingLabel(ctx context.Context, p *provider.Provider) string {
	if p.IsUnlimited {
		return "unlimited"
	}
	rec, err := o.quotas.CurrentRecord(ctx, p)
	if err != nil {
		return "unknown"
	}
	return fmt.Sprintf("%d of %d", quota.Remaining(rec, p), p.MonthlyQuota)
}

// switchProvider moves the tenant's active pointer to the next usable
// provider and records the switch. The notification goes out only after
// the switch has committed.
func (o *Orchestrator) switchProvider(ctx context.Context, from *provider.Provider, reason history.SwitchReason) (*provider.Provider, error) {
	next, err := o.selector.NextAvailable(ctx, from.ID)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, fmt.Errorf("switch from %s: %w", from.ID, rate.ErrAllProvidersExhausted)
	}

	now := o.clk.Now()
	sw := store.ProviderSwitch{
		NewProviderID: next.ID,
		Now:           now,
		Event: history.SwitchEvent{
			TenantID:      tenantID(ctx),
			OldProviderID: from.ID,
			NewProviderID: next.ID,
			Reason:        reason,
			CreatedAt:     now,
		},
	}
	err = resilience.Persist(ctx, o.cfg, "switch active provider", func(ctx context.Context) error {
		return o.store.SwitchActiveProvider(ctx, sw)
	})
	if err != nil {
		return nil, err
	}

	o.metrics.ProviderSwitches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", string(reason)),
	))
	slog.Info("active provider switched",
		"tenant", tenantID(ctx),
		"from", from.ID,
		"to", next.ID,
		"reason", string(reason),
	)

	remaining := o.remainingLabel(ctx, next)
	fromName := from.Name
	if fromName == "" {
		fromName = from.ID
	}
	o.send(ctx, notifier.Notification{
		Kind:     notifier.KindProviderSwitch,
		TenantID: tenantID(ctx),
		Title:    "Rate provider switched",
		Message: fmt.Sprintf("switched from %s to %s (%s); %s has %s requests remaining",
			fromName, next.Name, reason, next.Name, remaining),
		Meta: map[string]any{
			"old_provider_id": from.ID,
			"new_provider_id": next.ID,
			"reason":          string(reason),
		},
	})

	return next, nil
}

// fetchAndCommit performs one provider call and, on success, commits the
// rate, the quota increment and the rate_change event atomically.
func (o *Orchestrator) fetchAndCommit(ctx context.Context, p *provider.Provider) (*rate.Snapshot, error) {
	client, err := o.providers.ClientFor(p)
	if err != nil {
		return nil, err
	}

	attrs := metric.WithAttributes(attribute.String("provider", p.Code))
	o.metrics.FetchAttempts.Add(ctx, 1, attrs)

	fctx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	value, err := client.Fetch(fctx, o.cfg.BaseCurrency, o.cfg.QuoteCurrency)
	took := time.Since(start)

	o.metrics.FetchDuration.Record(ctx, took.Seconds(), attrs)
	o.history.RecordAPIAttempt(ctx, p, err == nil, took, err)

	if err != nil {
		o.metrics.FetchFailures.Add(ctx, 1, attrs)
		return nil, fmt.Errorf("fetch %s: %w", p.Code, err)
	}
	if verr := o.bounds.Validate(value); verr != nil {
		o.metrics.FetchFailures.Add(ctx, 1, attrs)
		return nil, fmt.Errorf("fetch %s: %w: %v", p.Code, ratesource.ErrMalformed, verr)
	}

	now := o.clk.Now()
	upd := store.RateUpdate{
		ProviderID:     p.ID,
		Rate:           value,
		IncrementQuota: !p.IsUnlimited,
		SeedLimit:      p.MonthlyQuota,
		Year:           now.Year(),
		Month:          now.Month(),
		Now:            now,
		Event: history.RateEvent{
			TenantID:      tenantID(ctx),
			Rate:          &value,
			ProviderID:    p.ID,
			ProviderLabel: p.Name,
			Source:        rate.SourceAPI,
			EventType:     history.EventRateChange,
			CreatedAt:     now,
		},
	}
	err = resilience.Persist(ctx, o.cfg, "commit rate update", func(ctx context.Context) error {
		return o.store.CommitRateUpdate(ctx, upd)
	})
	if err != nil {
		return nil, err
	}

	if err := o.cache.Delete(ctx, rateCacheKey(tenantID(ctx))); err != nil {
		slog.Debug("rate cache invalidate failed", "error", err)
	}

	return &rate.Snapshot{
		Rate:          value,
		Timestamp:     now,
		Source:        rate.SourceAPI,
		ProviderLabel: p.Name,
	}, nil
}

// fallback serves the most recent historical rate when no provider can. No
// new event is written; the history must reflect acquisitions, not reads.
func (o *Orchestrator) fallback(ctx context.Context, cause error) (*rate.Snapshot, error) {
	ev, err := o.history.Latest(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errors.Join(cause, rate.ErrNoCachedRate)
		}
		return nil, err
	}

	now := o.clk.Now()
	stale := now.Sub(ev.CreatedAt) > o.cfg.FreshnessWindow

	o.metrics.Fallbacks.Add(ctx, 1)
	slog.Warn("serving cached rate",
		"tenant", tenantID(ctx),
		"age", now.Sub(ev.CreatedAt).String(),
		"stale", stale,
		"cause", cause,
	)

	label := ev.ProviderLabel
	if label == "" {
		label = "cached"
	}
	o.send(ctx, notifier.Notification{
		Kind:     notifier.KindFallback,
		TenantID: tenantID(ctx),
		Title:    "Serving cached rate",
		Message: fmt.Sprintf("no provider available (%v); serving rate %.2f from %s recorded at %s",
			cause, *ev.Rate, label, ev.CreatedAt.Format(time.RFC3339)),
		Meta: map[string]any{
			"rate":  *ev.Rate,
			"stale": stale,
		},
	})

	return &rate.Snapshot{
		Rate:          *ev.Rate,
		Timestamp:     ev.CreatedAt,
		Source:        rate.SourceCached,
		ProviderLabel: label,
		Stale:         stale,
	}, nil
}

func (o *Orchestrator) notifyRecovered(ctx context.Context, p *provider.Provider, value float64) {
	o.send(ctx, notifier.Notification{
		Kind:     notifier.KindSuccess,
		TenantID: tenantID(ctx),
		Title:    "Rate refresh recovered",
		Message:  fmt.Sprintf("rate %.2f acquired from %s after failover", value, p.Name),
		Meta: map[string]any{
			"provider_id": p.ID,
			"rate":        value,
		},
	})
}

func (o *Orchestrator) send(ctx context.Context, n notifier.Notification) {
	o.metrics.Notifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(n.Kind)),
	))
	o.notify.Notify(ctx, n)
}

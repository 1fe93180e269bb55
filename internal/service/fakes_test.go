package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kursd/kursd/internal/domain"
	"github.com/kursd/kursd/internal/domain/history"
	"github.com/kursd/kursd/internal/domain/provider"
	"github.com/kursd/kursd/internal/domain/quota"
	"github.com/kursd/kursd/internal/domain/rate"
	"github.com/kursd/kursd/internal/port/notifier"
	"github.com/kursd/kursd/internal/port/ratesource"
	"github.com/kursd/kursd/internal/port/store"
)

// fakeStore is an in-memory store.Store honoring the same contract as the
// postgres adapter: default settings for unknown tenants, nil quota for
// never-used providers, CAS semantics on the monthly reset.
type fakeStore struct {
	mu           sync.Mutex
	seq          int
	settings     map[string]*rate.Settings
	providers    []provider.Provider
	quotas       map[string]*quota.Record
	rateEvents   []history.RateEvent
	switchEvents []history.SwitchEvent

	failCommits bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		settings: make(map[string]*rate.Settings),
		quotas:   make(map[string]*quota.Record),
	}
}

func (f *fakeStore) nextID() string {
	f.seq++
	return fmt.Sprintf("id-%d", f.seq)
}

func (f *fakeStore) settingsFor(tenant string) *rate.Settings {
	s, ok := f.settings[tenant]
	if !ok {
		s = &rate.Settings{TenantID: tenant, Mode: rate.ModeAuto}
		f.settings[tenant] = s
	}
	return s
}

func (f *fakeStore) GetRateSettings(ctx context.Context) (*rate.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := *f.settingsFor(tenantID(ctx))
	return &s, nil
}

func (f *fakeStore) SetManualRate(ctx context.Context, value float64, now time.Time, ev history.RateEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.settingsFor(tenantID(ctx))
	s.Mode = rate.ModeManual
	s.ManualRate = &value
	s.UpdatedAt = now
	ev.ID = f.nextID()
	f.rateEvents = append(f.rateEvents, ev)
	return nil
}

func (f *fakeStore) SetMode(ctx context.Context, mode rate.Mode, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.settingsFor(tenantID(ctx))
	s.Mode = mode
	s.UpdatedAt = now
	return nil
}

func (f *fakeStore) SetActiveProvider(ctx context.Context, providerID string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.settingsFor(tenantID(ctx))
	s.ActiveProviderID = providerID
	s.UpdatedAt = now
	return nil
}

func (f *fakeStore) CommitRateUpdate(ctx context.Context, upd store.RateUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCommits {
		return fmt.Errorf("connection refused")
	}

	if upd.IncrementQuota {
		rec, ok := f.quotas[upd.ProviderID]
		if !ok {
			rec = &quota.Record{
				ProviderID:  upd.ProviderID,
				Year:        upd.Year,
				Month:       upd.Month,
				QuotaLimit:  upd.SeedLimit,
				LastResetAt: upd.Now,
			}
			f.quotas[upd.ProviderID] = rec
		}
		rec.RequestsMade++
	}

	s := f.settingsFor(tenantID(ctx))
	v := upd.Rate
	s.CurrentRate = &v
	s.ActiveProviderID = upd.ProviderID
	s.UpdatedAt = upd.Now

	ev := upd.Event
	ev.ID = f.nextID()
	f.rateEvents = append(f.rateEvents, ev)
	return nil
}

func (f *fakeStore) SwitchActiveProvider(ctx context.Context, sw store.ProviderSwitch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.settingsFor(tenantID(ctx))
	s.ActiveProviderID = sw.NewProviderID
	s.UpdatedAt = sw.Now
	ev := sw.Event
	ev.ID = f.nextID()
	f.switchEvents = append(f.switchEvents, ev)
	return nil
}

func (f *fakeStore) ListProviders(ctx context.Context) ([]provider.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]provider.Provider, len(f.providers))
	copy(out, f.providers)
	return out, nil
}

func (f *fakeStore) ListEnabledProviders(ctx context.Context) ([]provider.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []provider.Provider
	for _, p := range f.providers {
		if p.IsEnabled {
			out = append(out, p)
		}
	}
	// priority order, insertion order on ties
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (f *fakeStore) GetProvider(ctx context.Context, id string) (*provider.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.providers {
		if f.providers[i].ID == id {
			p := f.providers[i]
			return &p, nil
		}
	}
	return nil, fmt.Errorf("provider %s: %w", id, domain.ErrNotFound)
}

func (f *fakeStore) CreateProvider(ctx context.Context, p *provider.Provider) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		p.ID = f.nextID()
	}
	f.providers = append(f.providers, *p)
	return nil
}

func (f *fakeStore) UpdateProvider(ctx context.Context, p *provider.Provider) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.providers {
		if f.providers[i].ID == p.ID {
			f.providers[i] = *p
			return nil
		}
	}
	return fmt.Errorf("provider %s: %w", p.ID, domain.ErrNotFound)
}

func (f *fakeStore) GetQuota(ctx context.Context, providerID string) (*quota.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.quotas[providerID]
	if !ok {
		return nil, nil
	}
	r := *rec
	return &r, nil
}

func (f *fakeStore) ResetQuotaIfStale(ctx context.Context, providerID string, year int, month time.Month, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.quotas[providerID]
	if !ok || (rec.Year == year && rec.Month == month) {
		return false, nil
	}
	rec.RequestsMade = 0
	rec.Year = year
	rec.Month = month
	rec.LastResetAt = now
	return true, nil
}

func (f *fakeStore) AppendRateEvent(ctx context.Context, ev history.RateEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev.ID = f.nextID()
	f.rateEvents = append(f.rateEvents, ev)
	return nil
}

func (f *fakeStore) LatestRateEvent(ctx context.Context) (*history.RateEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tenant := tenantID(ctx)
	for i := len(f.rateEvents) - 1; i >= 0; i-- {
		ev := f.rateEvents[i]
		if ev.TenantID == tenant && ev.Rate != nil {
			return &ev, nil
		}
	}
	return nil, fmt.Errorf("latest rate event: %w", domain.ErrNotFound)
}

func (f *fakeStore) ListRateEvents(ctx context.Context, limit, offset int) ([]history.RateEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []history.RateEvent
	for i := len(f.rateEvents) - 1; i >= 0 && len(out) < limit+offset; i-- {
		out = append(out, f.rateEvents[i])
	}
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:], nil
}

func (f *fakeStore) ListSwitchEvents(ctx context.Context, limit int) ([]history.SwitchEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []history.SwitchEvent
	for i := len(f.switchEvents) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.switchEvents[i])
	}
	return out, nil
}

func (f *fakeStore) PurgeRateEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []history.RateEvent
	var purged int64
	for _, ev := range f.rateEvents {
		if ev.CreatedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, ev)
	}
	f.rateEvents = kept
	return purged, nil
}

// rateChangeEvents returns committed rate_change events, oldest first.
func (f *fakeStore) rateChangeEvents() []history.RateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []history.RateEvent
	for _, ev := range f.rateEvents {
		if ev.EventType == history.EventRateChange {
			out = append(out, ev)
		}
	}
	return out
}

// fakeCache is a map-backed cache port, ignoring TTLs.
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// recordingNotifier captures every notification sent through it.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []notifier.Notification
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Send(_ context.Context, n notifier.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) byKind(kind notifier.Kind) []notifier.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notifier.Notification
	for _, n := range r.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// Stub rate-source clients, registered once under the "stub" code. Each
// client's behavior is looked up by its base URL, so tests can give every
// provider its own script.
var (
	stubMu      sync.Mutex
	stubFetches = make(map[string]func() (float64, error))
)

func init() {
	ratesource.Register("stub", func(cfg ratesource.Config) (ratesource.Client, error) {
		return &stubClient{url: cfg.BaseURL}, nil
	})
}

func stubRespond(url string, fn func() (float64, error)) {
	stubMu.Lock()
	defer stubMu.Unlock()
	stubFetches[url] = fn
}

type stubClient struct {
	url string
}

func (c *stubClient) Name() string { return "stub" }

func (c *stubClient) Fetch(_ context.Context, _, _ string) (float64, error) {
	stubMu.Lock()
	fn, ok := stubFetches[c.url]
	stubMu.Unlock()
	if !ok {
		return 0, fmt.Errorf("no stub response for %s", c.url)
	}
	return fn()
}

func (c *stubClient) TestConnection(ctx context.Context) bool {
	_, err := c.Fetch(ctx, "USD", "IDR")
	return err == nil
}

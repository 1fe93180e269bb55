package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/kursd/kursd/internal/clock"
	"github.com/kursd/kursd/internal/config"
	"github.com/kursd/kursd/internal/domain"
	"github.com/kursd/kursd/internal/domain/provider"
	"github.com/kursd/kursd/internal/port/ratesource"
	"github.com/kursd/kursd/internal/port/store"
	"github.com/kursd/kursd/internal/resilience"
)

// ProviderService manages provider configurations and builds rate-source
// clients from them. API keys are encrypted before they reach the store.
type ProviderService struct {
	store  store.Store
	clk    clock.Clock
	cfg    config.Engine
	encKey []byte
}

// NewProviderService creates a ProviderService. The engine secret key is
// used to encrypt provider API keys at rest.
func NewProviderService(st store.Store, clk clock.Clock, engineCfg config.Engine) *ProviderService {
	return &ProviderService{
		store:  st,
		clk:    clk,
		cfg:    engineCfg,
		encKey: provider.DeriveKey(engineCfg.SecretKey),
	}
}

// List returns all providers for the tenant.
func (s *ProviderService) List(ctx context.Context) ([]provider.Provider, error) {
	return s.store.ListProviders(ctx)
}

// Get returns one provider by ID.
func (s *ProviderService) Get(ctx context.Context, id string) (*provider.Provider, error) {
	return s.store.GetProvider(ctx, id)
}

// Create validates and persists a new provider. When the tenant is in auto
// mode without an active provider, the first enabled provider created
// becomes active.
func (s *ProviderService) Create(ctx context.Context, p *provider.Provider) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if !slices.Contains(ratesource.Available(), p.Code) {
		return fmt.Errorf("%w: unsupported provider code %q", domain.ErrValidation, p.Code)
	}

	if p.APIKey != "" {
		enc, err := provider.EncryptAPIKey(p.APIKey, s.encKey)
		if err != nil {
			return fmt.Errorf("encrypt api key: %w", err)
		}
		p.APIKey = enc
	}

	p.TenantID = tenantID(ctx)
	now := s.clk.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	err := resilience.Persist(ctx, s.cfg, "create provider", func(ctx context.Context) error {
		return s.store.CreateProvider(ctx, p)
	})
	if err != nil {
		return err
	}

	if p.IsEnabled {
		if err := s.activateIfNone(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}

// activateIfNone points the tenant at the given provider when nothing is
// active yet.
func (s *ProviderService) activateIfNone(ctx context.Context, providerID string) error {
	settings, err := s.store.GetRateSettings(ctx)
	if err != nil {
		return err
	}
	if settings.ActiveProviderID != "" {
		return nil
	}
	return resilience.Persist(ctx, s.cfg, "set active provider", func(ctx context.Context) error {
		return s.store.SetActiveProvider(ctx, providerID, s.clk.Now())
	})
}

// Update validates and persists changes to an existing provider. An empty
// APIKey keeps the stored one.
func (s *ProviderService) Update(ctx context.Context, p *provider.Provider) error {
	existing, err := s.store.GetProvider(ctx, p.ID)
	if err != nil {
		return err
	}

	if p.APIKey == "" {
		p.APIKey = existing.APIKey
		// revalidate against the stored key, not the blank input
		if err := p.Validate(); err != nil {
			return err
		}
	} else {
		if err := p.Validate(); err != nil {
			return err
		}
		enc, err := provider.EncryptAPIKey(p.APIKey, s.encKey)
		if err != nil {
			return fmt.Errorf("encrypt api key: %w", err)
		}
		p.APIKey = enc
	}

	if !slices.Contains(ratesource.Available(), p.Code) {
		return fmt.Errorf("%w: unsupported provider code %q", domain.ErrValidation, p.Code)
	}

	p.TenantID = existing.TenantID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.clk.Now()

	return resilience.Persist(ctx, s.cfg, "update provider", func(ctx context.Context) error {
		return s.store.UpdateProvider(ctx, p)
	})
}

// ClientFor builds a rate-source client from a provider configuration,
// decrypting the stored API key.
func (s *ProviderService) ClientFor(p *provider.Provider) (ratesource.Client, error) {
	apiKey := ""
	if p.APIKey != "" {
		key, err := provider.DecryptAPIKey(p.APIKey, s.encKey)
		if err != nil {
			return nil, fmt.Errorf("decrypt api key for %s: %w", p.Code, err)
		}
		apiKey = key
	}

	return ratesource.New(p.Code, ratesource.Config{
		BaseURL: p.APIURL,
		APIKey:  apiKey,
		Timeout: s.cfg.FetchTimeout,
	})
}

// TestConnection checks whether the provider answers with valid data.
func (s *ProviderService) TestConnection(ctx context.Context, id string) (bool, error) {
	p, err := s.store.GetProvider(ctx, id)
	if err != nil {
		return false, err
	}
	client, err := s.ClientFor(p)
	if err != nil {
		return false, err
	}
	return client.TestConnection(ctx), nil
}

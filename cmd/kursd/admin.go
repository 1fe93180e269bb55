package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/kursd/kursd/internal/adapter/fxapi"
	"github.com/kursd/kursd/internal/adapter/postgres"
	"github.com/kursd/kursd/internal/clock"
	"github.com/kursd/kursd/internal/config"
	"github.com/kursd/kursd/internal/domain/provider"
	"github.com/kursd/kursd/internal/middleware"
	"github.com/kursd/kursd/internal/service"
)

// runAdmin dispatches admin subcommands.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "add-provider":
		return runAdminAddProvider(args[1:])
	case "list-providers":
		return runAdminListProviders(args[1:])
	case "set-manual-rate":
		return runAdminSetManualRate(args[1:])
	case "purge-history":
		return runAdminPurgeHistory(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: kursd admin <command> [options]

Commands:
  add-provider     Register a rate provider
  list-providers   List configured providers
  set-manual-rate  Set the manual rate and switch to manual mode
  purge-history    Delete audit events past the retention horizon
  help             Show this help message

Examples:
  kursd admin add-provider --code exchangerate_host --name "ExchangeRate Host" --url https://api.exchangerate.host --quota 100 --priority 1
  kursd admin set-manual-rate --rate 16250
  kursd admin purge-history
`)
}

type adminDeps struct {
	providers *service.ProviderService
	settings  *service.SettingsService
	history   *service.HistoryService
	cleanup   func()
}

func loadAdminDeps() (*adminDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	fxapi.Register(cfg.Breaker)

	clk := clock.System()
	st := postgres.NewStore(pool)
	return &adminDeps{
		providers: service.NewProviderService(st, clk, cfg.Engine),
		settings:  service.NewSettingsService(st, noopCache{}, clk, cfg.Engine, 0),
		history:   service.NewHistoryService(st, clk, cfg.Engine.RetentionMonths),
		cleanup:   pool.Close,
	}, nil
}

// adminCtx returns a context scoped to the given tenant, defaulting to the
// single-tenant ID.
func adminCtx(tenant string) context.Context {
	if tenant == "" {
		tenant = middleware.DefaultTenantID
	}
	return middleware.WithTenantID(context.Background(), tenant)
}

func runAdminAddProvider(args []string) error {
	fs := flag.NewFlagSet("add-provider", flag.ContinueOnError)
	code := fs.String("code", "", "provider code (required)")
	name := fs.String("name", "", "display name (required)")
	apiURL := fs.String("url", "", "provider base URL (required)")
	apiKey := fs.String("api-key", "", "API key (prompted if provider requires one)")
	requiresKey := fs.Bool("requires-key", false, "provider requires an API key")
	unlimited := fs.Bool("unlimited", false, "provider has no monthly quota")
	quota := fs.Int("quota", 0, "monthly request quota")
	priority := fs.Int("priority", 100, "failover priority, lower is tried first")
	warning := fs.Int("warning", 20, "warning threshold, requests remaining")
	critical := fs.Int("critical", 5, "critical threshold, requests remaining")
	tenant := fs.String("tenant", "", "tenant ID (defaults to the single-tenant ID)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key := *apiKey
	if *requiresKey && key == "" {
		var err error
		key, err = promptSecret("API key: ")
		if err != nil {
			return fmt.Errorf("read api key: %w", err)
		}
	}

	deps, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer deps.cleanup()

	p := &provider.Provider{
		Code:              *code,
		Name:              *name,
		APIURL:            *apiURL,
		APIKey:            key,
		RequiresAPIKey:    *requiresKey,
		IsUnlimited:       *unlimited,
		MonthlyQuota:      *quota,
		Priority:          *priority,
		IsEnabled:         true,
		WarningThreshold:  *warning,
		CriticalThreshold: *critical,
	}
	if err := deps.providers.Create(adminCtx(*tenant), p); err != nil {
		return fmt.Errorf("add provider: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Provider created: %s (id=%s, priority=%d)\n", p.Name, p.ID, p.Priority)
	return nil
}

func runAdminListProviders(args []string) error {
	fs := flag.NewFlagSet("list-providers", flag.ContinueOnError)
	tenant := fs.String("tenant", "", "tenant ID (defaults to the single-tenant ID)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	deps, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer deps.cleanup()

	providers, err := deps.providers.List(adminCtx(*tenant))
	if err != nil {
		return fmt.Errorf("list providers: %w", err)
	}

	if len(providers) == 0 {
		fmt.Println("No providers configured.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCODE\tNAME\tPRIORITY\tQUOTA\tENABLED")
	for i := range providers {
		p := &providers[i]
		quota := "unlimited"
		if !p.IsUnlimited {
			quota = fmt.Sprintf("%d", p.MonthlyQuota)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%t\n",
			p.ID, p.Code, p.Name, p.Priority, quota, p.IsEnabled)
	}
	return w.Flush()
}

func runAdminSetManualRate(args []string) error {
	fs := flag.NewFlagSet("set-manual-rate", flag.ContinueOnError)
	value := fs.Float64("rate", 0, "rate value in IDR per USD (required)")
	tenant := fs.String("tenant", "", "tenant ID (defaults to the single-tenant ID)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	deps, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer deps.cleanup()

	if err := deps.settings.SetManualRate(adminCtx(*tenant), *value); err != nil {
		return fmt.Errorf("set manual rate: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Manual rate set to %.2f, mode switched to manual\n", *value)
	return nil
}

func runAdminPurgeHistory(args []string) error {
	fs := flag.NewFlagSet("purge-history", flag.ContinueOnError)
	tenant := fs.String("tenant", "", "tenant ID (defaults to the single-tenant ID)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	deps, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer deps.cleanup()

	n, err := deps.history.Purge(adminCtx(*tenant))
	if err != nil {
		return fmt.Errorf("purge history: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Purged %d audit events\n", n)
	return nil
}

// noopCache satisfies the cache port for short-lived CLI invocations
// where caching buys nothing.
type noopCache struct{}

func (noopCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (noopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (noopCache) Delete(context.Context, string) error                     { return nil }

// promptSecret reads a secret from the terminal without echoing.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kursd/kursd/internal/adapter/fxapi"
	kdhttp "github.com/kursd/kursd/internal/adapter/http"
	kdnats "github.com/kursd/kursd/internal/adapter/nats"
	kdotel "github.com/kursd/kursd/internal/adapter/otel"
	"github.com/kursd/kursd/internal/adapter/postgres"
	"github.com/kursd/kursd/internal/adapter/ristretto"
	_ "github.com/kursd/kursd/internal/adapter/slack"
	"github.com/kursd/kursd/internal/adapter/ws"
	"github.com/kursd/kursd/internal/clock"
	"github.com/kursd/kursd/internal/config"
	"github.com/kursd/kursd/internal/logger"
	"github.com/kursd/kursd/internal/middleware"
	"github.com/kursd/kursd/internal/port/notifier"
	"github.com/kursd/kursd/internal/service"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			slog.Error("admin command failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(logger.New(cfg.Logging))

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pair", cfg.Engine.BaseCurrency+"/"+cfg.Engine.QuoteCurrency,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	shutdownOtel, err := kdotel.Setup(ctx, cfg.Logging.Service, cfg.Otel)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	rateCache, err := ristretto.New(cfg.Cache.MaxBytes)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer rateCache.Close()

	// --- Provider clients ---
	fxapi.Register(cfg.Breaker)

	// --- Notification sinks ---
	hub := ws.NewHub()
	sinks := []notifier.Notifier{ws.NewHubNotifier(hub)}

	if cfg.NATS.URL != "" {
		queue, err := kdnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, sink disabled", "error", err)
		} else {
			defer func() { _ = queue.Close() }()
			sinks = append(sinks, queue)
		}
	}

	if cfg.Slack.WebhookURL != "" {
		slackSink, err := notifier.New("slack", map[string]string{"webhook_url": cfg.Slack.WebhookURL})
		if err != nil {
			return fmt.Errorf("slack sink: %w", err)
		}
		sinks = append(sinks, slackSink)
	}

	// --- Services ---
	clk := clock.System()
	st := postgres.NewStore(pool)

	metrics, err := kdotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	notifySvc := service.NewNotificationService(sinks...)
	quotaSvc := service.NewQuotaService(st, clk)
	selectorSvc := service.NewSelectorService(st, clk)
	historySvc := service.NewHistoryService(st, clk, cfg.Engine.RetentionMonths)
	providerSvc := service.NewProviderService(st, clk, cfg.Engine)
	settingsSvc := service.NewSettingsService(st, rateCache, clk, cfg.Engine, cfg.Cache.TTL)
	orchestrator := service.NewOrchestrator(st, providerSvc, quotaSvc, selectorSvc,
		historySvc, notifySvc, rateCache, clk, cfg.Engine, metrics)

	slog.Info("notification sinks registered", "count", notifySvc.SinkCount())

	// --- HTTP ---
	handlers := &kdhttp.Handlers{
		Settings:     settingsSvc,
		Orchestrator: orchestrator,
		Providers:    providerSvc,
		Quotas:       quotaSvc,
		History:      historySvc,
		Hub:          hub,
		Ready: func(r *http.Request) error {
			return pool.Ping(r.Context())
		},
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(kdhttp.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(kdhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.TenantID)
	r.Use(kdotel.HTTPMiddleware(cfg.Logging.Service))

	kdhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

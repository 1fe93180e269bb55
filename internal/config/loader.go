package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "kursd.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "KURSD_PORT")
	setString(&cfg.Server.CORSOrigin, "KURSD_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "KURSD_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "KURSD_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "KURSD_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "KURSD_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "KURSD_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Slack.WebhookURL, "KURSD_SLACK_WEBHOOK_URL")
	setString(&cfg.Logging.Level, "KURSD_LOG_LEVEL")
	setString(&cfg.Logging.Service, "KURSD_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "KURSD_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "KURSD_BREAKER_TIMEOUT")
	setString(&cfg.Engine.BaseCurrency, "KURSD_BASE_CURRENCY")
	setString(&cfg.Engine.QuoteCurrency, "KURSD_QUOTE_CURRENCY")
	setDuration(&cfg.Engine.FetchTimeout, "KURSD_FETCH_TIMEOUT")
	setDuration(&cfg.Engine.FreshnessWindow, "KURSD_FRESHNESS_WINDOW")
	setInt(&cfg.Engine.RetryAttempts, "KURSD_RETRY_ATTEMPTS")
	setDuration(&cfg.Engine.RetryBaseDelay, "KURSD_RETRY_BASE_DELAY")
	setInt(&cfg.Engine.RetentionMonths, "KURSD_RETENTION_MONTHS")
	setFloat64(&cfg.Engine.MinPlausibleRate, "KURSD_MIN_PLAUSIBLE_RATE")
	setFloat64(&cfg.Engine.MaxPlausibleRate, "KURSD_MAX_PLAUSIBLE_RATE")
	setString(&cfg.Engine.SecretKey, "KURSD_SECRET_KEY")
	setInt64(&cfg.Cache.MaxBytes, "KURSD_CACHE_MAX_BYTES")
	setDuration(&cfg.Cache.TTL, "KURSD_CACHE_TTL")
	setBool(&cfg.Otel.Enabled, "KURSD_OTEL_ENABLED")
	setString(&cfg.Otel.Endpoint, "KURSD_OTEL_ENDPOINT")
}

// validate rejects configurations the engine cannot run with.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server port must not be empty")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres dsn must not be empty")
	}
	if cfg.Engine.FetchTimeout <= 0 {
		return errors.New("engine fetch_timeout must be positive")
	}
	if cfg.Engine.FreshnessWindow <= 0 {
		return errors.New("engine freshness_window must be positive")
	}
	if cfg.Engine.RetryAttempts < 0 {
		return errors.New("engine retry_attempts must not be negative")
	}
	if cfg.Engine.RetentionMonths <= 0 {
		return errors.New("engine retention_months must be positive")
	}
	if cfg.Engine.MinPlausibleRate <= 0 || cfg.Engine.MaxPlausibleRate <= cfg.Engine.MinPlausibleRate {
		return errors.New("engine plausible rate bounds must satisfy 0 < min < max")
	}
	if cfg.Engine.SecretKey == "" {
		return errors.New("engine secret_key must not be empty")
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, env string) {
	if v := os.Getenv(env); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, env string) {
	if v := os.Getenv(env); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, env string) {
	if v := os.Getenv(env); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

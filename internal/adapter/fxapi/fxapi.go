// Package fxapi implements the rate-source port for external FX rate APIs.
// Each supported provider registers a factory under its provider code; the
// engine constructs clients from stored provider configuration.
package fxapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kursd/kursd/internal/config"
	"github.com/kursd/kursd/internal/port/ratesource"
	"github.com/kursd/kursd/internal/resilience"
)

const defaultTimeout = 8 * time.Second

// Register makes all built-in provider clients available to the engine.
// Each client gets its own circuit breaker built from cfg.
func Register(cfg config.Breaker) {
	ratesource.Register(codeExchangerateHost, func(c ratesource.Config) (ratesource.Client, error) {
		return newExchangerateHost(c, resilience.NewBreaker(cfg.MaxFailures, cfg.Timeout)), nil
	})
	ratesource.Register(codeOpenExchangeRates, func(c ratesource.Config) (ratesource.Client, error) {
		if c.APIKey == "" {
			return nil, fmt.Errorf("fxapi: %s requires an API key", codeOpenExchangeRates)
		}
		return newOpenExchangeRates(c, resilience.NewBreaker(cfg.MaxFailures, cfg.Timeout)), nil
	})
}

// httpDoer is the shared request path of all provider clients: bounded by
// the fetch timeout, guarded by a breaker, with HTTP status classification
// into the port's typed errors.
type httpDoer struct {
	client  *http.Client
	breaker *resilience.Breaker
}

func newDoer(timeout time.Duration, breaker *resilience.Breaker) httpDoer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return httpDoer{
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
	}
}

// getJSON performs a GET and decodes the JSON body into out.
func (d httpDoer) getJSON(ctx context.Context, rawURL string, query url.Values, out any) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("fxapi: parse url: %w", err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	return d.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return fmt.Errorf("fxapi: build request: %w", err)
		}

		resp, err := d.client.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
				return fmt.Errorf("%w: %v", ratesource.ErrTimeout, err)
			}
			return fmt.Errorf("fxapi: request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if err := classifyStatus(resp.StatusCode); err != nil {
			return err
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("fxapi: read body: %w", err)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: %v", ratesource.ErrMalformed, err)
		}
		return nil
	})
}

// classifyStatus maps provider HTTP statuses onto the typed error set.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return ratesource.ErrRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ratesource.ErrAuthFailed, code)
	default:
		return fmt.Errorf("fxapi: unexpected status %d", code)
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

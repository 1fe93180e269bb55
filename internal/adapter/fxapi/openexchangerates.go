package fxapi

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kursd/kursd/internal/port/ratesource"
	"github.com/kursd/kursd/internal/resilience"
)

const codeOpenExchangeRates = "openexchangerates"

// openExchangeRates talks to the openexchangerates.org latest.json API.
// Requires an app_id; the free plan only supports USD as base, which is
// exactly the pair this engine serves.
type openExchangeRates struct {
	baseURL string
	apiKey  string
	doer    httpDoer
}

func newOpenExchangeRates(cfg ratesource.Config, breaker *resilience.Breaker) *openExchangeRates {
	return &openExchangeRates{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		doer:    newDoer(cfg.Timeout, breaker),
	}
}

func (c *openExchangeRates) Name() string { return codeOpenExchangeRates }

type openExchangeRatesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

func (c *openExchangeRates) Fetch(ctx context.Context, base, quote string) (float64, error) {
	q := url.Values{}
	q.Set("app_id", c.apiKey)
	q.Set("base", base)
	q.Set("symbols", quote)

	var resp openExchangeRatesResponse
	if err := c.doer.getJSON(ctx, c.baseURL+"/latest.json", q, &resp); err != nil {
		return 0, err
	}

	rate, ok := resp.Rates[quote]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("%w: no %s rate in response", ratesource.ErrMalformed, quote)
	}
	return rate, nil
}

func (c *openExchangeRates) TestConnection(ctx context.Context) bool {
	_, err := c.Fetch(ctx, "USD", "IDR")
	return err == nil
}

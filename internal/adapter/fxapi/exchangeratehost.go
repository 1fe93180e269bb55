package fxapi

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kursd/kursd/internal/port/ratesource"
	"github.com/kursd/kursd/internal/resilience"
)

const codeExchangerateHost = "exchangerate_host"

// exchangerateHost talks to the exchangerate.host /latest API. The free
// tier is keyless; an access key is passed through when configured.
type exchangerateHost struct {
	baseURL string
	apiKey  string
	doer    httpDoer
}

func newExchangerateHost(cfg ratesource.Config, breaker *resilience.Breaker) *exchangerateHost {
	return &exchangerateHost{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		doer:    newDoer(cfg.Timeout, breaker),
	}
}

func (c *exchangerateHost) Name() string { return codeExchangerateHost }

type exchangerateHostResponse struct {
	Success *bool              `json:"success,omitempty"`
	Rates   map[string]float64 `json:"rates"`
}

func (c *exchangerateHost) Fetch(ctx context.Context, base, quote string) (float64, error) {
	q := url.Values{}
	q.Set("base", base)
	q.Set("symbols", quote)
	if c.apiKey != "" {
		q.Set("access_key", c.apiKey)
	}

	var resp exchangerateHostResponse
	if err := c.doer.getJSON(ctx, c.baseURL+"/latest", q, &resp); err != nil {
		return 0, err
	}
	if resp.Success != nil && !*resp.Success {
		return 0, fmt.Errorf("%w: success=false", ratesource.ErrMalformed)
	}

	rate, ok := resp.Rates[quote]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("%w: no %s rate in response", ratesource.ErrMalformed, quote)
	}
	return rate, nil
}

func (c *exchangerateHost) TestConnection(ctx context.Context) bool {
	_, err := c.Fetch(ctx, "USD", "IDR")
	return err == nil
}

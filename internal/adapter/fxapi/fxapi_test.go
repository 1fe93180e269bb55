package fxapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/kursd/kursd/internal/config"
	"github.com/kursd/kursd/internal/port/ratesource"
	"github.com/kursd/kursd/internal/resilience"
)

func TestMain(m *testing.M) {
	Register(config.Breaker{MaxFailures: 5, Timeout: time.Second})
	os.Exit(m.Run())
}

func testBreaker() *resilience.Breaker {
	return resilience.NewBreaker(100, time.Second)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *exchangerateHost {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return newExchangerateHost(ratesource.Config{BaseURL: srv.URL, Timeout: time.Second}, testBreaker())
}

func TestFetchParsesRate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("base"); got != "USD" {
			t.Errorf("expected base USD, got %s", got)
		}
		if got := r.URL.Query().Get("symbols"); got != "IDR" {
			t.Errorf("expected symbols IDR, got %s", got)
		}
		_, _ = w.Write([]byte(`{"success":true,"rates":{"IDR":16250.75}}`))
	})

	rate, err := c.Fetch(context.Background(), "USD", "IDR")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if rate != 16250.75 {
		t.Fatalf("expected 16250.75, got %v", rate)
	}
}

func TestFetchSendsAccessKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("access_key"); got != "k123" {
			t.Errorf("expected access_key k123, got %q", got)
		}
		_, _ = w.Write([]byte(`{"rates":{"IDR":16000}}`))
	}))
	defer srv.Close()

	c := newExchangerateHost(ratesource.Config{BaseURL: srv.URL, APIKey: "k123", Timeout: time.Second}, testBreaker())
	if _, err := c.Fetch(context.Background(), "USD", "IDR"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
}

func TestFetchClassifiesRateLimit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Fetch(context.Background(), "USD", "IDR")
	if !errors.Is(err, ratesource.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestFetchClassifiesAuthFailure(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
		_, err := c.Fetch(context.Background(), "USD", "IDR")
		if !errors.Is(err, ratesource.ErrAuthFailed) {
			t.Fatalf("status %d: expected ErrAuthFailed, got %v", status, err)
		}
	}
}

func TestFetchClassifiesMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rates": not json`))
	})

	_, err := c.Fetch(context.Background(), "USD", "IDR")
	if !errors.Is(err, ratesource.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestFetchRejectsMissingQuote(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{"EUR":0.92}}`))
	})

	_, err := c.Fetch(context.Background(), "USD", "IDR")
	if !errors.Is(err, ratesource.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestFetchRejectsSuccessFalse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"rates":{}}`))
	})

	_, err := c.Fetch(context.Background(), "USD", "IDR")
	if !errors.Is(err, ratesource.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestFetchClassifiesTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		_, _ = w.Write([]byte(`{"rates":{"IDR":16000}}`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, "USD", "IDR")
	if !errors.Is(err, ratesource.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestBreakerShortCircuitsAfterFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	breaker := resilience.NewBreaker(2, time.Minute)
	c := newExchangerateHost(ratesource.Config{BaseURL: srv.URL, Timeout: time.Second}, breaker)

	for i := 0; i < 2; i++ {
		if _, err := c.Fetch(context.Background(), "USD", "IDR"); err == nil {
			t.Fatal("expected failure")
		}
	}

	_, err := c.Fetch(context.Background(), "USD", "IDR")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestOpenExchangeRatesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("app_id"); got != "app-1" {
			t.Errorf("expected app_id app-1, got %q", got)
		}
		_, _ = w.Write([]byte(`{"base":"USD","rates":{"IDR":16100.5}}`))
	}))
	defer srv.Close()

	c := newOpenExchangeRates(ratesource.Config{BaseURL: srv.URL, APIKey: "app-1", Timeout: time.Second}, testBreaker())
	rate, err := c.Fetch(context.Background(), "USD", "IDR")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if rate != 16100.5 {
		t.Fatalf("expected 16100.5, got %v", rate)
	}
}

func TestRegistryFactories(t *testing.T) {
	if _, err := ratesource.New(codeOpenExchangeRates, ratesource.Config{}); err == nil {
		t.Fatal("expected openexchangerates without key to fail")
	}
	if _, err := ratesource.New(codeExchangerateHost, ratesource.Config{BaseURL: "https://api.exchangerate.host"}); err != nil {
		t.Fatalf("expected keyless exchangerate_host client, got %v", err)
	}
}

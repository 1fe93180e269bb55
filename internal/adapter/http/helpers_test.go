package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kursd/kursd/internal/domain"
	"github.com/kursd/kursd/internal/domain/rate"
)

func TestWriteDomainErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("settings: %w", domain.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: rate must be positive", domain.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("refresh: %w", rate.ErrNoProviders), http.StatusConflict},
		{errors.Join(rate.ErrAllProvidersExhausted, rate.ErrNoCachedRate), http.StatusServiceUnavailable},
		{fmt.Errorf("commit: %w: connection refused", domain.ErrInfrastructure), http.StatusServiceUnavailable},
		{errors.New("something else"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeDomainError(rec, tc.err, "not found")
		if rec.Code != tc.status {
			t.Errorf("error %v: expected status %d, got %d", tc.err, tc.status, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
	}
}

func TestWriteDomainErrorStripsValidationPrefix(t *testing.T) {
	rec := httptest.NewRecorder()
	writeDomainError(rec, fmt.Errorf("%w: monthly quota must be positive", domain.ErrValidation), "")

	if !strings.Contains(rec.Body.String(), "monthly quota must be positive") {
		t.Fatalf("expected stripped message, got %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), domain.ErrValidation.Error()+":") {
		t.Fatalf("expected sentinel prefix removed, got %s", rec.Body.String())
	}
}

func TestReadJSONRejectsGarbage(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader("{not json"))

	_, ok := readJSON[manualRateRequest](rec, req)
	if ok {
		t.Fatal("expected decode to fail")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestReadJSONDecodesBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"rate":16250.5}`))

	got, ok := readJSON[manualRateRequest](rec, req)
	if !ok {
		t.Fatal("expected decode to succeed")
	}
	if got.Rate != 16250.5 {
		t.Fatalf("expected 16250.5, got %v", got.Rate)
	}
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=25&bad=x", nil)

	if got := queryInt(req, "limit", 50); got != 25 {
		t.Fatalf("expected 25, got %d", got)
	}
	if got := queryInt(req, "bad", 50); got != 50 {
		t.Fatalf("expected default for unparsable value, got %d", got)
	}
	if got := queryInt(req, "absent", 50); got != 50 {
		t.Fatalf("expected default for absent value, got %d", got)
	}
}

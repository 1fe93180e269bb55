package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTenantIDFromHeader(t *testing.T) {
	var got string
	handler := TenantID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = TenantIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", "tenant-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "tenant-42" {
		t.Fatalf("expected tenant-42, got %q", got)
	}
}

func TestTenantIDDefaultsWhenHeaderAbsent(t *testing.T) {
	var got string
	handler := TenantID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = TenantIDFromContext(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got != DefaultTenantID {
		t.Fatalf("expected default tenant, got %q", got)
	}
}

func TestWithTenantID(t *testing.T) {
	ctx := WithTenantID(context.Background(), "tenant-7")
	if got := TenantIDFromContext(ctx); got != "tenant-7" {
		t.Fatalf("expected tenant-7, got %q", got)
	}
	if got := TenantIDFromContext(context.Background()); got != DefaultTenantID {
		t.Fatalf("expected default tenant from bare context, got %q", got)
	}
}

package otel

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPMiddlewarePassesRequestsThrough(t *testing.T) {
	mw := HTTPMiddleware("kursd-test")
	hits := 0
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNoContent)
	}))

	// Filtered and traced paths alike must reach the handler.
	for _, path := range []string{"/health", "/ws", "/api/v1/rates/current"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("%s: got status %d", path, rec.Code)
		}
	}
	if hits != 3 {
		t.Fatalf("expected 3 handled requests, got %d", hits)
	}
}

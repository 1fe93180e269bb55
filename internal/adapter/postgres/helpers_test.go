package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/kursd/kursd/internal/domain"
)

func TestNullIfEmpty(t *testing.T) {
	if nullIfEmpty("") != nil {
		t.Fatal("expected nil for empty string")
	}
	if got := nullIfEmpty("abc"); got == nil || *got != "abc" {
		t.Fatalf("expected pointer to abc, got %v", got)
	}
}

func TestOrEmpty(t *testing.T) {
	if orEmpty(nil) != "" {
		t.Fatal("expected empty string for nil")
	}
	s := "xyz"
	if orEmpty(&s) != "xyz" {
		t.Fatal("expected xyz")
	}
}

func TestMetadataOrEmpty(t *testing.T) {
	if got := metadataOrEmpty(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
	m := map[string]any{"k": "v"}
	if got := metadataOrEmpty(m); got["k"] != "v" {
		t.Fatalf("expected passthrough, got %v", got)
	}
}

func TestNotFoundWrap(t *testing.T) {
	err := notFoundWrap(pgx.ErrNoRows, "provider %s", "p1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	other := errors.New("connection reset")
	err = notFoundWrap(other, "provider %s", "p1")
	if errors.Is(err, domain.ErrNotFound) {
		t.Fatal("non-ErrNoRows must not map to ErrNotFound")
	}
	if !errors.Is(err, other) {
		t.Fatal("expected original error preserved")
	}
}

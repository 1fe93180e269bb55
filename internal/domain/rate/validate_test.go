package rate

import (
	"errors"
	"testing"

	"github.com/kursd/kursd/internal/domain"
)

func TestValidateAcceptsPlausibleRates(t *testing.T) {
	b := DefaultBounds()
	for _, v := range []float64{1_000, 15_750.50, 16_301.25, 999_999.99} {
		if err := b.Validate(v); err != nil {
			t.Fatalf("expected %v to validate, got %v", v, err)
		}
	}
}

func TestValidateRejectsNonPositive(t *testing.T) {
	b := DefaultBounds()
	for _, v := range []float64{0, -1, -16_000} {
		err := b.Validate(v)
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %v, got %v", v, err)
		}
	}
}

func TestValidateRejectsImplausible(t *testing.T) {
	b := DefaultBounds()
	for _, v := range []float64{1, 999.99, 1_000_000, 5_000_000} {
		err := b.Validate(v)
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %v, got %v", v, err)
		}
	}
}

func TestModeValid(t *testing.T) {
	if !ModeManual.Valid() || !ModeAuto.Valid() {
		t.Fatal("known modes must validate")
	}
	if Mode("hybrid").Valid() {
		t.Fatal("unknown mode must not validate")
	}
}

package rate

import (
	"fmt"

	"github.com/kursd/kursd/internal/domain"
)

// Default plausibility bounds for an IDR-per-USD rate. The IDR has traded
// in the five-digit range for decades; anything outside these bounds is a
// data error, not a market move.
const (
	DefaultMinPlausible = 1_000
	DefaultMaxPlausible = 1_000_000
)

// Bounds is the accepted range for a rate value, inclusive of Min,
// exclusive of Max.
type Bounds struct {
	Min float64
	Max float64
}

// DefaultBounds returns the built-in plausibility bounds.
func DefaultBounds() Bounds {
	return Bounds{Min: DefaultMinPlausible, Max: DefaultMaxPlausible}
}

// Validate rejects zero, negative and implausible rate values.
func (b Bounds) Validate(v float64) error {
	if v <= 0 {
		return fmt.Errorf("%w: rate must be positive, got %v", domain.ErrValidation, v)
	}
	if v < b.Min || v >= b.Max {
		return fmt.Errorf("%w: rate %v outside plausible range [%v, %v)", domain.ErrValidation, v, b.Min, b.Max)
	}
	return nil
}

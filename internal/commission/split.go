package commission

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	// DefaultRate applies when neither the seller nor site settings carry one.
	DefaultRate = decimal.NewFromInt(15)
)

// Split divides totalCents between platform and seller at rate percent. The
// commission is rounded half-up to a whole minor unit and the seller receives
// the exact remainder, so the two parts always sum to totalCents.
func Split(totalCents int64, rate decimal.Decimal) (commissionCents, sellerCents int64, err error) {
	if totalCents < 0 {
		return 0, 0, fmt.Errorf("total must be non-negative")
	}
	if err := ValidateRate(rate); err != nil {
		return 0, 0, err
	}
	commissionCents = decimal.NewFromInt(totalCents).Mul(rate).Div(hundred).Round(0).IntPart()
	return commissionCents, totalCents - commissionCents, nil
}

// ValidateRate accepts percentages in [0, 100] with at most two decimals.
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return fmt.Errorf("commission rate %s outside 0-100", rate)
	}
	if !rate.Equal(rate.Round(2)) {
		return fmt.Errorf("commission rate %s has more than two decimals", rate)
	}
	return nil
}

// ResolveRate picks the seller's configured rate, falling back to fallback.
func ResolveRate(sellerRate *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if sellerRate != nil {
		return *sellerRate
	}
	return fallback
}

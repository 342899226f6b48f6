package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ToleranceMinor is the largest difference, in minor units, treated as equal
// when comparing client-submitted and server-derived amounts.
const ToleranceMinor int64 = 1

// WithinTolerance reports whether two minor-unit amounts agree.
func WithinTolerance(a, b int64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= ToleranceMinor
}

// RateTable converts amounts held in Base into display currencies.
type RateTable struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// Rate returns the multiplier from the base currency into code.
func (t RateTable) Rate(code string) (decimal.Decimal, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == strings.ToUpper(t.Base) {
		return decimal.NewFromInt(1), nil
	}
	rate, ok := t.Rates[code]
	if !ok {
		return decimal.Zero, fmt.Errorf("no exchange rate from %s to %s", t.Base, code)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("exchange rate %s to %s must be positive", t.Base, code)
	}
	return rate, nil
}

// Scale returns the number of minor-unit digits for an ISO currency code.
func Scale(code string) (int32, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return 0, fmt.Errorf("unknown currency %q: %w", code, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale), nil
}

// ToMajor converts a minor-unit amount into a decimal major-unit amount.
func ToMajor(amountMinor int64, code string) (decimal.Decimal, error) {
	scale, err := Scale(code)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.New(amountMinor, -scale), nil
}

// FromMajor converts a major-unit decimal into minor units, rounding half away from zero.
func FromMajor(amount decimal.Decimal, code string) (int64, error) {
	scale, err := Scale(code)
	if err != nil {
		return 0, err
	}
	return amount.Shift(scale).Round(0).IntPart(), nil
}

// Format renders an amount held in the rate table's base currency as code,
// localized for English number grouping. It depends only on its arguments.
func Format(amountMinor int64, code string, rates RateTable) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	base := strings.ToUpper(strings.TrimSpace(rates.Base))
	if base == "" {
		base = code
	}

	major, err := ToMajor(amountMinor, base)
	if err != nil {
		return "", err
	}
	rate, err := RateTable{Base: base, Rates: rates.Rates}.Rate(code)
	if err != nil {
		return "", err
	}
	scale, err := Scale(code)
	if err != nil {
		return "", err
	}

	converted := major.Mul(rate).Round(scale)
	value, _ := converted.Float64()
	printer := message.NewPrinter(language.English)
	return printer.Sprintf(fmt.Sprintf("%%s %%.%df", scale), code, value), nil
}

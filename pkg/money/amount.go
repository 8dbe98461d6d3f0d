package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// AmountScale is the number of fractional digits stored for entry amounts
	AmountScale int32 = 6

	// RateScale is the number of fractional digits stored for exchange rates
	RateScale int32 = 8
)

var (
	ErrEmptyAmount       = errors.New("amount is required")
	ErrInvalidAmount     = errors.New("invalid amount format")
	ErrAmountNotPositive = errors.New("amount must be greater than zero")
	ErrTooPrecise        = errors.New("amount has more than 6 fractional digits")
)

// Parse parses an exact decimal string. Floats never enter the picture:
// "0.1" is stored as 1 * 10^-1.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrEmptyAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	return d, nil
}

// ParseAmount parses a signed entry amount and rejects values that cannot be
// stored at AmountScale without rounding.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := Parse(s)
	if err != nil {
		return decimal.Zero, err
	}

	if !FitsScale(d, AmountScale) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrTooPrecise, s)
	}

	return d, nil
}

// ParsePositive parses an unsigned template amount such as "100" or "+100.50".
// A single leading '+' is stripped, and the value compared at AmountScale must
// be strictly greater than zero. A sign left after the '+' is malformed.
func ParsePositive(s string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(s)
	s = strings.TrimPrefix(raw, "+")
	if s != raw && (strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-")) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero, err
	}

	if d.Round(AmountScale).Cmp(decimal.Zero) <= 0 {
		return decimal.Zero, ErrAmountNotPositive
	}

	return d, nil
}

// FitsScale reports whether d has at most scale fractional digits
func FitsScale(d decimal.Decimal, scale int32) bool {
	return d.Equal(d.Round(scale))
}

// Invert negates a decimal string by prefixing '-', or by removing an existing
// '-'. It never produces "--".
func Invert(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "+")
	if strings.HasPrefix(s, "-") {
		return s[1:]
	}
	return "-" + s
}

// FormatAmount renders an amount with exactly AmountScale fractional digits
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountScale)
}

// FormatRate renders an exchange rate with exactly RateScale fractional digits
func FormatRate(d decimal.Decimal) string {
	return d.StringFixed(RateScale)
}

// Package money holds the fixed-point rules shared by wallets and ledger entries.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits stored for every amount and balance.
const Scale int32 = 4

var (
	ErrEmpty       = errors.New("amount is required")
	ErrMalformed   = errors.New("amount is not a decimal number")
	ErrNotPositive = errors.New("amount must be greater than zero")
	ErrTooPrecise  = errors.New("amount has more than 4 fractional digits")
	ErrOutOfRange  = errors.New("amount exceeds the supported range")
	maxAmount      = decimal.RequireFromString("9999999999999999.9999") // numeric(20,4)
)

// Parse converts a caller-supplied string into a validated amount.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrEmpty
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrMalformed
	}
	if err := Validate(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// Validate checks that d is a strictly positive amount with at most Scale fractional digits.
func Validate(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrNotPositive
	}
	if !d.Equal(d.Truncate(Scale)) {
		return ErrTooPrecise
	}
	if d.GreaterThan(maxAmount) {
		return ErrOutOfRange
	}
	return nil
}

// Normalize fixes d to Scale fractional digits.
func Normalize(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Format renders d with exactly Scale fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

// CheckBalance reports ErrOutOfRange when a resulting balance no longer fits
// the stored precision.
func CheckBalance(d decimal.Decimal) error {
	if d.GreaterThan(maxAmount) {
		return ErrOutOfRange
	}
	return nil
}

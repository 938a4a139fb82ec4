package domain

import (
	"strings"

	"golang.org/x/text/currency"
)

// tender holds the units that are legal tender in at least one region today.
var tender = map[currency.Unit]struct{}{}

func init() {
	for it := currency.Query(); it.Next(); {
		tender[it.Unit()] = struct{}{}
	}
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidCurrency reports whether code is an upper-case 3-letter ISO 4217 code
// for a currency still in circulation. Withdrawn and fund codes are rejected.
func IsValidCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	unit, err := currency.ParseISO(code)
	if err != nil || unit.String() != code {
		return false
	}
	_, ok := tender[unit]
	return ok
}

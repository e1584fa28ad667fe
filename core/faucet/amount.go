package faucet

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ToBaseUnits scales a human amount to the ledger's integer base units,
// e.g. 10 at precision 2 is "1000". Amounts with more fractional digits
// than precision are rejected instead of being rounded.
func ToBaseUnits(amount decimal.Decimal, precision int32) (string, error) {
	if precision < 0 {
		return "", fmt.Errorf("%w: negative precision %d", ErrInvalidAmount, precision)
	}
	if !amount.IsPositive() {
		return "", fmt.Errorf("%w: %s is not positive", ErrInvalidAmount, amount)
	}

	scaled := amount.Shift(precision)
	if !scaled.IsInteger() {
		return "", fmt.Errorf("%w: %s has more than %d decimals", ErrInvalidAmount, amount, precision)
	}
	return scaled.StringFixed(0), nil
}

// FromBaseUnits inverts ToBaseUnits.
func FromBaseUnits(base string, precision int32) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(base)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, base, err)
	}
	if !d.IsInteger() {
		return decimal.Zero, fmt.Errorf("%w: %q is not an integer", ErrInvalidAmount, base)
	}
	return d.Shift(-precision), nil
}

package domain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ToBaseUnits scales a human-readable amount by the asset's decimals.
// Digits beyond the asset's precision are truncated toward zero.
func ToBaseUnits(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	if decimals < 0 {
		return nil, fmt.Errorf("negative decimals %d", decimals)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: negative amount %s", ErrInvalidAmount, amount)
	}
	base := amount.Shift(decimals).Truncate(0).BigInt()
	if amount.IsPositive() && base.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s is below the smallest unit (%d decimals)", ErrInvalidAmount, amount, decimals)
	}
	return base, nil
}

// FromBaseUnits converts an integer base-unit quantity to human units.
func FromBaseUnits(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}

// ParseBaseUnits parses a decimal base-unit string as returned by aggregator APIs.
func ParseBaseUnits(s string, decimals int32) (decimal.Decimal, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("invalid base-unit amount %q", s)
	}
	return FromBaseUnits(v, decimals), nil
}

// Bounds on user-supplied amounts. 78 digits covers any uint256.
const (
	maxAmountExponent = 64
	maxAmountDigits   = 78
)

// ParseAmount parses a strictly positive human-readable amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if exp := d.Exponent(); exp > maxAmountExponent || exp < -maxAmountExponent || d.NumDigits() > maxAmountDigits {
		return decimal.Zero, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, s)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q must be positive", ErrInvalidAmount, s)
	}
	return d, nil
}

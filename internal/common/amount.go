package common

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/taskbay/walletcore/internal/apperr"
)

// SOLDecimals is the native asset precision (lamports).
const SOLDecimals = 9

// ToBaseUnits converts a UI-unit amount to the integer base-unit
// representation stored on chain (amount * 10^decimals, rounded).
// Amounts that truncate below one base unit are rejected rather than
// silently becoming zero.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) (uint64, error) {
	if amount.Sign() <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive, got %s", apperr.ErrAmountTooSmall, amount)
	}

	units := amount.Shift(int32(decimals)).Round(0)
	if units.Sign() <= 0 {
		return 0, fmt.Errorf("%w: %s is below 1e-%d", apperr.ErrAmountTooSmall, amount, decimals)
	}
	if !units.BigInt().IsUint64() {
		return 0, fmt.Errorf("amount %s overflows base units", amount)
	}
	return units.BigInt().Uint64(), nil
}

// FromBaseUnits converts an integer base-unit value back to UI units.
func FromBaseUnits(units uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromUint64(units).Shift(-int32(decimals))
}

// FormatBaseUnits renders a base-unit value as a UI-unit string without
// float precision loss, e.g. FormatBaseUnits(24981836, 9) = "0.024981836".
func FormatBaseUnits(units uint64, decimals uint8) string {
	return FromBaseUnits(units, decimals).StringFixed(int32(decimals))
}

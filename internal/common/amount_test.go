package common

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskbay/walletcore/internal/apperr"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals uint8
		want     uint64
	}{
		{"one sol", "1", 9, 1_000_000_000},
		{"fractional sol", "0.024981836", 9, 24_981_836},
		{"usdc six decimals", "12.5", 6, 12_500_000},
		{"smallest unit", "0.000000001", 9, 1},
		{"zero decimals", "42", 0, 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := decimal.NewFromString(tt.amount)
			require.NoError(t, err)
			got, err := ToBaseUnits(amount, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToBaseUnitsRejectsDust(t *testing.T) {
	for _, raw := range []string{"0", "-1", "0.0000000001"} {
		amount, err := decimal.NewFromString(raw)
		require.NoError(t, err)
		_, err = ToBaseUnits(amount, 9)
		assert.ErrorIs(t, err, apperr.ErrAmountTooSmall, "amount %s", raw)
	}
}

func TestToBaseUnitsOverflow(t *testing.T) {
	amount := decimal.New(1, 30)
	_, err := ToBaseUnits(amount, 9)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperr.ErrAmountTooSmall)
}

func TestFromBaseUnitsRoundTrip(t *testing.T) {
	amount := decimal.RequireFromString("3.141592653")
	units, err := ToBaseUnits(amount, 9)
	require.NoError(t, err)
	assert.True(t, amount.Equal(FromBaseUnits(units, 9)))
}

func TestFormatBaseUnits(t *testing.T) {
	assert.Equal(t, "0.024981836", FormatBaseUnits(24_981_836, 9))
	assert.Equal(t, "1.000000000", FormatBaseUnits(1_000_000_000, 9))
	assert.Equal(t, "0.000000", FormatBaseUnits(0, 6))
}

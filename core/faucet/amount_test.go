package faucet_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/faucet/core/faucet"
)

func TestToBaseUnits_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		amount    string
		precision int32
		base      string
	}{
		{"10", 2, "1000"},
		{"5", 2, "500"},
		{"1.5", 12, "1500000000000"},
		{"0.01", 2, "1"},
		{"7", 0, "7"},
		{"123456789.123456789", 18, "123456789123456789000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			t.Parallel()

			amount := decimal.RequireFromString(tt.amount)
			base, err := faucet.ToBaseUnits(amount, tt.precision)
			require.NoError(t, err)
			assert.Equal(t, tt.base, base)

			back, err := faucet.FromBaseUnits(base, tt.precision)
			require.NoError(t, err)
			assert.True(t, amount.Equal(back), "want %s, got %s", amount, back)
		})
	}
}

func TestToBaseUnits_Rejects(t *testing.T) {
	t.Parallel()

	_, err := faucet.ToBaseUnits(decimal.RequireFromString("0.001"), 2)
	assert.ErrorIs(t, err, faucet.ErrInvalidAmount)

	_, err = faucet.ToBaseUnits(decimal.Zero, 2)
	assert.ErrorIs(t, err, faucet.ErrInvalidAmount)

	_, err = faucet.ToBaseUnits(decimal.NewFromInt(-1), 2)
	assert.ErrorIs(t, err, faucet.ErrInvalidAmount)

	_, err = faucet.ToBaseUnits(decimal.NewFromInt(1), -1)
	assert.ErrorIs(t, err, faucet.ErrInvalidAmount)
}

func TestFromBaseUnits_Rejects(t *testing.T) {
	t.Parallel()

	_, err := faucet.FromBaseUnits("abc", 2)
	assert.ErrorIs(t, err, faucet.ErrInvalidAmount)

	_, err = faucet.FromBaseUnits("1.5", 2)
	assert.ErrorIs(t, err, faucet.ErrInvalidAmount)
}

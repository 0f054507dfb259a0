package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAmount(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"0", true},
		{"695", true},
		{"0.005", true},
		{"-150", true},
		{"1000000000", true},
		{"1000000000.01", false},
		{"1e10", false},
		{"1e10000000", false},
		{"-1e10000000", false},
		{"1e-10000000", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := CheckAmount("price", decimal.RequireFromString(tt.in))
			if tt.valid {
				require.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "price", verr.Field)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestRoundAmount(t *testing.T) {
	assert.Equal(t, "0.01", RoundAmount(decimal.RequireFromString("0.005")).String())
	assert.Equal(t, "12.35", RoundAmount(decimal.RequireFromString("12.345")).String())
	assert.Equal(t, "695", RoundAmount(decimal.NewFromInt(695)).String())
}

package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in      string
		want    Quantity
		wantErr bool
	}{
		{in: "0", want: 0},
		{in: "12.5", want: 125_000},
		{in: "12.5000", want: 125_000},
		{in: "-3.25", want: -32_500},
		{in: "+7", want: 70_000},
		{in: ".5", want: 5_000},
		{in: "0.0001", want: 1},
		// Digits past the fourth are dropped, not rounded.
		{in: "1.99999", want: 19_999},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "1.2.3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuantity(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuantity_String(t *testing.T) {
	assert.Equal(t, "12.5000", NewQuantityFromFloat64(12.5).String())
	assert.Equal(t, "-3.2500", NewQuantityFromFloat64(-3.25).String())
	assert.Equal(t, "0.0000", Quantity(0).String())
	assert.Equal(t, "-0.0001", Quantity(-1).String())
}

func TestQuantity_StringParseRoundTrip(t *testing.T) {
	for _, q := range []Quantity{0, 1, -1, 125_000, -9_999_999} {
		got, err := ParseQuantity(q.String())
		require.NoError(t, err)
		assert.Equal(t, q, got)
	}
}

func TestQuantity_JSON(t *testing.T) {
	b, err := json.Marshal(NewQuantityFromFloat64(70))
	require.NoError(t, err)
	assert.Equal(t, "70.0000", string(b))

	var q Quantity
	require.NoError(t, json.Unmarshal([]byte(`"12.5"`), &q))
	assert.Equal(t, Quantity(125_000), q)

	require.NoError(t, json.Unmarshal([]byte(`12.5`), &q))
	assert.Equal(t, Quantity(125_000), q)
}

func TestQuantity_Arithmetic(t *testing.T) {
	q := NewQuantityFromFloat64(100)
	assert.Equal(t, NewQuantityFromFloat64(-100), q.Neg())
	assert.Equal(t, q, q.Neg().Abs())
	assert.True(t, q.IsPositive())
	assert.True(t, q.Neg().IsNegative())
	assert.True(t, Quantity(0).IsZero())

	// Ledger deltas sum directly: +100 - 30 = 70.
	sum := NewQuantityFromFloat64(100) + NewQuantityFromFloat64(30).Neg()
	assert.Equal(t, NewQuantityFromFloat64(70), sum)
	assert.InDelta(t, 70.0, sum.Float64(), 1e-9)
}

func TestQuantity_Decimal(t *testing.T) {
	d := NewQuantityFromFloat64(12.5).Decimal()
	assert.True(t, d.Equal(decimal.RequireFromString("12.5")), "got %s", d)
}

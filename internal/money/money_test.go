package money

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDecimal(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     int64
		wantErr  error
	}{
		{name: "whole cents", amount: "16.66", currency: "CHF", want: 1666},
		{name: "half rounds away from zero", amount: "0.005", currency: "EUR", want: 1},
		{name: "negative half rounds away from zero", amount: "-0.005", currency: "EUR", want: -1},
		{name: "below half rounds down", amount: "10.004", currency: "USD", want: 1000},
		{name: "zero exponent currency", amount: "1234.5", currency: "JPY", want: 1235},
		{name: "three decimal currency", amount: "1.2345", currency: "KWD", want: 1235},
		{name: "lower case currency", amount: "1", currency: "chf", wantErr: ErrInvalidCurrency},
		{name: "overflow", amount: "1e30", currency: "CHF", wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromDecimal(decimal.RequireFromString(tt.amount), tt.currency)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Minor())
			assert.Equal(t, tt.currency, got.Currency())
		})
	}
}

func TestParse(t *testing.T) {
	m, err := Parse(" 10.00 ", "CHF")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), m.Minor())
	assert.Equal(t, "10.00 CHF", m.String())

	for _, bad := range []string{"", "abc", "NaN", "Inf", "-Inf", "1,50"} {
		_, err := Parse(bad, "CHF")
		assert.ErrorIs(t, err, ErrInvalidAmount, "input %q", bad)
	}
}

func TestArithmetic(t *testing.T) {
	a := FromMinor(1000, "CHF")
	b := FromMinor(334, "CHF")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(1334), sum.Minor())

	diff, err := b.Sub(a)
	require.NoError(t, err)
	assert.Equal(t, int64(-666), diff.Minor())
	assert.True(t, diff.IsNegative())
	assert.Equal(t, int64(666), diff.Abs().Minor())

	cmp, err := a.Compare(b)
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)
	cmp, err = b.Compare(a)
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)
	cmp, err = a.Compare(FromMinor(1000, "CHF"))
	require.NoError(t, err)
	assert.Equal(t, 0, cmp)

	_, err = a.Add(FromMinor(1, "EUR"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
	_, err = a.Compare(FromMinor(1, "EUR"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = FromMinor(math.MaxInt64, "CHF").Add(FromMinor(1, "CHF"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestMulAndDiv(t *testing.T) {
	m := FromMinor(1000, "CHF")

	third, err := m.Div(3)
	require.NoError(t, err)
	assert.Equal(t, int64(333), third.Minor())

	twoThirds, err := FromMinor(2000, "CHF").Div(3)
	require.NoError(t, err)
	assert.Equal(t, int64(667), twoThirds.Minor())

	_, err = m.Div(0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	mulTests := []struct {
		minor  int64
		factor string
		want   int64
	}{
		{250, "0.5", 125},
		{-250, "0.5", -125},
		{1, "0.5", 1},
		{math.MaxInt64, "1", math.MaxInt64},
	}
	for _, tt := range mulTests {
		got, err := FromMinor(tt.minor, "CHF").Mul(decimal.RequireFromString(tt.factor))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.Minor())
	}

	for _, factor := range []string{"4", "-4", "2.0000001"} {
		_, err := FromMinor(math.MaxInt64/2+1, "CHF").Mul(decimal.RequireFromString(factor))
		assert.ErrorIs(t, err, ErrInvalidAmount, "factor %s", factor)
	}
}

func TestIsValidAndNonNegative(t *testing.T) {
	assert.True(t, IsValid(decimal.RequireFromString("0")))
	assert.True(t, IsValid(decimal.RequireFromString("12.34")))
	assert.False(t, IsValid(decimal.RequireFromString("-0.01")))
	assert.False(t, IsValid(decimal.RequireFromString("1e20")))

	_, err := NonNegative(FromMinor(-1, "CHF"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	m, err := NonNegative(FromMinor(0, "CHF"))
	require.NoError(t, err)
	assert.True(t, m.IsZero())
}

func TestSum(t *testing.T) {
	total, err := Sum("CHF", FromMinor(1, "CHF"), FromMinor(2, "CHF"), FromMinor(-3, "CHF"))
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	_, err = Sum("CHF", FromMinor(1, "USD"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestJSON(t *testing.T) {
	data, err := json.Marshal(FromMinor(1666, "CHF"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"16.66","currency":"CHF"}`, string(data))

	var m Money
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"3.33","currency":"CHF"}`), &m))
	assert.Equal(t, FromMinor(333, "CHF"), m)

	err = json.Unmarshal([]byte(`{"amount":3.33,"currency":"CHF"}`), &m)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

// Package money implements exact fixed-point currency amounts.
//
// A Money value is an integer count of minor units (cents for CHF/EUR/USD)
// tagged with a three-letter currency code. No operation in this package goes
// through float64; rounding to minor units is always half away from zero.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrInvalidCurrency  = errors.New("invalid currency code")
)

// exponents lists currencies whose minor unit is not 1/100.
var exponents = map[string]int32{
	"JPY": 0, "KRW": 0, "VND": 0, "CLP": 0, "ISK": 0,
	"BHD": 3, "KWD": 3, "OMR": 3, "JOD": 3, "TND": 3, "IQD": 3, "LYD": 3,
}

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// Money is an immutable amount in minor units of a single currency.
type Money struct {
	minor    int64
	currency string
}

// Exponent returns the number of decimal places of the currency's minor unit.
func Exponent(currency string) int32 {
	if e, ok := exponents[currency]; ok {
		return e
	}
	return 2
}

// ValidateCurrency checks that code looks like an ISO 4217 code.
func ValidateCurrency(code string) error {
	if len(code) != 3 {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
		}
	}
	return nil
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return Money{currency: currency}
}

// FromMinor builds a Money from a minor-unit count.
func FromMinor(minor int64, currency string) Money {
	return Money{minor: minor, currency: currency}
}

// FromDecimal converts a major-unit decimal (e.g. 10.005) into Money,
// rounding half away from zero to the currency's minor unit.
func FromDecimal(amount decimal.Decimal, currency string) (Money, error) {
	if err := ValidateCurrency(currency); err != nil {
		return Money{}, err
	}
	scaled := amount.Shift(Exponent(currency)).Round(0)
	if scaled.GreaterThan(maxMinor) || scaled.LessThan(minMinor) {
		return Money{}, fmt.Errorf("%w: %s out of range", ErrInvalidAmount, amount)
	}
	return Money{minor: scaled.IntPart(), currency: currency}, nil
}

// Parse reads a decimal string such as "16.66". NaN, Inf and anything that is
// not a plain decimal number is rejected.
func Parse(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d, currency)
}

// IsValid reports whether amount can be turned into a non-negative Money in
// any supported currency (three decimal places being the widest).
func IsValid(amount decimal.Decimal) bool {
	if amount.IsNegative() {
		return false
	}
	return amount.Shift(3).LessThanOrEqual(maxMinor)
}

// NonNegative returns m unchanged, or ErrInvalidAmount when it is below zero.
func NonNegative(m Money) (Money, error) {
	if m.minor < 0 {
		return Money{}, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, m)
	}
	return m, nil
}

// Minor returns the amount in minor units.
func (m Money) Minor() int64 { return m.minor }

// Currency returns the currency code.
func (m Money) Currency() string { return m.currency }

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.minor, -Exponent(m.currency))
}

// Amount formats the amount with exactly the currency's number of decimals.
func (m Money) Amount() string {
	return m.Decimal().StringFixed(Exponent(m.currency))
}

func (m Money) String() string {
	return m.Amount() + " " + m.currency
}

func (m Money) IsZero() bool     { return m.minor == 0 }
func (m Money) IsPositive() bool { return m.minor > 0 }
func (m Money) IsNegative() bool { return m.minor < 0 }

// Neg returns -m.
func (m Money) Neg() Money { return Money{minor: -m.minor, currency: m.currency} }

// Abs returns |m|.
func (m Money) Abs() Money {
	if m.minor < 0 {
		return m.Neg()
	}
	return m
}

func (m Money) sameCurrency(o Money) error {
	if m.currency != o.currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, o.currency)
	}
	return nil
}

// Add returns m+o.
func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	sum := m.minor + o.minor
	if (o.minor > 0 && sum < m.minor) || (o.minor < 0 && sum > m.minor) {
		return Money{}, fmt.Errorf("%w: overflow adding %s and %s", ErrInvalidAmount, m, o)
	}
	return Money{minor: sum, currency: m.currency}, nil
}

// Sub returns m-o.
func (m Money) Sub(o Money) (Money, error) {
	return m.Add(o.Neg())
}

// Mul scales m by factor, rounding half away from zero. It is not suitable for
// splitting an amount into parts; use the calculator's apportioning instead.
func (m Money) Mul(factor decimal.Decimal) (Money, error) {
	scaled := decimal.NewFromInt(m.minor).Mul(factor).Round(0)
	if scaled.GreaterThan(maxMinor) || scaled.LessThan(minMinor) {
		return Money{}, fmt.Errorf("%w: overflow multiplying %s by %s", ErrInvalidAmount, m, factor)
	}
	return Money{minor: scaled.IntPart(), currency: m.currency}, nil
}

// Div divides m by a positive divisor, rounding half away from zero.
func (m Money) Div(divisor int64) (Money, error) {
	if divisor <= 0 {
		return Money{}, fmt.Errorf("%w: divisor %d", ErrInvalidAmount, divisor)
	}
	q := decimal.NewFromInt(m.minor).Div(decimal.NewFromInt(divisor)).Round(0)
	return Money{minor: q.IntPart(), currency: m.currency}, nil
}

// Compare returns -1, 0 or 1.
func (m Money) Compare(o Money) (int, error) {
	if err := m.sameCurrency(o); err != nil {
		return 0, err
	}
	switch {
	case m.minor < o.minor:
		return -1, nil
	case m.minor > o.minor:
		return 1, nil
	}
	return 0, nil
}

// Sum adds amounts that must all be in currency.
func Sum(currency string, amounts ...Money) (Money, error) {
	total := Zero(currency)
	for _, a := range amounts {
		var err error
		if total, err = total.Add(a); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

type jsonMoney struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonMoney{Amount: m.Amount(), Currency: m.currency})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var j jsonMoney
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	parsed, err := Parse(j.Amount, j.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

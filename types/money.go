// Package types provides common value types used across Treasury.
package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value in the smallest currency unit.
// Balances are integer-only; fractional results of percentage and
// multiplier math are floored back to whole cents.
//
// Examples:
//   - USD(4900) = $49.00 (4900 cents)
//   - EUR(19900) = €199.00 (19900 cents)
type Money struct {
	Amount   int64  `json:"amount"`   // Smallest unit (cents)
	Currency string `json:"currency"` // ISO 4217 lowercase: "usd", "eur"
}

// USD creates a Money value in US Dollars (cents).
func USD(cents int64) Money { return Money{Amount: cents, Currency: "usd"} }

// EUR creates a Money value in Euros (cents).
func EUR(cents int64) Money { return Money{Amount: cents, Currency: "eur"} }

// GBP creates a Money value in British Pounds (pence).
func GBP(pence int64) Money { return Money{Amount: pence, Currency: "gbp"} }

// Cents creates a Money value in the given currency.
func Cents(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToLower(currency)}
}

// Zero returns a zero Money value in the specified currency.
func Zero(currency string) Money { return Cents(0, currency) }

// Add adds two Money values. Panics if currencies don't match.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// Subtract subtracts another Money value. Panics if currencies don't match.
func (m Money) Subtract(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}
}

// Negate returns the negative of the Money value.
func (m Money) Negate() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

// Percent returns floor(m * pct / 100).
func (m Money) Percent(pct float64) Money {
	return Money{Amount: PercentOf(m.Amount, pct), Currency: m.Currency}
}

// Scale returns floor(m * multiplier).
func (m Money) Scale(multiplier float64) Money {
	return Money{Amount: Scale(m.Amount, multiplier), Currency: m.Currency}
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal returns true if both Money values are equal (same amount and currency).
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// FormatMajor returns the major unit string without currency symbol,
// e.g. "49.00" for USD(4900).
func (m Money) FormatMajor() string {
	return decimal.New(m.Amount, -2).StringFixed(2)
}

// String returns a human-readable string with currency symbol.
func (m Money) String() string {
	return currencySymbol(m.Currency) + m.FormatMajor()
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

func (m Money) assertSameCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

func currencySymbol(currency string) string {
	switch strings.ToLower(currency) {
	case "usd":
		return "$"
	case "eur":
		return "€"
	case "gbp":
		return "£"
	default:
		return strings.ToUpper(currency) + " "
	}
}

// ──────────────────────────────────────────────────
// Cent arithmetic
// ──────────────────────────────────────────────────

var hundred = decimal.NewFromInt(100)

// PercentOf returns floor(cents * pct / 100) computed in exact decimal
// arithmetic, so 10% of 999 is 99 and never 99.89999.
func PercentOf(cents int64, pct float64) int64 {
	if cents == 0 || pct == 0 {
		return 0
	}
	return decimal.NewFromInt(cents).
		Mul(decimal.NewFromFloat(pct)).
		Div(hundred).
		Floor().
		IntPart()
}

// Scale returns floor(cents * multiplier).
func Scale(cents int64, multiplier float64) int64 {
	if cents == 0 {
		return 0
	}
	return decimal.NewFromInt(cents).
		Mul(decimal.NewFromFloat(multiplier)).
		Floor().
		IntPart()
}

// PerMille returns floor(cents / 1000); the per-view price of a CPM rate.
func PerMille(cents int64) int64 {
	return cents / 1000
}

// Ratio returns part / whole * 100 as a float, or 0 when whole is 0.
func Ratio(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	r, _ := decimal.NewFromInt(part).
		Div(decimal.NewFromInt(whole)).
		Mul(hundred).
		Float64()
	return r
}

// Sum calculates the sum of multiple Money values. All must have the same currency.
func Sum(values ...Money) Money {
	if len(values) == 0 {
		return Zero("usd")
	}

	result := values[0]
	for i := 1; i < len(values); i++ {
		result = result.Add(values[i])
	}
	return result
}

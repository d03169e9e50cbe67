package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value in a specific currency.
// Amount is stored as BIGINT micros (10^-6) to avoid floating point errors.
type Money struct {
	Amount   int64 // micros
	Currency Currency
}

// NewMoney creates a new Money instance from micros.
func NewMoney(amount int64, currency Currency) Money {
	return Money{
		Amount:   amount,
		Currency: currency,
	}
}

// ToDecimal converts the int64 micros to a shopspring/decimal.Decimal.
func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.Amount).Div(decimal.NewFromInt(1_000_000))
}

// FromDecimal converts a decimal.Decimal to int64 micros.
func FromDecimal(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(1_000_000)).IntPart()
}

// Multiply returns a new Money instance scaled by a factor, rounded down.
func (m Money) Multiply(factor decimal.Decimal) Money {
	return Money{
		Amount:   FromDecimal(m.ToDecimal().Mul(factor)),
		Currency: m.Currency,
	}
}

// Convert converts the money to a target currency using a given FX rate.
// The rate should be (Target / Source).
func (m Money) Convert(target Currency, rate decimal.Decimal) Money {
	return Money{
		Amount:   FromDecimal(m.ToDecimal().Mul(rate)),
		Currency: target,
	}
}

// String returns the string representation of the money.
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.ToDecimal().StringFixed(2), m.Currency)
}

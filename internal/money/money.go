// Package money holds the pricing rules shared by checkout: exact decimal
// arithmetic, a two-digit currency unit and the flat sales tax.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits of the currency unit.
const Places = 2

// TaxRate is applied to every order's subtotal.
var TaxRate = decimal.RequireFromString("0.10")

var (
	ErrNegative  = errors.New("amount must not be negative")
	ErrPrecision = fmt.Errorf("amount must have at most %d decimal places", Places)
)

// CheckAmount validates a customer-supplied amount against the currency unit.
func CheckAmount(d decimal.Decimal) error {
	if d.IsNegative() {
		return ErrNegative
	}
	if !d.Equal(d.Truncate(Places)) {
		return ErrPrecision
	}
	return nil
}

// Parse reads a decimal string and validates it with CheckAmount.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if err := CheckAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

func LineSubtotal(price decimal.Decimal, qty int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty)))
}

type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Compute sums line subtotals and applies TaxRate. Nothing is rounded: with
// two-digit prices the tax has at most three digits and is stored as is.
func Compute(lines []decimal.Decimal) Totals {
	sub := decimal.Sum(decimal.Zero, lines...)
	tax := sub.Mul(TaxRate)
	return Totals{Subtotal: sub, Tax: tax, Total: sub.Add(tax)}
}

// Change is received minus due; ok is false when the payment does not cover due.
func Change(received, due decimal.Decimal) (change decimal.Decimal, ok bool) {
	change = received.Sub(due)
	return change, !change.IsNegative()
}

// Format renders d with at least two decimals and never drops significant digits.
func Format(d decimal.Decimal) string {
	if d.Equal(d.Truncate(Places)) {
		return d.StringFixed(Places)
	}
	return d.String()
}

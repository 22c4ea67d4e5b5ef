// Package money computes cart totals: subtotal, tax, manual discount, and
// grand total. All functions are pure; monetary values use decimal.Decimal
// to avoid float drift.
package money

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DiscountKind enumerates the supported discount strategies, shared by the
// tab-level manual discount and promotional offers.
type DiscountKind string

const (
	// DiscountFlat subtracts a fixed amount.
	DiscountFlat DiscountKind = "flat"
	// DiscountPercentage subtracts a percentage of the subtotal.
	DiscountPercentage DiscountKind = "percentage"
)

// Line is one cart line as seen by the calculator. Price is the unit price
// in the active display currency; BasePrice is the catalog price in the base
// currency, retained so currency switches recompute without drift.
type Line struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	BasePrice decimal.Decimal
	Quantity  int
}

// ManualDiscount is the tab-level discount configured by the cashier.
//
// A flat manual discount is interpreted as already being in the active
// display currency and is NOT converted. Flat offer discounts, by contrast,
// are converted from the base currency (see the offer package). The
// asymmetry is a deliberate carry-over from reference behaviour.
type ManualDiscount struct {
	Kind  DiscountKind
	Value decimal.Decimal
}

// Totals holds the derived amounts for a cart, all in the active display
// currency and rounded to 2 decimal places.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Subtotal sums price × quantity across all lines.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// Amount resolves the manual discount against a subtotal.
func (d ManualDiscount) Amount(subtotal decimal.Decimal) decimal.Decimal {
	switch d.Kind {
	case DiscountPercentage:
		return subtotal.Mul(d.Value).Div(hundred)
	default:
		return d.Value
	}
}

// Compute derives the full totals for a cart. offerDiscounts are the
// already-resolved contributions of applied offers, in the active currency.
//
// Total is NOT clamped at zero when discounts exceed subtotal+tax; the
// orchestrator refuses to finalize a negative-total sale instead, so the
// calculator stays a faithful arithmetic identity
// (Total == Subtotal + Tax - Discount).
func Compute(lines []Line, taxRatePercent decimal.Decimal, manual ManualDiscount, offerDiscounts []decimal.Decimal) Totals {
	subtotal := Subtotal(lines).Round(2)
	tax := subtotal.Mul(taxRatePercent).Div(hundred).Round(2)

	discount := manual.Amount(subtotal)
	for _, d := range offerDiscounts {
		discount = discount.Add(d)
	}
	discount = discount.Round(2)

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Discount: discount,
		Total:    subtotal.Add(tax).Sub(discount),
	}
}

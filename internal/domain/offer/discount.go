package offer

import (
	"github.com/shopspring/decimal"

	"github.com/tillcraft/pos/internal/domain/money"
)

var hundred = decimal.NewFromInt(100)

// ConvertFunc converts a base-currency amount into the active display
// currency.
type ConvertFunc func(base decimal.Decimal) decimal.Decimal

// DiscountFor computes the offer's contribution to the discount amount, in
// the active display currency.
//
// Percentage offers apply to the subtotal directly. Flat offer values are
// defined in the base currency and ARE converted — unlike flat manual
// discounts, which are taken at face value. Both halves of that asymmetry
// are reference behaviour and covered by tests so neither can silently
// regress.
func DiscountFor(o Offer, subtotal decimal.Decimal, convert ConvertFunc) decimal.Decimal {
	switch o.DiscountKind {
	case money.DiscountPercentage:
		return subtotal.Mul(o.DiscountValue).Div(hundred)
	default:
		return convert(o.DiscountValue)
	}
}

// ActiveDiscounts resolves the contributions of the applied offers at totals
// time. Combo offers are re-verified here: removing a combo item from the
// cart zeroes that offer's contribution without un-applying it, so putting
// the item back restores the discount.
func ActiveDiscounts(applied []Offer, lines []money.Line, subtotal decimal.Decimal, convert ConvertFunc) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(applied))
	for _, o := range applied {
		if o.Kind == KindCombo && !ComboComplete(o, lines) {
			continue
		}
		out = append(out, DiscountFor(o, subtotal, convert))
	}
	return out
}

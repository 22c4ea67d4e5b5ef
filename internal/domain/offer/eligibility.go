package offer

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tillcraft/pos/internal/domain/customer"
	"github.com/tillcraft/pos/internal/domain/money"
)

// Check decides whether the offer may be applied to the given cart. It
// returns nil when eligible, or the first failing rejection sentinel. The
// conditions are evaluated in a fixed order so rejection messages are
// stable: customer class, applicable products, minimum purchase, expiry,
// combo completeness.
func Check(o Offer, lines []money.Line, cust customer.Profile, subtotal decimal.Decimal, now time.Time) error {
	if o.Kind == KindRegular && !cust.IsRegular() {
		return ErrRegularOnly
	}

	if len(o.Products) > 0 && !anyProductInCart(o.Products, lines) {
		return ErrMissingProducts
	}

	if o.MinPurchase.IsPositive() && subtotal.LessThan(o.MinPurchase) {
		return ErrMinPurchase
	}

	if o.ValidUntil != nil && !now.Before(*o.ValidUntil) {
		return ErrExpired
	}

	if o.Kind == KindCombo && !ComboComplete(o, lines) {
		return ErrMissingProducts
	}

	return nil
}

// ComboComplete reports whether every combo product is present in the cart
// with at least the required quantity.
func ComboComplete(o Offer, lines []money.Line) bool {
	qty := make(map[string]int, len(lines))
	for _, l := range lines {
		qty[l.ProductID] += l.Quantity
	}
	for _, item := range o.Combo {
		need := item.Quantity
		if need < 1 {
			need = 1
		}
		if qty[item.ProductID] < need {
			return false
		}
	}
	return true
}

func anyProductInCart(ids []string, lines []money.Line) bool {
	inCart := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		inCart[l.ProductID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := inCart[id]; ok {
			return true
		}
	}
	return false
}

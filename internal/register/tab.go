package register

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tillcraft/pos/internal/domain/catalog"
	"github.com/tillcraft/pos/internal/domain/currency"
	"github.com/tillcraft/pos/internal/domain/money"
	"github.com/tillcraft/pos/internal/domain/payment"
)

// Status is the tab lifecycle state.
type Status string

const (
	// StatusActive is a tab accepting mutations.
	StatusActive Status = "active"
	// StatusCompleted marks a tab whose cart was just turned into a durable
	// sale record. A completed tab holds no lines and no applied offers; the
	// next AddToCart starts a fresh cart under the same tab id.
	StatusCompleted Status = "completed"
)

// CartLine is one product entry on a tab. Price is the unit price in the
// tab's active currency; BasePrice is the catalog price in the base
// currency, retained so currency switches recompute without repeated
// rounding.
type CartLine struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	BasePrice decimal.Decimal
	Quantity  int
}

// Tab is one independent in-progress sale: a cart plus its discount,
// payment, currency, and offer settings. Multiple tabs may be open
// concurrently, like multiple physical registers.
type Tab struct {
	ID       string
	Name     string
	Lines    []CartLine
	Discount money.ManualDiscount
	Payment  payment.Method
	Currency currency.Currency
	// AppliedOffers has set semantics: an offer id appears at most once.
	// Order is preserved for display.
	AppliedOffers []string
	Status        Status

	// pendingAuth holds the third-party authorization obtained during
	// checkout, consumed by finalize.
	pendingAuth *payment.Authorization

	// finalizing marks a tab whose sale commit is in flight. Mutations,
	// removal, and reconciliation are refused until the commit settles.
	finalizing bool
}

func newTab(name string, cur currency.Currency) *Tab {
	return &Tab{
		ID:       uuid.New().String(),
		Name:     name,
		Discount: money.ManualDiscount{Kind: money.DiscountFlat, Value: decimal.Zero},
		Payment:  payment.Cash(),
		Currency: cur,
		Status:   StatusActive,
	}
}

// reset returns the tab to a fresh active state: empty cart, flat/0
// discount, cash payment, no offers. The currency selection survives.
func (t *Tab) reset() {
	t.Lines = nil
	t.Discount = money.ManualDiscount{Kind: money.DiscountFlat, Value: decimal.Zero}
	t.Payment = payment.Cash()
	t.AppliedOffers = nil
	t.Status = StatusActive
	t.pendingAuth = nil
}

// addProduct increments the quantity when the product already has a line,
// otherwise appends a new line at quantity 1. Display prices are always
// recomputed from the base price and the tab's current currency, guarding
// against stale pricing when the currency changed since the line was added.
func (t *Tab) addProduct(p catalog.Product) {
	if t.Status == StatusCompleted {
		t.reset()
	}
	display := currency.Convert(p.Price, t.Currency)
	for i := range t.Lines {
		if t.Lines[i].ProductID == p.ID {
			t.Lines[i].Quantity++
			t.Lines[i].Price = display
			return
		}
	}
	t.Lines = append(t.Lines, CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     display,
		BasePrice: p.Price,
		Quantity:  1,
	})
}

// setQuantity sets the line quantity, removing the line when qty <= 0.
// It reports whether the product had a line.
func (t *Tab) setQuantity(productID string, qty int) bool {
	for i := range t.Lines {
		if t.Lines[i].ProductID != productID {
			continue
		}
		if qty <= 0 {
			t.Lines = append(t.Lines[:i], t.Lines[i+1:]...)
			return true
		}
		t.Lines[i].Quantity = qty
		t.Lines[i].Price = currency.Convert(t.Lines[i].BasePrice, t.Currency)
		return true
	}
	return false
}

// setCurrency switches the display currency and recomputes every line's
// price from its retained base price, so switching A→B→A restores the
// original prices exactly.
func (t *Tab) setCurrency(cur currency.Currency) {
	t.Currency = cur
	for i := range t.Lines {
		t.Lines[i].Price = currency.Convert(t.Lines[i].BasePrice, cur)
	}
}

// hasOffer reports whether the offer id is already applied.
func (t *Tab) hasOffer(id string) bool {
	for _, applied := range t.AppliedOffers {
		if applied == id {
			return true
		}
	}
	return false
}

// moneyLines adapts the cart for the totals calculator.
func (t *Tab) moneyLines() []money.Line {
	out := make([]money.Line, len(t.Lines))
	for i, l := range t.Lines {
		out[i] = money.Line{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.Price,
			BasePrice: l.BasePrice,
			Quantity:  l.Quantity,
		}
	}
	return out
}

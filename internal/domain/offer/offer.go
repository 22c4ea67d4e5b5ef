// Package offer implements promotional offer evaluation: whether an offer
// may be applied to a cart, and how much it contributes to the discount.
package offer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tillcraft/pos/internal/domain/money"
)

// Kind enumerates the offer variants.
type Kind string

const (
	// KindRegular is restricted to regular customers.
	KindRegular Kind = "regular"
	// KindCombo requires a specific set of products in the cart.
	KindCombo Kind = "combo"
	// KindSeasonal is a time-boxed promotion open to everyone.
	KindSeasonal Kind = "seasonal"
)

// Rejection sentinels. Each maps to a specific user-visible message; apply
// failures never mutate tab state.
var (
	ErrAlreadyApplied  = errors.New("offer already applied")
	ErrRegularOnly     = errors.New("offer is for regular customers only")
	ErrMinPurchase     = errors.New("minimum purchase not met")
	ErrExpired         = errors.New("offer has expired")
	ErrMissingProducts = errors.New("required products not in cart")
	ErrUnknownOffer    = errors.New("unknown offer")
)

// ComboItem is one required product of a combo offer.
type ComboItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Offer is a promotional rule. Offers are defined externally and read-only
// from the checkout's perspective.
type Offer struct {
	ID          string
	Name        string
	Description string
	Kind        Kind

	DiscountKind  money.DiscountKind
	DiscountValue decimal.Decimal

	// MinPurchase gates eligibility on the subtotal; zero means no minimum.
	MinPurchase decimal.Decimal
	// Products restricts the offer to carts containing at least one of the
	// listed product ids; empty means any cart.
	Products []string
	// ValidUntil expires the offer; nil means no expiry.
	ValidUntil *time.Time
	// Combo lists the products that must all be present for combo offers.
	Combo []ComboItem
}

// Repository provides the offer list. The engine reads offers at startup
// and on configuration pushes.
type Repository interface {
	List(ctx context.Context) ([]Offer, error)
}

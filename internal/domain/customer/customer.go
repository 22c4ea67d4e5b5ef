// Package customer tracks per-customer purchase history for the regular
// customer programme. Profiles are keyed by phone number and shared across
// tabs and sales.
package customer

import (
	"context"
	"time"
)

// RegularThreshold is the cumulative purchase count at which a customer
// becomes a regular and qualifies for regular-only offers.
const RegularThreshold = 5

// Info identifies the customer on a sale. Email is optional; an anonymous
// sale carries a zero Info.
type Info struct {
	Name  string
	Phone string
	Email string
}

// Anonymous reports whether the info identifies nobody.
func (i Info) Anonymous() bool {
	return i.Phone == "" && i.Name == ""
}

// Profile is the stored purchase history for an identified customer.
type Profile struct {
	Info
	PurchaseCount    int
	LastPurchaseDate time.Time
}

// IsRegular reports whether the customer has crossed the regular threshold.
func (p Profile) IsRegular() bool {
	return p.PurchaseCount >= RegularThreshold
}

// Store reads customer profiles. Lookup misses return a zero Profile and no
// error, so a first-time customer starts from an empty history. Profile
// writes happen inside the sale commit (see the sale package) so the
// purchase count can never drift from the recorded sales.
type Store interface {
	Find(ctx context.Context, phone string) (Profile, error)
}

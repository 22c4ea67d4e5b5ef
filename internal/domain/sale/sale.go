// Package sale defines the immutable record produced by finalizing a tab
// and the atomic commit contract its persistence must honour.
package sale

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tillcraft/pos/internal/domain/customer"
	"github.com/tillcraft/pos/internal/domain/payment"
)

// StatusCompleted is the only status a freshly recorded sale carries.
// Later status transitions (refunds, "mark as paid") belong to the
// sales-history collaborator, not this engine.
const StatusCompleted = "completed"

// Line is a cart line snapshotted at finalize time. Price is the
// base-currency unit price so historical records stay currency-stable.
type Line struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Record is one finalized sale. The monetary totals are in the display
// currency active at sale time; ExchangeRate lets reporting reconstruct
// base-currency amounts.
type Record struct {
	TransactionID string
	UserID        string
	Timestamp     time.Time
	Customer      customer.Info
	Lines         []Line

	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal

	Payment       payment.Method
	Authorization *payment.Authorization
	CurrencyCode  string
	ExchangeRate  decimal.Decimal
	AppliedOffers []string
	Status        string
}

// Recorder persists finalized sales. Commit must be atomic: the record, its
// redundant query indexes (by transaction id, by user, by user+date), the
// per-product sales counters, and the customer profile update either all
// land or none do. The orchestrator treats any error as "nothing happened"
// and leaves the tab intact for retry.
type Recorder interface {
	Commit(ctx context.Context, rec *Record) error
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillcraft/pos/internal/domain/sale"
	"github.com/tillcraft/pos/internal/privacy"
)

const (
	insertSaleSQL = `INSERT INTO sales (transaction_id, user_id, ts, customer, lines,
			subtotal, tax, discount, total,
			payment_kind, payment_provider, auth_info,
			currency_code, exchange_rate, applied_offers, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	insertUserSaleSQL = `INSERT INTO user_sales (user_id, transaction_id) VALUES ($1, $2)`

	insertUserSaleByDateSQL = `INSERT INTO user_sales_by_date (user_id, sale_date, transaction_id)
		VALUES ($1, $2, $3)`

	bumpProductCounterSQL = `INSERT INTO product_sales_counters (product_id, sold)
		VALUES ($1, $2)
		ON CONFLICT (product_id) DO UPDATE SET sold = product_sales_counters.sold + $2`

	upsertCustomerSQL = `INSERT INTO customers (user_id, phone, name, email, purchase_count, last_purchase)
		VALUES ($1, $2, $3, $4, 1, $5)
		ON CONFLICT (user_id, phone) DO UPDATE SET
			name = $3, email = $4,
			purchase_count = customers.purchase_count + 1,
			last_purchase = $5`
)

var _ sale.Recorder = (*SaleRecorder)(nil)

// SaleRecorder implements sale.Recorder backed by PostgreSQL. One Commit is
// one database transaction covering the sale record, both redundant query
// indexes, the per-product sales counters, and the customer profile update,
// so a partial write can never leave the indexes inconsistent.
type SaleRecorder struct {
	pool  *pgxpool.Pool
	codec privacy.Codec
}

// NewSaleRecorder returns a SaleRecorder that uses the given pool.
func NewSaleRecorder(pool *pgxpool.Pool) *SaleRecorder {
	return &SaleRecorder{pool: pool}
}

// storedCustomer is the persisted customer snapshot; PII fields are run
// through the privacy codec before they leave the process.
type storedCustomer struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Commit durably records a finalized sale.
func (r *SaleRecorder) Commit(ctx context.Context, rec *sale.Record) error {
	customerJSON, err := json.Marshal(storedCustomer{
		Name:  r.codec.Encode(rec.Customer.Name),
		Phone: r.codec.Encode(rec.Customer.Phone),
		Email: r.codec.Encode(rec.Customer.Email),
	})
	if err != nil {
		return fmt.Errorf("marshaling customer snapshot: %w", err)
	}

	linesJSON, err := json.Marshal(rec.Lines)
	if err != nil {
		return fmt.Errorf("marshaling sale lines: %w", err)
	}

	var authJSON []byte
	if rec.Authorization != nil {
		if authJSON, err = json.Marshal(rec.Authorization); err != nil {
			return fmt.Errorf("marshaling authorization: %w", err)
		}
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertSaleSQL,
			rec.TransactionID, rec.UserID, rec.Timestamp, customerJSON, linesJSON,
			rec.Subtotal, rec.Tax, rec.Discount, rec.Total,
			string(rec.Payment.Kind), rec.Payment.Provider, authJSON,
			rec.CurrencyCode, rec.ExchangeRate, rec.AppliedOffers, rec.Status,
		)
		if err != nil {
			return fmt.Errorf("inserting sale %q: %w", rec.TransactionID, err)
		}

		if _, err := tx.Exec(ctx, insertUserSaleSQL, rec.UserID, rec.TransactionID); err != nil {
			return fmt.Errorf("indexing sale %q by user: %w", rec.TransactionID, err)
		}

		saleDate := rec.Timestamp.UTC().Truncate(24 * time.Hour)
		if _, err := tx.Exec(ctx, insertUserSaleByDateSQL, rec.UserID, saleDate, rec.TransactionID); err != nil {
			return fmt.Errorf("indexing sale %q by date: %w", rec.TransactionID, err)
		}

		for _, line := range rec.Lines {
			if _, err := tx.Exec(ctx, bumpProductCounterSQL, line.ProductID, line.Quantity); err != nil {
				return fmt.Errorf("bumping sales counter for %q: %w", line.ProductID, err)
			}
		}

		if rec.Customer.Phone != "" {
			_, err := tx.Exec(ctx, upsertCustomerSQL,
				rec.UserID,
				r.codec.Encode(rec.Customer.Phone),
				r.codec.Encode(rec.Customer.Name),
				r.codec.Encode(rec.Customer.Email),
				rec.Timestamp,
			)
			if err != nil {
				return fmt.Errorf("updating customer profile: %w", err)
			}
		}

		return nil
	})
}

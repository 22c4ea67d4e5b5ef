package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillcraft/pos/internal/domain/customer"
	"github.com/tillcraft/pos/internal/privacy"
)

const findCustomerSQL = `SELECT name, email, purchase_count, last_purchase
	FROM customers WHERE user_id = $1 AND phone = $2`

var _ customer.Store = (*CustomerStore)(nil)

// CustomerStore implements customer.Store backed by PostgreSQL, scoped to
// one authenticated user. Phone numbers are stored encoded, so lookups
// encode the key the same way the sale recorder does on write.
type CustomerStore struct {
	pool   *pgxpool.Pool
	userID string
	codec  privacy.Codec
}

// NewCustomerStore returns a CustomerStore for the given user.
func NewCustomerStore(pool *pgxpool.Pool, userID string) *CustomerStore {
	return &CustomerStore{pool: pool, userID: userID}
}

// Find returns the purchase profile for the phone number. A miss returns a
// zero profile and no error.
func (s *CustomerStore) Find(ctx context.Context, phone string) (customer.Profile, error) {
	var (
		p            customer.Profile
		name, email  string
		lastPurchase *time.Time
	)
	err := s.pool.QueryRow(ctx, findCustomerSQL, s.userID, s.codec.Encode(phone)).
		Scan(&name, &email, &p.PurchaseCount, &lastPurchase)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return customer.Profile{Info: customer.Info{Phone: phone}}, nil
		}
		return customer.Profile{}, fmt.Errorf("finding customer: %w", err)
	}
	p.Name = s.codec.Decode(name)
	p.Email = s.codec.Decode(email)
	p.Phone = phone
	if lastPurchase != nil {
		p.LastPurchaseDate = *lastPurchase
	}
	return p, nil
}

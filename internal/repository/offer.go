package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tillcraft/pos/internal/domain/money"
	"github.com/tillcraft/pos/internal/domain/offer"
)

const listOffersSQL = `SELECT id, name, description, kind, discount_kind, discount_value,
		min_purchase, products, valid_until, combo
	FROM offers WHERE active = TRUE ORDER BY id`

var _ offer.Repository = (*OfferRepository)(nil)

// OfferRepository implements offer.Repository backed by PostgreSQL. Offers
// are seeded externally and read-only here.
type OfferRepository struct {
	pool *pgxpool.Pool
}

// NewOfferRepository returns an OfferRepository that uses the given pool.
func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{pool: pool}
}

// List returns all active offers ordered by id.
func (r *OfferRepository) List(ctx context.Context) ([]offer.Offer, error) {
	rows, err := r.pool.Query(ctx, listOffersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing offers: %w", err)
	}
	return pgx.CollectRows(rows, scanOffer)
}

func scanOffer(row pgx.CollectableRow) (offer.Offer, error) {
	var (
		o            offer.Offer
		kind         string
		discountKind string
		value        decimal.Decimal
		minPurchase  decimal.Decimal
		validUntil   *time.Time
		comboJSON    []byte
	)
	err := row.Scan(
		&o.ID, &o.Name, &o.Description, &kind, &discountKind, &value,
		&minPurchase, &o.Products, &validUntil, &comboJSON,
	)
	if err != nil {
		return offer.Offer{}, err
	}
	o.Kind = offer.Kind(kind)
	o.DiscountKind = money.DiscountKind(discountKind)
	o.DiscountValue = value
	o.MinPurchase = minPurchase
	o.ValidUntil = validUntil
	if len(comboJSON) > 0 {
		if err := json.Unmarshal(comboJSON, &o.Combo); err != nil {
			return offer.Offer{}, fmt.Errorf("unmarshaling combo for offer %q: %w", o.ID, err)
		}
	}
	return o, nil
}

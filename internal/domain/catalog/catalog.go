// Package catalog holds the read-only product and category model. The
// catalog is owned by an external collaborator; the transaction engine only
// ever reads it.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog item available for sale. Price is in the base
// currency.
type Product struct {
	ID         string
	Name       string
	CategoryID string
	Price      decimal.Decimal
	ImageURL   string
}

// Category groups products for display purposes.
type Category struct {
	ID   string
	Name string
}

// Repository defines read operations over the catalog.
type Repository interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product or variant does not exist.
var ErrNotFound = errors.New("catalog item not found")

// Product represents a sellable catalog item.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	// SalePrice is the discounted price shown in the storefront, if any.
	SalePrice  decimal.NullDecimal
	Stock      int
	CategoryID int64
}

// UnitPrice returns the sale price when one is set to a non-zero amount and
// the list price otherwise.
func (p Product) UnitPrice() decimal.Decimal {
	if p.SalePrice.Valid && !p.SalePrice.Decimal.IsZero() {
		return p.SalePrice.Decimal
	}
	return p.Price
}

// Variant is a purchasable option of a product (size, pack, flavour) with its
// own price.
type Variant struct {
	ID        int64
	ProductID int64
	Name      string
	Price     decimal.Decimal
}

// Listing is a product together with its variants, as shown in the storefront.
type Listing struct {
	Product
	Variants []Variant
}

// Repository defines read operations the pricing pipeline needs from the catalog.
type Repository interface {
	GetProduct(ctx context.Context, id int64) (*Product, error)
	GetVariant(ctx context.Context, id int64) (*Variant, error)
}

package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/pricing"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

var statuses = []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

// ParseStatus converts s to a Status, ignoring case.
func ParseStatus(s string) (Status, error) {
	for _, st := range statuses {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", errors.Errorf("unknown order status %q", s)
}

// Customer holds the contact and delivery details captured at checkout.
type Customer struct {
	Name    string `validate:"required,max=200"`
	Email   string `validate:"required,email,max=254"`
	Phone   string `validate:"omitempty,max=32"`
	Address string `validate:"omitempty,max=1000"`
}

// Item is an immutable order line with the price resolved at purchase time.
type Item struct {
	ProductID int64
	VariantID *int64
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Order is a placed customer order together with the financial breakdown
// computed when it was created.
type Order struct {
	ID            string
	Customer      Customer
	PaymentMethod string
	CouponCode    string
	Status        Status
	Breakdown     pricing.Breakdown
	Items         []Item
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ListFilter narrows an order listing.
type ListFilter struct {
	Status *Status
	// Search matches customer name or email, case-insensitively.
	Search string
	Limit  int
	Offset int
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) (*Order, error)
}

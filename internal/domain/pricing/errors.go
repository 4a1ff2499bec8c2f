package pricing

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// NotFoundError indicates a line item references a product or variant that
// does not exist.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// InvalidQuantityError indicates a line item quantity outside [1, MaxQuantity].
type InvalidQuantityError struct {
	ProductID int64
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	if e.Quantity > MaxQuantity {
		return fmt.Sprintf("quantity must not exceed %d for product %d", MaxQuantity, e.ProductID)
	}
	return fmt.Sprintf("quantity must be greater than 0 for product %d", e.ProductID)
}

// CouponInactiveError is returned when a known coupon is switched off.
type CouponInactiveError struct {
	Code string
}

func (e *CouponInactiveError) Error() string {
	return fmt.Sprintf("coupon %s is not active", e.Code)
}

// CouponMinimumNotMetError is returned when the subtotal is below the coupon's
// minimum order value.
type CouponMinimumNotMetError struct {
	Code          string
	MinOrderValue decimal.Decimal
	Subtotal      decimal.Decimal
}

func (e *CouponMinimumNotMetError) Error() string {
	return fmt.Sprintf("minimum order value of %s required for %s", e.MinOrderValue.StringFixed(2), e.Code)
}

// CodNotEligibleError is returned when cash on delivery is requested for a
// subtotal above the COD ceiling.
type CodNotEligibleError struct {
	MaxOrderValue decimal.Decimal
	Subtotal      decimal.Decimal
}

func (e *CodNotEligibleError) Error() string {
	return fmt.Sprintf("COD not available for orders above %s", e.MaxOrderValue.StringFixed(2))
}

// IsRejection reports whether err is a business-rule rejection that should be
// surfaced to the customer verbatim.
func IsRejection(err error) bool {
	var (
		inactive *CouponInactiveError
		minimum  *CouponMinimumNotMetError
		cod      *CodNotEligibleError
	)
	return errors.As(err, &inactive) || errors.As(err, &minimum) || errors.As(err, &cod)
}

// RejectionReason returns a short machine-readable label for err, suitable as
// a metric attribute. It returns "" for errors that are not rejections.
func RejectionReason(err error) string {
	var (
		notFound *NotFoundError
		qty      *InvalidQuantityError
		inactive *CouponInactiveError
		minimum  *CouponMinimumNotMetError
		cod      *CodNotEligibleError
	)
	switch {
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &qty):
		return "invalid_quantity"
	case errors.As(err, &inactive):
		return "coupon_inactive"
	case errors.As(err, &minimum):
		return "coupon_minimum"
	case errors.As(err, &cod):
		return "cod_not_eligible"
	default:
		return ""
	}
}

package pricing

import (
	"github.com/shopspring/decimal"
)

// Discount evaluates code against the subtotal. A blank or unknown code yields
// a zero discount and a nil coupon. A known coupon that is inactive or whose
// minimum order value is not met is rejected.
//
// The discount is not capped at the subtotal.
func (c *Config) Discount(subtotal decimal.Decimal, code string) (decimal.Decimal, *Coupon, error) {
	if NormalizeCode(code) == "" {
		return decimal.Zero, nil, nil
	}
	cp, ok := c.Coupon(code)
	if !ok {
		return decimal.Zero, nil, nil
	}
	if !cp.Active {
		return decimal.Zero, nil, &CouponInactiveError{Code: cp.Code}
	}
	if subtotal.LessThan(cp.MinOrderValue) {
		return decimal.Zero, nil, &CouponMinimumNotMetError{
			Code:          cp.Code,
			MinOrderValue: cp.MinOrderValue,
			Subtotal:      subtotal,
		}
	}

	var amount decimal.Decimal
	switch cp.Type {
	case CouponPercentage:
		amount = percentOf(subtotal, cp.Value)
	default:
		amount = round2(cp.Value)
	}
	return amount, &cp, nil
}

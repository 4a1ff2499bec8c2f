// Package pricing computes the server-side financial breakdown of an order:
// subtotal, coupon discount, tax, shipping and cash-on-delivery surcharge.
//
// All monetary values are decimals rounded to two places. Every component is
// rounded on its own before the total is summed, so the total always equals
// the sum of the reported components.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentCOD is the payment method that triggers the COD surcharge. Matching
// is case-insensitive.
const PaymentCOD = "cod"

// CouponType enumerates the supported coupon discount strategies.
type CouponType string

const (
	// CouponPercentage takes a percentage off the subtotal.
	CouponPercentage CouponType = "percentage"
	// CouponFixed takes a fixed amount off the subtotal.
	CouponFixed CouponType = "fixed"
)

// Coupon is a named discount rule.
type Coupon struct {
	Code          string
	Type          CouponType
	Value         decimal.Decimal
	MinOrderValue decimal.Decimal
	Active        bool
	Description   string
}

// ShippingTier maps the cart value range [Min, Max) to a flat shipping charge.
// An invalid Max means the tier has no upper bound.
type ShippingTier struct {
	Min         decimal.Decimal
	Max         decimal.NullDecimal
	Charge      decimal.Decimal
	Description string
}

// Unbounded reports whether the tier has no upper edge.
func (t ShippingTier) Unbounded() bool {
	return !t.Max.Valid
}

// Contains reports whether amount falls in [Min, Max).
func (t ShippingTier) Contains(amount decimal.Decimal) bool {
	if amount.LessThan(t.Min) {
		return false
	}
	return t.Unbounded() || amount.LessThan(t.Max.Decimal)
}

// CODPolicy configures the cash-on-delivery surcharge.
type CODPolicy struct {
	Enabled       bool
	UsePercentage bool
	FixedCharge   decimal.Decimal
	Percentage    decimal.Decimal
	// MaxOrderValue is the largest subtotal eligible for COD.
	MaxOrderValue decimal.Decimal
}

// Config is the complete rule set used by a calculation. A Config must not be
// modified once it has been handed to Rules.
type Config struct {
	TaxEnabled bool
	TaxRate    decimal.Decimal

	ShippingEnabled bool
	ShippingTiers   []ShippingTier

	COD CODPolicy

	// Coupons is keyed by normalized code, see NormalizeCode.
	Coupons map[string]Coupon
}

// NormalizeCode returns the canonical form of a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Coupon looks up a coupon by code.
func (c *Config) Coupon(code string) (Coupon, bool) {
	cp, ok := c.Coupons[NormalizeCode(code)]
	return cp, ok
}

// MaxQuantity bounds the quantity of a single line so that line and order
// totals stay within the stored NUMERIC precision.
const MaxQuantity = 10_000

// LineItem is one requested cart line.
type LineItem struct {
	ProductID int64
	VariantID *int64
	Quantity  int
}

// PricedLine is a line item with the unit price resolved from the catalog.
type PricedLine struct {
	LineItem
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Breakdown is the itemized financial result of a calculation.
type Breakdown struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	COD      decimal.Decimal
	Total    decimal.Decimal
}

// AfterDiscount returns the subtotal minus the discount. It may be negative
// when a fixed coupon exceeds the subtotal.
func (b Breakdown) AfterDiscount() decimal.Decimal {
	return b.Subtotal.Sub(b.Discount)
}

// Request is the input of a full calculation.
type Request struct {
	Items         []LineItem
	PaymentMethod string
	CouponCode    string
}

// Quote is the output of a full calculation.
type Quote struct {
	Breakdown Breakdown
	Lines     []PricedLine
	// Coupon is the applied coupon, nil when no discount was applied.
	Coupon *Coupon
}

// IsCOD reports whether the payment method is cash on delivery.
func IsCOD(method string) bool {
	return strings.EqualFold(strings.TrimSpace(method), PaymentCOD)
}

var hundred = decimal.NewFromInt(100)

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func percentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return round2(amount.Mul(percent).Div(hundred))
}

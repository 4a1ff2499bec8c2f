package pricing

import (
	"github.com/shopspring/decimal"
)

// Tax returns the tax due on the discounted amount. Discounts reduce the
// taxable base. A negative base is taxed as zero.
func (c *Config) Tax(afterDiscount decimal.Decimal) decimal.Decimal {
	if !c.TaxEnabled || !afterDiscount.IsPositive() {
		return decimal.Zero
	}
	return percentOf(afterDiscount, c.TaxRate)
}

// Shipping returns the flat charge of the tier containing the raw subtotal.
// The second result is false when shipping is enabled but no tier matched, in
// which case the charge is zero.
func (c *Config) Shipping(subtotal decimal.Decimal) (decimal.Decimal, bool) {
	if !c.ShippingEnabled {
		return decimal.Zero, true
	}
	for _, t := range c.ShippingTiers {
		if t.Contains(subtotal) {
			return round2(t.Charge), true
		}
	}
	return decimal.Zero, false
}

// CODCharge returns the cash-on-delivery surcharge for the raw subtotal. It is
// zero for other payment methods or when COD is disabled, and an error when
// the subtotal exceeds the COD ceiling.
func (c *Config) CODCharge(subtotal decimal.Decimal, paymentMethod string) (decimal.Decimal, error) {
	if !IsCOD(paymentMethod) || !c.COD.Enabled {
		return decimal.Zero, nil
	}
	if subtotal.GreaterThan(c.COD.MaxOrderValue) {
		return decimal.Zero, &CodNotEligibleError{
			MaxOrderValue: c.COD.MaxOrderValue,
			Subtotal:      subtotal,
		}
	}
	if c.COD.UsePercentage {
		return percentOf(subtotal, c.COD.Percentage), nil
	}
	return round2(c.COD.FixedCharge), nil
}

package pricing

import (
	"github.com/go-faster/errors"
)

// Validate checks the structural invariants of the rule set: shipping tiers
// start at zero, are contiguous and end with a single unbounded tier, so that
// exactly one tier matches any non-negative subtotal.
func (c *Config) Validate() error {
	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThan(hundred) {
		return errors.Errorf("tax rate %s out of range [0, 100]", c.TaxRate)
	}
	if err := validateTiers(c.ShippingTiers); err != nil {
		if c.ShippingEnabled || len(c.ShippingTiers) > 0 {
			return errors.Wrap(err, "shipping tiers")
		}
	}
	if err := c.COD.validate(); err != nil {
		return errors.Wrap(err, "cod policy")
	}
	for key, cp := range c.Coupons {
		if key != NormalizeCode(cp.Code) {
			return errors.Errorf("coupon %q stored under key %q", cp.Code, key)
		}
		if err := cp.validate(); err != nil {
			return errors.Wrapf(err, "coupon %s", cp.Code)
		}
	}
	return nil
}

func validateTiers(tiers []ShippingTier) error {
	if len(tiers) == 0 {
		return errors.New("no tiers configured")
	}
	if !tiers[0].Min.IsZero() {
		return errors.Errorf("first tier must start at 0, starts at %s", tiers[0].Min)
	}
	last := len(tiers) - 1
	for i, t := range tiers {
		if t.Charge.IsNegative() {
			return errors.Errorf("tier %d: negative charge %s", i, t.Charge)
		}
		if t.Unbounded() {
			if i != last {
				return errors.Errorf("tier %d: only the last tier may be unbounded", i)
			}
			continue
		}
		if i == last {
			return errors.Errorf("tier %d: last tier must be unbounded", i)
		}
		if !t.Max.Decimal.GreaterThan(t.Min) {
			return errors.Errorf("tier %d: max %s must be greater than min %s", i, t.Max.Decimal, t.Min)
		}
		if next := tiers[i+1].Min; !next.Equal(t.Max.Decimal) {
			return errors.Errorf("tier %d: gap or overlap between %s and %s", i, t.Max.Decimal, next)
		}
	}
	return nil
}

func (p CODPolicy) validate() error {
	if !p.Enabled {
		return nil
	}
	if p.FixedCharge.IsNegative() || p.Percentage.IsNegative() {
		return errors.New("negative charge")
	}
	if p.UsePercentage && p.Percentage.GreaterThan(hundred) {
		return errors.Errorf("percentage %s above 100", p.Percentage)
	}
	if !p.MaxOrderValue.IsPositive() {
		return errors.New("max order value must be positive")
	}
	return nil
}

func (cp Coupon) validate() error {
	if cp.Code == "" {
		return errors.New("empty code")
	}
	if !cp.Value.IsPositive() {
		return errors.Errorf("value %s must be positive", cp.Value)
	}
	if cp.MinOrderValue.IsNegative() {
		return errors.Errorf("negative minimum order value %s", cp.MinOrderValue)
	}
	switch cp.Type {
	case CouponPercentage:
		if cp.Value.GreaterThan(hundred) {
			return errors.Errorf("percentage %s above 100", cp.Value)
		}
	case CouponFixed:
	default:
		return errors.Errorf("unsupported coupon type %q", cp.Type)
	}
	return nil
}

// Overshoots reports whether a fixed coupon can exceed the smallest subtotal it
// accepts, which would push the discounted amount below zero.
func (cp Coupon) Overshoots() bool {
	return cp.Type == CouponFixed && cp.Value.GreaterThan(cp.MinOrderValue)
}

package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShippingTiers_Partition(t *testing.T) {
	cfg := storeConfig()
	require.NoError(t, cfg.Validate())

	for cents := int64(0); cents <= 40_000; cents += 7 {
		subtotal := decimal.New(cents, -2)

		matches := 0
		for _, tier := range cfg.ShippingTiers {
			if tier.Contains(subtotal) {
				matches++
			}
		}
		require.Equal(t, 1, matches, "subtotal %s matched %d tiers", subtotal, matches)
	}
}

func TestShipping_BoundaryBelongsToUpperTier(t *testing.T) {
	cfg := storeConfig()

	tests := []struct {
		subtotal string
		want     string
	}{
		{"0", "90"},
		{"99.99", "90"},
		{"100", "60"},
		{"199.99", "60"},
		{"200", "30"},
		{"299.99", "30"},
		{"300", "0"},
		{"1000000", "0"},
	}
	for _, tt := range tests {
		got, matched := cfg.Shipping(dec(tt.subtotal))
		assert.True(t, matched)
		assertDec(t, tt.want, got, "shipping for "+tt.subtotal)
	}
}

func TestShipping_Disabled(t *testing.T) {
	cfg := storeConfig()
	cfg.ShippingEnabled = false

	got, matched := cfg.Shipping(dec("10"))
	assert.True(t, matched)
	assert.True(t, got.IsZero())
}

func TestTax(t *testing.T) {
	cfg := storeConfig()
	assert.True(t, cfg.Tax(dec("260")).IsZero(), "disabled tax must be zero")

	cfg.TaxEnabled = true
	assertDec(t, "46.80", cfg.Tax(dec("260")), "tax")
	assertDec(t, "0.02", cfg.Tax(dec("0.11")), "tax rounds to cents")
	assert.True(t, cfg.Tax(dec("-10")).IsZero(), "negative base")
}

func TestDiscount_Percentage(t *testing.T) {
	cfg := storeConfig()

	amount, cp, err := cfg.Discount(dec("333.33"), "WELCOME10")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assertDec(t, "33.33", amount, "discount")
}

func TestDiscount_NoCode(t *testing.T) {
	amount, cp, err := storeConfig().Discount(dec("500"), "   ")
	require.NoError(t, err)
	assert.Nil(t, cp)
	assert.True(t, amount.IsZero())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "tax above 100",
			mutate:  func(c *Config) { c.TaxRate = dec("101") },
			wantErr: "tax rate",
		},
		{
			name:    "first tier above zero",
			mutate:  func(c *Config) { c.ShippingTiers[0].Min = dec("1") },
			wantErr: "first tier must start at 0",
		},
		{
			name:    "gap between tiers",
			mutate:  func(c *Config) { c.ShippingTiers[1].Min = dec("110") },
			wantErr: "gap or overlap",
		},
		{
			name:    "overlap between tiers",
			mutate:  func(c *Config) { c.ShippingTiers[1].Max = bound("250") },
			wantErr: "gap or overlap",
		},
		{
			name:    "bounded last tier",
			mutate:  func(c *Config) { c.ShippingTiers[3].Max = bound("1000") },
			wantErr: "last tier must be unbounded",
		},
		{
			name:    "unbounded middle tier",
			mutate:  func(c *Config) { c.ShippingTiers[1].Max = decimal.NullDecimal{} },
			wantErr: "only the last tier may be unbounded",
		},
		{
			name:    "negative charge",
			mutate:  func(c *Config) { c.ShippingTiers[2].Charge = dec("-1") },
			wantErr: "negative charge",
		},
		{
			name:    "shipping enabled without tiers",
			mutate:  func(c *Config) { c.ShippingTiers = nil },
			wantErr: "no tiers configured",
		},
		{
			name: "shipping disabled without tiers",
			mutate: func(c *Config) {
				c.ShippingEnabled = false
				c.ShippingTiers = nil
			},
		},
		{
			name:    "cod without ceiling",
			mutate:  func(c *Config) { c.COD.MaxOrderValue = decimal.Zero },
			wantErr: "max order value",
		},
		{
			name: "unknown coupon type",
			mutate: func(c *Config) {
				c.Coupons["BOGO"] = Coupon{Code: "BOGO", Type: "bogo", Value: dec("1"), Active: true}
			},
			wantErr: "unsupported coupon type",
		},
		{
			name: "percentage coupon above 100",
			mutate: func(c *Config) {
				c.Coupons["ALL"] = Coupon{Code: "ALL", Type: CouponPercentage, Value: dec("120"), Active: true}
			},
			wantErr: "above 100",
		},
		{
			name: "coupon under wrong key",
			mutate: func(c *Config) {
				c.Coupons["flat50"] = c.Coupons["FLAT50"]
			},
			wantErr: "stored under key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := storeConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCoupon_Overshoots(t *testing.T) {
	assert.False(t, Coupon{Type: CouponFixed, Value: dec("50"), MinOrderValue: dec("300")}.Overshoots())
	assert.True(t, Coupon{Type: CouponFixed, Value: dec("500"), MinOrderValue: dec("100")}.Overshoots())
	assert.False(t, Coupon{Type: CouponPercentage, Value: dec("100")}.Overshoots())
}

func TestRules_Replace(t *testing.T) {
	rules, err := NewRules(storeConfig())
	require.NoError(t, err)

	fixedNow := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rules.now = func() time.Time { return fixedNow }

	first := rules.Snapshot()
	assert.Equal(t, uint64(1), first.Version)

	next := storeConfig()
	next.TaxEnabled = true
	require.NoError(t, rules.Replace(next))

	snap := rules.Snapshot()
	assert.Equal(t, uint64(2), snap.Version)
	assert.Equal(t, fixedNow, snap.LoadedAt)
	assert.Same(t, next, rules.Current())

	bad := storeConfig()
	bad.ShippingTiers = bad.ShippingTiers[:2]
	require.Error(t, rules.Replace(bad))
	assert.Same(t, next, rules.Current(), "invalid config must not replace the active one")

	require.Error(t, rules.Replace(nil))
}

func TestNewRules_Invalid(t *testing.T) {
	cfg := storeConfig()
	cfg.TaxRate = dec("-5")

	rules, err := NewRules(cfg)
	require.Error(t, err)
	assert.Nil(t, rules)
}

// Package rules loads pricing rules from a YAML file, merges the coupon table
// stored in the database and keeps the active rule set fresh.
package rules

import (
	"io"
	"os"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/xenking/storefront/internal/domain/pricing"
)

// money decodes a YAML scalar such as 90, 49.99 or "0.10" into an exact
// decimal without passing through float64.
type money struct {
	decimal.Decimal
}

func (m *money) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: expected a number", node.Line)
	}
	d, err := decimal.NewFromString(node.Value)
	if err != nil {
		return errors.Wrapf(err, "line %d: parse %q", node.Line, node.Value)
	}
	m.Decimal = d
	return nil
}

type fileRules struct {
	Tax struct {
		Enabled bool  `yaml:"enabled"`
		Rate    money `yaml:"rate"`
	} `yaml:"tax"`
	Shipping struct {
		Enabled bool       `yaml:"enabled"`
		Tiers   []fileTier `yaml:"tiers"`
	} `yaml:"shipping"`
	COD struct {
		Enabled       bool  `yaml:"enabled"`
		UsePercentage bool  `yaml:"use_percentage"`
		FixedCharge   money `yaml:"fixed_charge"`
		Percentage    money `yaml:"percentage"`
		MaxOrderValue money `yaml:"max_order_value"`
	} `yaml:"cod"`
	Coupons []fileCoupon `yaml:"coupons"`
}

type fileTier struct {
	Min money `yaml:"min"`
	// Absent or null for the last, unbounded tier.
	Max         *money `yaml:"max"`
	Charge      money  `yaml:"charge"`
	Description string `yaml:"description"`
}

type fileCoupon struct {
	Code          string `yaml:"code"`
	Type          string `yaml:"type"`
	Value         money  `yaml:"value"`
	MinOrderValue money  `yaml:"min_order_value"`
	Active        *bool  `yaml:"active"`
	Description   string `yaml:"description"`
}

// Parse decodes a rules document. Unknown keys are rejected so that a typo
// does not silently disable a rule. The result is not validated.
func Parse(r io.Reader) (*pricing.Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f fileRules
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty rules document")
		}
		return nil, errors.Wrap(err, "decode rules")
	}

	cfg := &pricing.Config{
		TaxEnabled:      f.Tax.Enabled,
		TaxRate:         f.Tax.Rate.Decimal,
		ShippingEnabled: f.Shipping.Enabled,
		ShippingTiers:   make([]pricing.ShippingTier, 0, len(f.Shipping.Tiers)),
		COD: pricing.CODPolicy{
			Enabled:       f.COD.Enabled,
			UsePercentage: f.COD.UsePercentage,
			FixedCharge:   f.COD.FixedCharge.Decimal,
			Percentage:    f.COD.Percentage.Decimal,
			MaxOrderValue: f.COD.MaxOrderValue.Decimal,
		},
		Coupons: make(map[string]pricing.Coupon, len(f.Coupons)),
	}

	for _, t := range f.Shipping.Tiers {
		tier := pricing.ShippingTier{
			Min:         t.Min.Decimal,
			Charge:      t.Charge.Decimal,
			Description: t.Description,
		}
		if t.Max != nil {
			tier.Max = decimal.NewNullDecimal(t.Max.Decimal)
		}
		cfg.ShippingTiers = append(cfg.ShippingTiers, tier)
	}

	for _, c := range f.Coupons {
		code := pricing.NormalizeCode(c.Code)
		if _, dup := cfg.Coupons[code]; dup {
			return nil, errors.Errorf("coupon %s listed twice", code)
		}
		active := true
		if c.Active != nil {
			active = *c.Active
		}
		cfg.Coupons[code] = pricing.Coupon{
			Code:          code,
			Type:          pricing.CouponType(c.Type),
			Value:         c.Value.Decimal,
			MinOrderValue: c.MinOrderValue.Decimal,
			Active:        active,
			Description:   c.Description,
		}
	}

	return cfg, nil
}

// ParseFile reads and decodes the rules file at path.
func ParseFile(path string) (*pricing.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open rules file")
	}
	defer func() { _ = f.Close() }()

	cfg, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return cfg, nil
}

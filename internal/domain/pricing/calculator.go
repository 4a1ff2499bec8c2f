package pricing

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/catalog"
)

// Calculator prices carts against the catalog and the active rules. It keeps
// no per-call state and is safe for concurrent use.
type Calculator struct {
	catalog catalog.Repository
	rules   *Rules
}

// NewCalculator creates a Calculator reading prices from cat and rules from rules.
func NewCalculator(cat catalog.Repository, rules *Rules) *Calculator {
	return &Calculator{
		catalog: cat,
		rules:   rules,
	}
}

// Rules returns the rule holder used by the calculator.
func (c *Calculator) Rules() *Rules {
	return c.rules
}

// Calculate resolves the unit price of every line and computes the full
// breakdown. Any failure aborts the whole calculation.
func (c *Calculator) Calculate(ctx context.Context, req Request) (*Quote, error) {
	cfg := c.rules.Current()

	lines, subtotal, err := c.resolve(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	b, cp, err := Totals(ctx, cfg, subtotal, req.PaymentMethod, req.CouponCode)
	if err != nil {
		return nil, err
	}

	return &Quote{
		Breakdown: b,
		Lines:     lines,
		Coupon:    cp,
	}, nil
}

// resolve looks up the effective unit price of each line: the variant price
// when a variant is given, else the product's sale price, else its list price.
func (c *Calculator) resolve(ctx context.Context, items []LineItem) ([]PricedLine, decimal.Decimal, error) {
	products := make(map[int64]*catalog.Product, len(items))
	lines := make([]PricedLine, 0, len(items))
	subtotal := decimal.Zero

	for _, item := range items {
		if item.Quantity <= 0 || item.Quantity > MaxQuantity {
			return nil, decimal.Zero, &InvalidQuantityError{ProductID: item.ProductID, Quantity: item.Quantity}
		}

		p, ok := products[item.ProductID]
		if !ok {
			var err error
			p, err = c.catalog.GetProduct(ctx, item.ProductID)
			if err != nil {
				return nil, decimal.Zero, lookupError(err, "product", item.ProductID)
			}
			products[item.ProductID] = p
		}

		price := p.UnitPrice()
		if item.VariantID != nil {
			v, err := c.catalog.GetVariant(ctx, *item.VariantID)
			if err != nil {
				return nil, decimal.Zero, lookupError(err, "variant", *item.VariantID)
			}
			if v.ProductID != p.ID {
				return nil, decimal.Zero, &NotFoundError{Kind: "variant", ID: v.ID}
			}
			price = v.Price
		}

		lineTotal := round2(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		lines = append(lines, PricedLine{
			LineItem:  item,
			UnitPrice: price,
			LineTotal: lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	return lines, round2(subtotal), nil
}

func lookupError(err error, kind string, id int64) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return &NotFoundError{Kind: kind, ID: id}
	}
	return errors.Wrapf(err, "get %s %d", kind, id)
}

// Totals runs the pricing pipeline on an already resolved subtotal:
// discount on the subtotal, tax on the discounted amount, shipping and COD on
// the raw subtotal. It returns the breakdown and the applied coupon, if any.
func Totals(ctx context.Context, cfg *Config, subtotal decimal.Decimal, paymentMethod, couponCode string) (Breakdown, *Coupon, error) {
	lg := zctx.From(ctx)
	subtotal = round2(subtotal)

	discount, cp, err := cfg.Discount(subtotal, couponCode)
	if err != nil {
		return Breakdown{}, nil, err
	}
	if cp == nil && NormalizeCode(couponCode) != "" {
		lg.Warn("Unknown coupon code ignored", zap.String("coupon", couponCode))
	}

	afterDiscount := subtotal.Sub(discount)
	if afterDiscount.IsNegative() {
		lg.Warn("Discount exceeds subtotal",
			zap.String("coupon", couponCode),
			zap.Stringer("subtotal", subtotal),
			zap.Stringer("discount", discount),
		)
	}

	tax := cfg.Tax(afterDiscount)

	shipping, matched := cfg.Shipping(subtotal)
	if !matched {
		lg.Warn("No shipping tier matched subtotal, charging nothing", zap.Stringer("subtotal", subtotal))
	}

	cod, err := cfg.CODCharge(subtotal, paymentMethod)
	if err != nil {
		return Breakdown{}, nil, err
	}

	b := Breakdown{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Shipping: shipping,
		COD:      cod,
		Total:    round2(afterDiscount.Add(tax).Add(shipping).Add(cod)),
	}

	lg.Debug("Computed order totals",
		zap.Stringer("subtotal", b.Subtotal),
		zap.Stringer("discount", b.Discount),
		zap.Stringer("tax", b.Tax),
		zap.Stringer("shipping", b.Shipping),
		zap.Stringer("cod", b.COD),
		zap.Stringer("total", b.Total),
	)

	return b, cp, nil
}

package handler

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricing"
)

// cartRequest is the body of POST /api/quote and POST /api/orders.
type cartRequest struct {
	Customer      order.Customer
	Items         []pricing.LineItem
	PaymentMethod string
	CouponCode    string
}

func decodeCart(d *jx.Decoder) (cartRequest, error) {
	var req cartRequest
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "items":
			return decodeItems(d, &req.Items)
		case "payment_method":
			return decodeOptStr(d, &req.PaymentMethod)
		case "coupon_code":
			return decodeOptStr(d, &req.CouponCode)
		case "customer":
			return decodeCustomer(d, &req.Customer)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return cartRequest{}, errors.Wrap(err, "decode cart")
	}
	return req, nil
}

func decodeItems(d *jx.Decoder, items *[]pricing.LineItem) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.Arr(func(d *jx.Decoder) error {
		var it pricing.LineItem
		err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch string(key) {
			case "product_id":
				v, err := d.Int64()
				it.ProductID = v
				return err
			case "variant_id":
				if d.Next() == jx.Null {
					return d.Null()
				}
				v, err := d.Int64()
				it.VariantID = &v
				return err
			case "quantity":
				v, err := d.Int()
				it.Quantity = v
				return err
			default:
				return d.Skip()
			}
		})
		*items = append(*items, it)
		return err
	})
}

func decodeCustomer(d *jx.Decoder, c *order.Customer) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "name":
			return decodeOptStr(d, &c.Name)
		case "email":
			return decodeOptStr(d, &c.Email)
		case "phone":
			return decodeOptStr(d, &c.Phone)
		case "address":
			return decodeOptStr(d, &c.Address)
		default:
			return d.Skip()
		}
	})
}

func decodeStatus(d *jx.Decoder) (string, error) {
	var status string
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) == "status" {
			return decodeOptStr(d, &status)
		}
		return d.Skip()
	})
	return status, err
}

// decodeOptStr reads a string, treating null as empty.
func decodeOptStr(d *jx.Decoder, dst *string) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	v, err := d.Str()
	*dst = v
	return err
}

// encodeMoney writes d as a JSON number with exactly two decimals.
func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func moneyField(e *jx.Encoder, name string, d decimal.Decimal) {
	e.Field(name, func(e *jx.Encoder) { encodeMoney(e, d) })
}

func encodeBreakdown(e *jx.Encoder, b pricing.Breakdown) {
	e.Obj(func(e *jx.Encoder) {
		moneyField(e, "subtotal", b.Subtotal)
		moneyField(e, "discount_amount", b.Discount)
		moneyField(e, "tax_amount", b.Tax)
		moneyField(e, "shipping_amount", b.Shipping)
		moneyField(e, "cod_charges", b.COD)
		moneyField(e, "total_amount", b.Total)
	})
}

func encodeLine(e *jx.Encoder, productID int64, variantID *int64, qty int, unit, total decimal.Decimal) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("product_id", func(e *jx.Encoder) { e.Int64(productID) })
		e.Field("variant_id", func(e *jx.Encoder) {
			if variantID == nil {
				e.Null()
				return
			}
			e.Int64(*variantID)
		})
		e.Field("quantity", func(e *jx.Encoder) { e.Int(qty) })
		moneyField(e, "unit_price", unit)
		moneyField(e, "line_total", total)
	})
}

func encodeQuote(e *jx.Encoder, q *pricing.Quote) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("breakdown", func(e *jx.Encoder) { encodeBreakdown(e, q.Breakdown) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range q.Lines {
					encodeLine(e, l.ProductID, l.VariantID, l.Quantity, l.UnitPrice, l.LineTotal)
				}
			})
		})
		e.Field("coupon", func(e *jx.Encoder) {
			if q.Coupon == nil {
				e.Null()
				return
			}
			e.Obj(func(e *jx.Encoder) {
				e.Field("code", func(e *jx.Encoder) { e.Str(q.Coupon.Code) })
				e.Field("type", func(e *jx.Encoder) { e.Str(string(q.Coupon.Type)) })
				e.Field("description", func(e *jx.Encoder) { e.Str(q.Coupon.Description) })
			})
		})
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("customer", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("name", func(e *jx.Encoder) { e.Str(o.Customer.Name) })
				e.Field("email", func(e *jx.Encoder) { e.Str(o.Customer.Email) })
				e.Field("phone", func(e *jx.Encoder) { e.Str(o.Customer.Phone) })
				e.Field("address", func(e *jx.Encoder) { e.Str(o.Customer.Address) })
			})
		})
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(o.PaymentMethod) })
		e.Field("coupon_code", func(e *jx.Encoder) {
			if o.CouponCode == "" {
				e.Null()
				return
			}
			e.Str(o.CouponCode)
		})
		e.Field("breakdown", func(e *jx.Encoder) { encodeBreakdown(e, o.Breakdown) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					encodeLine(e, it.ProductID, it.VariantID, it.Quantity, it.UnitPrice, it.LineTotal)
				}
			})
		})
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
		e.Field("updated_at", func(e *jx.Encoder) { encodeTime(e, o.UpdatedAt) })
	})
}

// encodeRules writes the public view of the active rules. Coupons are left
// out so that codes cannot be enumerated.
func encodeRules(e *jx.Encoder, snap pricing.Snapshot) {
	cfg := snap.Config
	e.Obj(func(e *jx.Encoder) {
		e.Field("version", func(e *jx.Encoder) { e.UInt64(snap.Version) })
		e.Field("loaded_at", func(e *jx.Encoder) { encodeTime(e, snap.LoadedAt) })
		e.Field("tax", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("enabled", func(e *jx.Encoder) { e.Bool(cfg.TaxEnabled) })
				e.Field("rate", func(e *jx.Encoder) { encodeDecimal(e, cfg.TaxRate) })
			})
		})
		e.Field("shipping", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("enabled", func(e *jx.Encoder) { e.Bool(cfg.ShippingEnabled) })
				e.Field("tiers", func(e *jx.Encoder) {
					e.Arr(func(e *jx.Encoder) {
						for _, t := range cfg.ShippingTiers {
							encodeTier(e, t)
						}
					})
				})
			})
		})
		e.Field("cod", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("enabled", func(e *jx.Encoder) { e.Bool(cfg.COD.Enabled) })
				e.Field("use_percentage", func(e *jx.Encoder) { e.Bool(cfg.COD.UsePercentage) })
				moneyField(e, "fixed_charge", cfg.COD.FixedCharge)
				e.Field("percentage", func(e *jx.Encoder) { encodeDecimal(e, cfg.COD.Percentage) })
				moneyField(e, "max_order_value", cfg.COD.MaxOrderValue)
			})
		})
	})
}

func encodeTier(e *jx.Encoder, t pricing.ShippingTier) {
	e.Obj(func(e *jx.Encoder) {
		moneyField(e, "min", t.Min)
		e.Field("max", func(e *jx.Encoder) {
			if t.Unbounded() {
				e.Null()
				return
			}
			encodeMoney(e, t.Max.Decimal)
		})
		moneyField(e, "charge", t.Charge)
		e.Field("description", func(e *jx.Encoder) { e.Str(t.Description) })
	})
}

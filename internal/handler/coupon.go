package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/pricing"
)

// ListCoupons returns every stored coupon, including inactive ones.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.List(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("coupons", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, c := range coupons {
						encodeCoupon(e, c)
					}
				})
			})
			e.Field("count", func(e *jx.Encoder) { e.Int(len(coupons)) })
		})
	})
}

// UpsertCoupon stores one coupon and reloads the pricing rules so that it
// applies to the next quote. If the reload is rejected the coupon stays
// stored and the previous rules keep serving.
func (h *Handler) UpsertCoupon(w http.ResponseWriter, r *http.Request) {
	var c pricing.Coupon
	if err := readBody(w, r, func(d *jx.Decoder) (err error) {
		c, err = decodeCoupon(d)
		return err
	}); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	c.Code = pricing.NormalizeCode(c.Code)
	check := pricing.Config{Coupons: map[string]pricing.Coupon{c.Code: c}}
	if err := check.Validate(); err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.coupons.Upsert(r.Context(), []pricing.Coupon{c}); err != nil {
		fail(w, r, err)
		return
	}

	snap, err := h.reloader.Reload(r.Context())
	if err != nil {
		reloadFailed(w, snap, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("coupon", func(e *jx.Encoder) { encodeCoupon(e, c) })
			e.Field("version", func(e *jx.Encoder) { e.UInt64(snap.Version) })
		})
	})
}

// decodeCoupon reads a coupon body. Coupons are active unless the body says
// otherwise.
func decodeCoupon(d *jx.Decoder) (pricing.Coupon, error) {
	c := pricing.Coupon{Active: true}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "code":
			return decodeOptStr(d, &c.Code)
		case "type":
			var v string
			err := decodeOptStr(d, &v)
			c.Type = pricing.CouponType(v)
			return err
		case "value":
			return decodeDecimal(d, &c.Value)
		case "min_order_value":
			return decodeDecimal(d, &c.MinOrderValue)
		case "active":
			v, err := d.Bool()
			c.Active = v
			return err
		case "description":
			return decodeOptStr(d, &c.Description)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return pricing.Coupon{}, errors.Wrap(err, "decode coupon")
	}
	return c, nil
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder, dst *decimal.Decimal) error {
	raw, err := d.Raw()
	if err != nil {
		return err
	}
	return dst.UnmarshalJSON(raw)
}

func encodeCoupon(e *jx.Encoder, c pricing.Coupon) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("type", func(e *jx.Encoder) { e.Str(string(c.Type)) })
		e.Field("value", func(e *jx.Encoder) { encodeDecimal(e, c.Value) })
		moneyField(e, "min_order_value", c.MinOrderValue)
		e.Field("active", func(e *jx.Encoder) { e.Bool(c.Active) })
		e.Field("description", func(e *jx.Encoder) { e.Str(c.Description) })
	})
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/catalog"
)

// ListProducts returns the catalog with variants, optionally narrowed by
// ?category_id=.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	var categoryID int64
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			badRequest(w, "category_id must be a positive integer")
			return
		}
		categoryID = v
	}

	products, err := h.catalog.List(r.Context(), categoryID)
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("products", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for i := range products {
						encodeListing(e, &products[i])
					}
				})
			})
			e.Field("count", func(e *jx.Encoder) { e.Int(len(products)) })
		})
	})
}

func encodeListing(e *jx.Encoder, l *catalog.Listing) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(l.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(l.Description) })
		moneyField(e, "price", l.Price)
		e.Field("sale_price", func(e *jx.Encoder) {
			if !l.SalePrice.Valid {
				e.Null()
				return
			}
			encodeMoney(e, l.SalePrice.Decimal)
		})
		moneyField(e, "unit_price", l.UnitPrice())
		e.Field("stock", func(e *jx.Encoder) { e.Int(l.Stock) })
		e.Field("category_id", func(e *jx.Encoder) {
			if l.CategoryID == 0 {
				e.Null()
				return
			}
			e.Int64(l.CategoryID)
		})
		e.Field("variants", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, v := range l.Variants {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Int64(v.ID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(v.Name) })
						moneyField(e, "price", v.Price)
					})
				}
			})
		})
	})
}

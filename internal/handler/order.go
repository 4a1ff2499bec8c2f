package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricing"
)

// Quote prices a cart against the active rules without placing an order.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := readBody(w, r, func(d *jx.Decoder) (err error) {
		req, err = decodeCart(d)
		return err
	}); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	q, err := h.orders.Quote(r.Context(), order.QuoteRequest{
		Items:         req.Items,
		PaymentMethod: req.PaymentMethod,
		CouponCode:    req.CouponCode,
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeQuote(e, q) })
}

// PlaceOrder prices and persists an order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := readBody(w, r, func(d *jx.Decoder) (err error) {
		req, err = decodeCart(d)
		return err
	}); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	o, err := h.orders.Place(r.Context(), order.PlaceOrderRequest{
		Customer:      req.Customer,
		Items:         req.Items,
		PaymentMethod: req.PaymentMethod,
		CouponCode:    req.CouponCode,
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/orders/"+o.ID)
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// ListOrders returns orders filtered by ?status=, ?search=, ?limit=, ?offset=.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter order.ListFilter
	if s := q.Get("status"); s != "" {
		st, err := order.ParseStatus(s)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		filter.Status = &st
	}
	filter.Search = q.Get("search")

	var ok bool
	if filter.Limit, ok = queryInt(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if filter.Offset, ok = queryInt(w, q.Get("offset"), "offset"); !ok {
		return
	}

	orders, err := h.orders.List(r.Context(), filter)
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("orders", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for i := range orders {
						encodeOrder(e, &orders[i])
					}
				})
			})
			e.Field("count", func(e *jx.Encoder) { e.Int(len(orders)) })
		})
	})
}

func queryInt(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		badRequest(w, name+" must be a non-negative integer")
		return 0, false
	}
	return v, true
}

// GetOrder returns one order with its items and breakdown.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// UpdateOrderStatus moves an order to the status given in the body.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var raw string
	if err := readBody(w, r, func(d *jx.Decoder) (err error) {
		raw, err = decodeStatus(d)
		return err
	}); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	status, err := order.ParseStatus(raw)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// PricingRules returns the public part of the active pricing rules.
func (h *Handler) PricingRules(w http.ResponseWriter, _ *http.Request) {
	snap := h.rules.Snapshot()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeRules(e, snap) })
}

// ReloadPricing reloads the rules file and stored coupons. On failure the
// previous rules stay active and the error is reported.
func (h *Handler) ReloadPricing(w http.ResponseWriter, r *http.Request) {
	snap, err := h.reloader.Reload(r.Context())
	if err != nil {
		reloadFailed(w, snap, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeReload(e, snap) })
}

// reloadFailed reports a rejected reload together with the version that is
// still serving.
func reloadFailed(w http.ResponseWriter, active pricing.Snapshot, err error) {
	writeJSON(w, http.StatusUnprocessableEntity, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusUnprocessableEntity) })
			e.Field("message", func(e *jx.Encoder) { e.Str(err.Error()) })
			e.Field("active_version", func(e *jx.Encoder) { e.UInt64(active.Version) })
		})
	})
}

func encodeReload(e *jx.Encoder, snap pricing.Snapshot) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("version", func(e *jx.Encoder) { e.UInt64(snap.Version) })
		e.Field("loaded_at", func(e *jx.Encoder) { encodeTime(e, snap.LoadedAt) })
		e.Field("coupons", func(e *jx.Encoder) { e.Int(len(snap.Config.Coupons)) })
	})
}

package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

const maxBodyBytes = 1 << 20

// OrderService is the order use-case surface exposed over HTTP.
type OrderService interface {
	Quote(ctx context.Context, req order.QuoteRequest) (*pricing.Quote, error)
	Place(ctx context.Context, req order.PlaceOrderRequest) (*order.Order, error)
	Get(ctx context.Context, id string) (*order.Order, error)
	List(ctx context.Context, filter order.ListFilter) ([]order.Order, error)
	UpdateStatus(ctx context.Context, id string, status order.Status) (*order.Order, error)
}

// RulesReloader re-reads the pricing rules on demand.
type RulesReloader interface {
	Reload(ctx context.Context) (pricing.Snapshot, error)
}

// CatalogLister lists products for the storefront.
type CatalogLister interface {
	List(ctx context.Context, categoryID int64) ([]catalog.Listing, error)
}

// CouponStore is the persistent coupon table behind the admin endpoints.
type CouponStore interface {
	List(ctx context.Context) ([]pricing.Coupon, error)
	Upsert(ctx context.Context, coupons []pricing.Coupon) error
}

var _ OrderService = (*order.Service)(nil)

// Handler serves the storefront JSON API.
type Handler struct {
	orders   OrderService
	catalog  CatalogLister
	coupons  CouponStore
	rules    *pricing.Rules
	reloader RulesReloader
	security *SecurityHandler
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	orders OrderService,
	products CatalogLister,
	coupons CouponStore,
	rules *pricing.Rules,
	reloader RulesReloader,
	security *SecurityHandler,
) *Handler {
	return &Handler{
		orders:   orders,
		catalog:  products,
		coupons:  coupons,
		rules:    rules,
		reloader: reloader,
		security: security,
	}
}

// Register mounts the API routes on r under /api.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/quote", h.Quote)
		r.Post("/orders", h.PlaceOrder)
		r.Get("/pricing/rules", h.PricingRules)
		r.Get("/products", h.ListProducts)

		r.Group(func(r chi.Router) {
			r.Use(h.security.Require(auth.ScopeAdmin))

			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{id}", h.GetOrder)
			r.Patch("/orders/{id}/status", h.UpdateOrderStatus)
			r.Post("/admin/pricing/reload", h.ReloadPricing)
			r.Get("/admin/coupons", h.ListCoupons)
			r.Post("/admin/coupons", h.UpsertCoupon)
		})
	})
}

// readBody decodes the request body with fn, enforcing a size limit.
func readBody(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if len(body) == 0 {
		return errors.New("empty body")
	}
	return fn(jx.DecodeBytes(body))
}

func writeJSON(w http.ResponseWriter, code int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

func badRequest(w http.ResponseWriter, msg string) {
	httpmiddleware.WriteError(w, http.StatusBadRequest, msg)
}

// fail maps a domain error to its HTTP response. Business-rule messages are
// returned verbatim; anything unexpected is logged and hidden.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalid  *order.InvalidRequestError
		notFound *pricing.NotFoundError
		quantity *pricing.InvalidQuantityError
	)
	switch {
	case errors.Is(err, order.ErrEmptyItems),
		errors.As(err, &invalid),
		pricing.IsRejection(err):
		httpmiddleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &notFound), errors.As(err, &quantity):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, order.ErrNotFound):
		httpmiddleware.WriteError(w, http.StatusNotFound, err.Error())
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

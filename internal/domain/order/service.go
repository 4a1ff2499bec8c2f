package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/pricing"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500

	// MaxItems bounds the number of lines in one cart.
	MaxItems = 500
)

// ErrEmptyItems is returned when an order or quote has no line items.
var ErrEmptyItems = errors.New("items required")

// InvalidRequestError describes a request field that failed validation.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Pricer computes the financial breakdown for a cart.
type Pricer interface {
	Calculate(ctx context.Context, req pricing.Request) (*pricing.Quote, error)
}

// QuoteRequest holds the input for pricing a cart without placing an order.
type QuoteRequest struct {
	Items         []pricing.LineItem
	PaymentMethod string
	CouponCode    string
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	Customer      Customer
	Items         []pricing.LineItem
	PaymentMethod string `validate:"required,max=32"`
	CouponCode    string `validate:"max=64"`
}

// Service encapsulates order placement and administration.
type Service struct {
	pricer   Pricer
	orders   Repository
	validate *validator.Validate
	policy   *bluemonday.Policy
	tracer   trace.Tracer
	now      func() time.Time

	placed     metric.Int64Counter
	rejections metric.Int64Counter
}

// NewService creates an order Service.
func NewService(
	pricer Pricer,
	orders Repository,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Service, error) {
	meter := mp.Meter("storefront/order")
	placed, err := meter.Int64Counter("storefront.orders.placed",
		metric.WithDescription("Orders successfully placed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders placed counter")
	}
	rejections, err := meter.Int64Counter("storefront.pricing.rejections",
		metric.WithDescription("Carts rejected by pricing rules"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "pricing rejections counter")
	}

	return &Service{
		pricer:     pricer,
		orders:     orders,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		policy:     bluemonday.StrictPolicy(),
		tracer:     tp.Tracer("storefront/order"),
		now:        time.Now,
		placed:     placed,
		rejections: rejections,
	}, nil
}

// Quote prices the cart against the current rules without persisting anything.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*pricing.Quote, error) {
	ctx, span := s.tracer.Start(ctx, "order.Quote")
	defer span.End()

	if err := checkItems(req.Items); err != nil {
		return nil, err
	}

	q, err := s.price(ctx, req.Items, req.PaymentMethod, req.CouponCode)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return q, nil
}

func checkItems(items []pricing.LineItem) error {
	switch {
	case len(items) == 0:
		return ErrEmptyItems
	case len(items) > MaxItems:
		return &InvalidRequestError{Field: "items", Reason: fmt.Sprintf("at most %d lines allowed", MaxItems)}
	}
	return nil
}

// Place validates the request, prices the cart and persists the order with
// its breakdown. Nothing is stored when any step fails.
func (s *Service) Place(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Place")
	defer span.End()

	if err := checkItems(req.Items); err != nil {
		return nil, err
	}
	req.Customer = s.sanitize(req.Customer)
	if err := s.check(req); err != nil {
		return nil, err
	}

	q, err := s.price(ctx, req.Items, req.PaymentMethod, req.CouponCode)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	now := s.now().UTC()
	o := &Order{
		ID:            uuid.New().String(),
		Customer:      req.Customer,
		PaymentMethod: strings.ToLower(strings.TrimSpace(req.PaymentMethod)),
		Status:        StatusPending,
		Breakdown:     q.Breakdown,
		Items:         make([]Item, len(q.Lines)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if q.Coupon != nil {
		o.CouponCode = q.Coupon.Code
	}
	for i, l := range q.Lines {
		o.Items[i] = Item{
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
		}
	}

	if err := s.orders.Create(ctx, o); err != nil {
		recordError(span, err)
		return nil, errors.Wrap(err, "create order")
	}

	span.SetAttributes(attribute.String("order.id", o.ID))
	s.placed.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", o.PaymentMethod)))
	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("payment_method", o.PaymentMethod),
		zap.Stringer("total", o.Breakdown.Total),
	)

	return o, nil
}

func (s *Service) price(ctx context.Context, items []pricing.LineItem, method, coupon string) (*pricing.Quote, error) {
	q, err := s.pricer.Calculate(ctx, pricing.Request{
		Items:         items,
		PaymentMethod: method,
		CouponCode:    coupon,
	})
	if err != nil {
		if reason := pricing.RejectionReason(err); reason != "" {
			s.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
			return nil, err
		}
		return nil, errors.Wrap(err, "calculate totals")
	}
	return q, nil
}

func (s *Service) sanitize(c Customer) Customer {
	return Customer{
		Name:    strings.TrimSpace(s.policy.Sanitize(c.Name)),
		Email:   strings.TrimSpace(c.Email),
		Phone:   strings.TrimSpace(s.policy.Sanitize(c.Phone)),
		Address: strings.TrimSpace(s.policy.Sanitize(c.Address)),
	}
}

func (s *Service) check(req PlaceOrderRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &InvalidRequestError{
			Field:  fieldName(fe.Namespace()),
			Reason: fmt.Sprintf("failed %q validation", fe.Tag()),
		}
	}
	return errors.Wrap(err, "validate request")
}

// fieldName turns "PlaceOrderRequest.Customer.Email" into "customer.email".
func fieldName(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		namespace = namespace[i+1:]
	}
	return strings.ToLower(namespace)
}

// Get returns a single order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.orders.Get(ctx, id)
}

// List returns orders matching filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	filter.Limit = min(filter.Limit, maxListLimit)
	filter.Offset = max(filter.Offset, 0)
	filter.Search = strings.TrimSpace(filter.Search)

	return s.orders.List(ctx, filter)
}

// UpdateStatus moves an order to a new status.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	status, err := ParseStatus(string(status))
	if err != nil {
		return nil, &InvalidRequestError{Field: "status", Reason: err.Error()}
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	o, err := s.orders.UpdateStatus(ctx, id, status, s.now().UTC())
	if err != nil {
		return nil, err
	}
	zctx.From(ctx).Info("Order status updated",
		zap.String("order_id", id),
		zap.String("status", string(status)),
	)
	return o, nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

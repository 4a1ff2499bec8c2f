package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/storefront/internal/domain/pricing"
)

// --- Mock implementations ---

type mockPricer struct {
	quote *pricing.Quote
	err   error
	last  pricing.Request
	calls int
}

func (m *mockPricer) Calculate(_ context.Context, req pricing.Request) (*pricing.Quote, error) {
	m.calls++
	m.last = req
	return m.quote, m.err
}

type mockOrderRepo struct {
	created []*Order
	byID    map[string]*Order
	filter  ListFilter
	err     error
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, o)
	return nil
}

func (m *mockOrderRepo) Get(_ context.Context, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) List(_ context.Context, filter ListFilter) ([]Order, error) {
	m.filter = filter
	return nil, m.err
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id string, status Status, at time.Time) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = at
	return o, nil
}

// --- Helpers ---

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleQuote() *pricing.Quote {
	return &pricing.Quote{
		Breakdown: pricing.Breakdown{
			Subtotal: dec("300"),
			Discount: dec("50"),
			Tax:      decimal.Zero,
			Shipping: decimal.Zero,
			COD:      dec("40"),
			Total:    dec("290"),
		},
		Lines: []pricing.PricedLine{
			{
				LineItem:  pricing.LineItem{ProductID: 1, Quantity: 2},
				UnitPrice: dec("150"),
				LineTotal: dec("300"),
			},
		},
		Coupon: &pricing.Coupon{Code: "FLAT50", Type: pricing.CouponFixed, Value: dec("50")},
	}
}

func newService(t *testing.T, pricer Pricer, repo Repository) *Service {
	t.Helper()
	svc, err := NewService(pricer, repo, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	return svc
}

func validRequest() PlaceOrderRequest {
	return PlaceOrderRequest{
		Customer: Customer{
			Name:    "Asha Rao",
			Email:   "asha@example.com",
			Phone:   "+91 98450 00000",
			Address: "12 MG Road, Bengaluru",
		},
		Items:         []pricing.LineItem{{ProductID: 1, Quantity: 2}},
		PaymentMethod: "COD",
		CouponCode:    "flat50",
	}
}

// --- Tests ---

func TestPlace_EmptyItems(t *testing.T) {
	repo := &mockOrderRepo{}
	pricer := &mockPricer{quote: sampleQuote()}
	svc := newService(t, pricer, repo)

	req := validRequest()
	req.Items = nil

	_, err := svc.Place(context.Background(), req)
	require.ErrorIs(t, err, ErrEmptyItems)
	assert.Zero(t, pricer.calls)
	assert.Empty(t, repo.created)
}

func TestPlace_TooManyItems(t *testing.T) {
	repo := &mockOrderRepo{}
	pricer := &mockPricer{quote: sampleQuote()}
	svc := newService(t, pricer, repo)

	req := validRequest()
	req.Items = make([]pricing.LineItem, MaxItems+1)
	for i := range req.Items {
		req.Items[i] = pricing.LineItem{ProductID: int64(i + 1), Quantity: 1}
	}

	_, err := svc.Place(context.Background(), req)
	var invalid *InvalidRequestError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "items", invalid.Field)
	assert.Zero(t, pricer.calls)
	assert.Empty(t, repo.created)

	_, err = svc.Quote(context.Background(), QuoteRequest{Items: req.Items})
	require.ErrorAs(t, err, &invalid)

	req.Items = req.Items[:MaxItems]
	_, err = svc.Place(context.Background(), req)
	require.NoError(t, err)
}

func TestPlace_PersistsBreakdown(t *testing.T) {
	repo := &mockOrderRepo{}
	pricer := &mockPricer{quote: sampleQuote()}
	svc := newService(t, pricer, repo)
	fixedNow := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixedNow }

	o, err := svc.Place(context.Background(), validRequest())
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Same(t, o, repo.created[0])

	_, err = uuid.Parse(o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "cod", o.PaymentMethod)
	assert.Equal(t, "FLAT50", o.CouponCode)
	assert.Equal(t, fixedNow, o.CreatedAt)
	assert.True(t, dec("290").Equal(o.Breakdown.Total))

	require.Len(t, o.Items, 1)
	assert.Equal(t, int64(1), o.Items[0].ProductID)
	assert.True(t, dec("150").Equal(o.Items[0].UnitPrice))

	assert.Equal(t, "COD", pricer.last.PaymentMethod)
	assert.Equal(t, "flat50", pricer.last.CouponCode)
}

func TestPlace_SanitizesCustomerText(t *testing.T) {
	repo := &mockOrderRepo{}
	svc := newService(t, &mockPricer{quote: sampleQuote()}, repo)

	req := validRequest()
	req.Customer.Name = "  <b>Asha</b> Rao<script>alert(1)</script> "
	req.Customer.Address = "<a href=\"http://x\">12 MG Road</a>"

	o, err := svc.Place(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", o.Customer.Name)
	assert.Equal(t, "12 MG Road", o.Customer.Address)
}

func TestPlace_Validation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *PlaceOrderRequest)
		wantField string
	}{
		{
			name:      "missing name",
			mutate:    func(r *PlaceOrderRequest) { r.Customer.Name = "" },
			wantField: "customer.name",
		},
		{
			name:      "markup only name",
			mutate:    func(r *PlaceOrderRequest) { r.Customer.Name = "<script>x</script>" },
			wantField: "customer.name",
		},
		{
			name:      "bad email",
			mutate:    func(r *PlaceOrderRequest) { r.Customer.Email = "not-an-email" },
			wantField: "customer.email",
		},
		{
			name:      "missing payment method",
			mutate:    func(r *PlaceOrderRequest) { r.PaymentMethod = "" },
			wantField: "paymentmethod",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockOrderRepo{}
			pricer := &mockPricer{quote: sampleQuote()}
			svc := newService(t, pricer, repo)

			req := validRequest()
			tt.mutate(&req)

			_, err := svc.Place(context.Background(), req)
			var invalid *InvalidRequestError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.wantField, invalid.Field)
			assert.Zero(t, pricer.calls)
			assert.Empty(t, repo.created)
		})
	}
}

func TestPlace_RejectionNotPersisted(t *testing.T) {
	rejection := &pricing.CouponMinimumNotMetError{
		Code:          "FLAT50",
		MinOrderValue: dec("300"),
		Subtotal:      dec("250"),
	}
	repo := &mockOrderRepo{}
	svc := newService(t, &mockPricer{err: rejection}, repo)

	_, err := svc.Place(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, "minimum order value of 300.00 required for FLAT50", err.Error())
	assert.Empty(t, repo.created)
}

func TestPlace_PricingFailureWrapped(t *testing.T) {
	repo := &mockOrderRepo{}
	svc := newService(t, &mockPricer{err: errors.New("connection reset")}, repo)

	_, err := svc.Place(context.Background(), validRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calculate totals")
	assert.Empty(t, repo.created)
}

func TestPlace_CreateError(t *testing.T) {
	svc := newService(t, &mockPricer{quote: sampleQuote()}, &mockOrderRepo{err: errors.New("db write failed")})

	_, err := svc.Place(context.Background(), validRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
}

func TestQuote(t *testing.T) {
	repo := &mockOrderRepo{}
	pricer := &mockPricer{quote: sampleQuote()}
	svc := newService(t, pricer, repo)

	q, err := svc.Quote(context.Background(), QuoteRequest{
		Items:         []pricing.LineItem{{ProductID: 1, Quantity: 2}},
		PaymentMethod: "card",
	})
	require.NoError(t, err)
	assert.True(t, dec("290").Equal(q.Breakdown.Total))
	assert.Equal(t, "card", pricer.last.PaymentMethod)
	assert.Empty(t, repo.created, "quote must not persist")

	_, err = svc.Quote(context.Background(), QuoteRequest{})
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestQuote_PassesRejectionThrough(t *testing.T) {
	rejection := &pricing.CodNotEligibleError{MaxOrderValue: dec("50000"), Subtotal: dec("62000")}
	svc := newService(t, &mockPricer{err: rejection}, &mockOrderRepo{})

	_, err := svc.Quote(context.Background(), QuoteRequest{
		Items:         []pricing.LineItem{{ProductID: 1, Quantity: 1}},
		PaymentMethod: "cod",
	})
	var codErr *pricing.CodNotEligibleError
	require.ErrorAs(t, err, &codErr)
}

func TestList_NormalizesFilter(t *testing.T) {
	tests := []struct {
		name       string
		in         ListFilter
		wantLimit  int
		wantOffset int
	}{
		{"defaults", ListFilter{}, 100, 0},
		{"capped", ListFilter{Limit: 10_000, Offset: 20}, 500, 20},
		{"negative offset", ListFilter{Limit: 5, Offset: -3}, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockOrderRepo{}
			svc := newService(t, &mockPricer{}, repo)

			_, err := svc.List(context.Background(), tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, repo.filter.Limit)
			assert.Equal(t, tt.wantOffset, repo.filter.Offset)
		})
	}
}

func TestGet_MalformedID(t *testing.T) {
	svc := newService(t, &mockPricer{}, &mockOrderRepo{})

	_, err := svc.Get(context.Background(), "42")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	id := uuid.NewString()
	repo := &mockOrderRepo{byID: map[string]*Order{
		id: {ID: id, Status: StatusPending},
	}}
	svc := newService(t, &mockPricer{}, repo)

	o, err := svc.UpdateStatus(context.Background(), id, StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, o.Status)

	o, err = svc.UpdateStatus(context.Background(), id, Status(" Delivered "))
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o.Status)
	assert.Equal(t, StatusDelivered, repo.byID[id].Status)

	_, err = svc.UpdateStatus(context.Background(), id, Status("Lost"))
	var invalid *InvalidRequestError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "status", invalid.Field)

	_, err = svc.UpdateStatus(context.Background(), uuid.NewString(), StatusDelivered)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" shipped ")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, st)

	_, err = ParseStatus("returned")
	require.Error(t, err)
}

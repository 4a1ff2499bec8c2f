package rules

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/pricing"
)

// CouponSource supplies coupons maintained outside the rules file.
type CouponSource interface {
	List(ctx context.Context) ([]pricing.Coupon, error)
}

// Loader builds a complete pricing configuration from the rules file and,
// optionally, a coupon source whose entries override file coupons with the
// same code.
type Loader struct {
	path    string
	coupons CouponSource
}

// NewLoader creates a Loader. coupons may be nil.
func NewLoader(path string, coupons CouponSource) *Loader {
	return &Loader{path: path, coupons: coupons}
}

// Load reads the rules file, merges stored coupons and validates the result.
func (l *Loader) Load(ctx context.Context) (*pricing.Config, error) {
	cfg, err := ParseFile(l.path)
	if err != nil {
		return nil, err
	}

	if l.coupons != nil {
		stored, err := l.coupons.List(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "list stored coupons")
		}
		for _, c := range stored {
			c.Code = pricing.NormalizeCode(c.Code)
			cfg.Coupons[c.Code] = c
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate rules")
	}
	for _, c := range cfg.Coupons {
		if c.Active && c.Overshoots() {
			zctx.From(ctx).Warn("Fixed coupon can exceed the order subtotal",
				zap.String("coupon", c.Code),
				zap.Stringer("value", c.Value),
				zap.Stringer("min_order_value", c.MinOrderValue),
			)
		}
	}
	return cfg, nil
}

// Reloader refreshes the active rules from a Loader, on demand and
// periodically.
type Reloader struct {
	loader   *Loader
	rules    *pricing.Rules
	interval time.Duration

	mu sync.Mutex
}

// NewReloader creates a Reloader. A non-positive interval disables periodic
// reloads; Reload still works.
func NewReloader(loader *Loader, rules *pricing.Rules, interval time.Duration) *Reloader {
	return &Reloader{
		loader:   loader,
		rules:    rules,
		interval: interval,
	}
}

// Reload loads a fresh rule set and activates it. When loading or validation
// fails the active rules are left untouched and the error is returned.
func (r *Reloader) Reload(ctx context.Context) (pricing.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, err := r.loader.Load(ctx)
	if err != nil {
		return r.rules.Snapshot(), errors.Wrap(err, "load rules")
	}
	if err := r.rules.Replace(cfg); err != nil {
		return r.rules.Snapshot(), errors.Wrap(err, "activate rules")
	}

	snap := r.rules.Snapshot()
	zctx.From(ctx).Info("Pricing rules loaded",
		zap.Uint64("version", snap.Version),
		zap.Int("coupons", len(cfg.Coupons)),
		zap.Int("shipping_tiers", len(cfg.ShippingTiers)),
	)
	return snap, nil
}

// Run reloads the rules every interval until ctx is done. Failed reloads are
// logged and retried on the next tick.
func (r *Reloader) Run(ctx context.Context) error {
	if r.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	lg := zctx.From(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Reload(ctx); err != nil {
				lg.Warn("Pricing rules reload failed, keeping previous rules", zap.Error(err))
			}
		}
	}
}

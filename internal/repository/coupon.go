package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/pricing"
)

const (
	listCouponsSQL = `SELECT code, discount_type, value, min_order_value, description, active
		FROM coupons ORDER BY code`

	upsertCouponSQL = `INSERT INTO coupons (code, discount_type, value, min_order_value, description, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO UPDATE SET discount_type = EXCLUDED.discount_type,
			value = EXCLUDED.value, min_order_value = EXCLUDED.min_order_value,
			description = EXCLUDED.description, active = EXCLUDED.active, updated_at = NOW()`
)

// CouponRepository stores the coupon table that is merged into the pricing
// rules on every load.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// List returns every stored coupon, active or not. Inactive rows are kept so
// that a coupon can be switched off without deleting it.
func (r *CouponRepository) List(ctx context.Context) ([]pricing.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// Upsert stores coupons in one batch, keyed by their normalized code.
func (r *CouponRepository) Upsert(ctx context.Context, coupons []pricing.Coupon) error {
	if len(coupons) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range coupons {
		batch.Queue(upsertCouponSQL,
			pricing.NormalizeCode(c.Code), string(c.Type), c.Value, c.MinOrderValue, c.Description, c.Active,
		)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting %d coupons: %w", len(coupons), err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (pricing.Coupon, error) {
	var (
		c     pricing.Coupon
		ctype string
	)
	err := row.Scan(&c.Code, &ctype, &c.Value, &c.MinOrderValue, &c.Description, &c.Active)
	c.Type = pricing.CouponType(ctype)
	return c, err
}

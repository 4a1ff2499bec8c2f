package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/catalog"
)

const (
	getProductSQL = `SELECT id, name, description, price, sale_price, stock, category_id
		FROM products WHERE id = $1`

	getVariantSQL = `SELECT id, product_id, name, price
		FROM product_variants WHERE id = $1`

	listProductsSQL = `SELECT id, name, description, price, sale_price, stock, category_id
		FROM products WHERE $1::bigint IS NULL OR category_id = $1 ORDER BY id`

	listVariantsSQL = `SELECT id, product_id, name, price
		FROM product_variants WHERE product_id = ANY($1) ORDER BY product_id, id`

	upsertProductSQL = `INSERT INTO products (id, name, description, price, sale_price, stock, category_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description,
			price = EXCLUDED.price, sale_price = EXCLUDED.sale_price, stock = EXCLUDED.stock,
			category_id = EXCLUDED.category_id, updated_at = NOW()`

	upsertVariantSQL = `INSERT INTO product_variants (id, product_id, name, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET product_id = EXCLUDED.product_id,
			name = EXCLUDED.name, price = EXCLUDED.price`

	// Explicit ids bypass the sequences, so move them past the seeded rows.
	syncCatalogSequencesSQL = `SELECT
		setval(pg_get_serial_sequence('products', 'id'), GREATEST((SELECT MAX(id) FROM products), 1)),
		setval(pg_get_serial_sequence('product_variants', 'id'), GREATEST((SELECT MAX(id) FROM product_variants), 1))`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetProduct returns a single product by its identifier.
func (r *CatalogRepository) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// GetVariant returns a single product variant by its identifier.
func (r *CatalogRepository) GetVariant(ctx context.Context, id int64) (*catalog.Variant, error) {
	rows, err := r.pool.Query(ctx, getVariantSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting variant %d: %w", id, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVariant)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting variant %d: %w", id, err)
	}
	return &v, nil
}

// List returns products ordered by id with their variants attached. A zero
// categoryID lists every category.
func (r *CatalogRepository) List(ctx context.Context, categoryID int64) ([]catalog.Listing, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL, nullableID(categoryID))
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	if len(products) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(products))
	listings := make([]catalog.Listing, len(products))
	index := make(map[int64]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
		listings[i].Product = p
		index[p.ID] = i
	}

	rows, err = r.pool.Query(ctx, listVariantsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("listing variants: %w", err)
	}
	variants, err := pgx.CollectRows(rows, scanVariant)
	if err != nil {
		return nil, fmt.Errorf("listing variants: %w", err)
	}
	for _, v := range variants {
		i := index[v.ProductID]
		listings[i].Variants = append(listings[i].Variants, v)
	}
	return listings, nil
}

// Upsert stores products and their variants in a single transaction.
func (r *CatalogRepository) Upsert(ctx context.Context, products []catalog.Product, variants []catalog.Variant) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range products {
			batch.Queue(upsertProductSQL,
				p.ID, p.Name, p.Description, p.Price, p.SalePrice, p.Stock, nullableID(p.CategoryID),
			)
		}
		for _, v := range variants {
			batch.Queue(upsertVariantSQL, v.ID, v.ProductID, v.Name, v.Price)
		}
		batch.Queue(syncCatalogSequencesSQL)

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upserting catalog: %w", err)
		}
		return nil
	})
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var (
		p          catalog.Product
		categoryID *int64
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.SalePrice, &p.Stock, &categoryID,
	)
	if categoryID != nil {
		p.CategoryID = *categoryID
	}
	return p, err
}

func scanVariant(row pgx.CollectableRow) (catalog.Variant, error) {
	var v catalog.Variant
	err := row.Scan(&v.ID, &v.ProductID, &v.Name, &v.Price)
	return v, err
}

func nullableID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

// Command seed-db applies the schema and loads a demo catalog, the default
// coupons and an admin API key.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/repository"
)

type variantJSON struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type productJSON struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Price       decimal.Decimal     `json:"price"`
	SalePrice   decimal.NullDecimal `json:"sale_price"`
	Stock       int                 `json:"stock"`
	CategoryID  int64               `json:"category_id"`
	Variants    []variantJSON       `json:"variants"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or STOREFRONT_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STOREFRONT_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("STOREFRONT_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or STOREFRONT_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("STOREFRONT_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, repository.NewCatalogRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedCoupons(ctx, repository.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedAPIKey(ctx, repository.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func readCatalog(path string) ([]catalog.Product, []catalog.Variant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read products file")
	}

	var doc struct {
		Products []productJSON `json:"products"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, errors.Wrap(err, "parse products JSON")
	}

	var (
		products = make([]catalog.Product, 0, len(doc.Products))
		variants []catalog.Variant
	)
	for _, p := range doc.Products {
		if !p.Price.IsPositive() {
			return nil, nil, errors.Errorf("product %d: price must be positive", p.ID)
		}
		products = append(products, catalog.Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			SalePrice:   p.SalePrice,
			Stock:       p.Stock,
			CategoryID:  p.CategoryID,
		})
		for _, v := range p.Variants {
			variants = append(variants, catalog.Variant{
				ID:        v.ID,
				ProductID: p.ID,
				Name:      v.Name,
				Price:     v.Price,
			})
		}
	}
	return products, variants, nil
}

func seedCatalog(ctx context.Context, repo *repository.CatalogRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	products, variants, err := readCatalog(productsFile)
	if err != nil {
		return err
	}

	slog.Info("upserting catalog",
		slog.Int("products", len(products)),
		slog.Int("variants", len(variants)),
	)
	return repo.Upsert(ctx, products, variants)
}

func defaultCoupons() []pricing.Coupon {
	return []pricing.Coupon{
		{
			Code:          "FLAT50",
			Type:          pricing.CouponFixed,
			Value:         decimal.NewFromInt(50),
			MinOrderValue: decimal.NewFromInt(300),
			Active:        true,
			Description:   "Flat 50 off orders of 300 or more",
		},
		{
			Code:        "WELCOME10",
			Type:        pricing.CouponPercentage,
			Value:       decimal.NewFromInt(10),
			Active:      false,
			Description: "10% off your first order",
		},
	}
}

func seedCoupons(ctx context.Context, repo *repository.CouponRepository) error {
	coupons := defaultCoupons()
	if err := repo.Upsert(ctx, coupons); err != nil {
		return err
	}
	for _, c := range coupons {
		slog.Info("upserted coupon", slog.String("code", c.Code), slog.Bool("active", c.Active))
	}
	return nil
}

func seedAPIKey(ctx context.Context, repo *repository.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	info := auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashKeyHex([]byte(pepper), apiKey),
		Name:    "Default admin key",
		Scopes:  []string{auth.ScopeAdmin},
	}
	if err := repo.Upsert(ctx, info); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", info.ID), slog.String("name", info.Name))
	return nil
}

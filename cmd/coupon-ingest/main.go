// Command coupon-ingest bulk-loads coupons from gzipped CSV exports. Codes
// that appear in more than one export are ambiguous and are skipped.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/repository"
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing coupon exports")
	flag.StringVar(&pattern, "pattern", "*.csv.gz", "glob pattern of export files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and deduplicate without writing to the database")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, filepath.Join(dataDir, pattern), databaseURL, dryRun); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, glob, databaseURL string, dryRun bool) error {
	files, err := filepath.Glob(glob)
	if err != nil {
		return errors.Wrap(err, "glob exports")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s", glob)
	}
	sort.Strings(files)

	slog.Info("ingesting coupon exports", slog.Int("files", len(files)))

	res, err := ingest(ctx, files)
	if err != nil {
		return err
	}

	slog.Info("coupons resolved",
		slog.Int("unique", len(res.Coupons)),
		slog.Int("ambiguous", len(res.Ambiguous)),
	)
	if len(res.Ambiguous) > 0 {
		slog.Warn("skipping codes found in more than one export", slog.Any("codes", sample(res.Ambiguous, 20)))
	}
	if dryRun || len(res.Coupons) == 0 {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := repository.NewCouponRepository(pool)
	for start := 0; start < len(res.Coupons); start += writeBatch {
		end := min(start+writeBatch, len(res.Coupons))
		if err := repo.Upsert(ctx, res.Coupons[start:end]); err != nil {
			return errors.Wrap(err, "write coupons")
		}
		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(res.Coupons)))
	}

	return nil
}

func sample(codes []string, n int) []string {
	if len(codes) <= n {
		return codes
	}
	return codes[:n]
}

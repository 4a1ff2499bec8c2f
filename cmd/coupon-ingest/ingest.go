package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"math/bits"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/pricing"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	writeBatch    = 500
	maxFiles      = bits.UintSize
)

// result is the outcome of ingesting a set of exports.
type result struct {
	// Coupons are the codes found in exactly one export, sorted by code.
	Coupons []pricing.Coupon
	// Ambiguous are codes present in two or more exports, sorted.
	Ambiguous []string
}

// fileScan holds what pass 2 learned about a single export.
type fileScan struct {
	coupons map[string]pricing.Coupon
	// shared marks codes that hit another export's bloom filter.
	shared map[string]uint
}

// ingest reads every export twice. Pass 1 builds one bloom filter per file;
// pass 2 parses rows and flags codes that test positive against any other
// file's filter. A code is ambiguous when at least two files flag it, which
// rules out single-sided bloom false positives.
func ingest(ctx context.Context, files []string) (*result, error) {
	if len(files) > maxFiles {
		return nil, errors.Errorf("too many exports: %d, max %d", len(files), maxFiles)
	}

	filters := make([]*bloom.BloomFilter, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			n := 0
			if err := streamExport(gctx, path, func(c pricing.Coupon) {
				filter.AddString(c.Code)
				n++
			}); err != nil {
				return errors.Wrapf(err, "index %s", path)
			}
			slog.Info("pass 1 complete", slog.String("file", path), slog.Int("rows", n))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scans := make([]fileScan, len(files))
	g, gctx = errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			scan := fileScan{
				coupons: make(map[string]pricing.Coupon),
				shared:  make(map[string]uint),
			}
			bit := uint(1) << uint(i)
			if err := streamExport(gctx, path, func(c pricing.Coupon) {
				scan.coupons[c.Code] = c
				for j, f := range filters {
					if j != i && f.TestString(c.Code) {
						scan.shared[c.Code] |= bit
						break
					}
				}
			}); err != nil {
				return errors.Wrapf(err, "scan %s", path)
			}
			slog.Info("pass 2 complete",
				slog.String("file", path),
				slog.Int("codes", len(scan.coupons)),
				slog.Int("candidates", len(scan.shared)),
			)
			scans[i] = scan
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return merge(scans)
}

func merge(scans []fileScan) (*result, error) {
	masks := make(map[string]uint)
	for _, s := range scans {
		for code, mask := range s.shared {
			masks[code] |= mask
		}
	}

	res := &result{}
	unique := make(map[string]pricing.Coupon)
	for _, s := range scans {
		for code, c := range s.coupons {
			if bits.OnesCount(masks[code]) >= 2 {
				continue
			}
			unique[code] = c
		}
	}
	for code, mask := range masks {
		if bits.OnesCount(mask) >= 2 {
			res.Ambiguous = append(res.Ambiguous, code)
		}
	}
	sort.Strings(res.Ambiguous)

	cfg := pricing.Config{Coupons: unique}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate coupons")
	}

	res.Coupons = make([]pricing.Coupon, 0, len(unique))
	for _, c := range unique {
		res.Coupons = append(res.Coupons, c)
	}
	sort.Slice(res.Coupons, func(i, j int) bool { return res.Coupons[i].Code < res.Coupons[j].Code })
	return res, nil
}

// streamExport decompresses a gzipped CSV export and calls fn for every
// coupon row. An optional header row starting with "code" is skipped.
func streamExport(ctx context.Context, path string, fn func(pricing.Coupon)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = 5
	r.TrimLeadingSpace = true
	r.ReuseRecord = true

	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read csv")
		}
		if line == 1 && strings.EqualFold(rec[0], "code") {
			continue
		}
		c, err := parseRow(rec)
		if err != nil {
			return errors.Wrapf(err, "line %d", line)
		}
		fn(c)
	}
}

// parseRow converts a code,type,value,min_order_value,active record.
func parseRow(rec []string) (pricing.Coupon, error) {
	code := pricing.NormalizeCode(rec[0])
	if code == "" {
		return pricing.Coupon{}, errors.New("empty code")
	}

	ctype := pricing.CouponType(strings.ToLower(strings.TrimSpace(rec[1])))
	if ctype != pricing.CouponPercentage && ctype != pricing.CouponFixed {
		return pricing.Coupon{}, errors.Errorf("coupon %s: unknown type %q", code, rec[1])
	}

	value, err := decimal.NewFromString(strings.TrimSpace(rec[2]))
	if err != nil {
		return pricing.Coupon{}, errors.Wrapf(err, "coupon %s: value", code)
	}

	minOrder := decimal.Zero
	if s := strings.TrimSpace(rec[3]); s != "" {
		if minOrder, err = decimal.NewFromString(s); err != nil {
			return pricing.Coupon{}, errors.Wrapf(err, "coupon %s: min_order_value", code)
		}
	}

	active := true
	if s := strings.TrimSpace(rec[4]); s != "" {
		if active, err = strconv.ParseBool(s); err != nil {
			return pricing.Coupon{}, errors.Wrapf(err, "coupon %s: active", code)
		}
	}

	return pricing.Coupon{
		Code:          code,
		Type:          ctype,
		Value:         value,
		MinOrderValue: minOrder,
		Active:        active,
	}, nil
}

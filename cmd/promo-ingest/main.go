// Command promo-ingest loads promo codes from gzip-compressed code lists.
// A code is accepted when it appears in at least --min-sources of the
// lists; accepted codes are upserted into the promo_codes table.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-checkout/internal/domain/coupon"
	"github.com/xenking/kart-checkout/internal/storage/postgres"
)

const (
	bloomFPR      = 0.001
	progressEvery = 10_000_000
	writeBatch    = 500
	maxSources    = 64
)

type options struct {
	pattern     string
	databaseURL string
	minSources  int
	capacity    uint
	minLen      int
	maxLen      int
	percent     decimal.Decimal
	minPurchase decimal.Decimal
	dryRun      bool
}

func main() {
	var (
		opts        options
		percent     string
		minPurchase string
	)
	flag.StringVar(&opts.pattern, "files", "data/promo*.gz", "glob of gzip-compressed code lists, one code per line")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&opts.minSources, "min-sources", 2, "lists a code must appear in to be accepted")
	flag.UintVar(&opts.capacity, "capacity", 50_000_000, "expected codes per list, sizes the bloom filters")
	flag.IntVar(&opts.minLen, "min-len", 5, "minimum code length")
	flag.IntVar(&opts.maxLen, "max-len", 12, "maximum code length")
	flag.StringVar(&percent, "percent", "10", "percentage discount granted by ingested codes")
	flag.StringVar(&minPurchase, "min-purchase", "0", "minimum purchase for ingested codes")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "report accepted codes without writing them")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := opts.parse(percent, minPurchase); err != nil {
		slog.Error("invalid flags", slog.String("error", err.Error()))
		os.Exit(2)
	}
	if err := run(ctx, opts); err != nil {
		slog.Error("promo ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promo ingest completed successfully")
}

func (o *options) parse(percent, minPurchase string) error {
	var err error
	if o.percent, err = decimal.NewFromString(percent); err != nil {
		return errors.Wrap(err, "percent")
	}
	if o.percent.Sign() <= 0 || o.percent.GreaterThan(decimal.NewFromInt(100)) {
		return errors.New("percent must be in (0, 100]")
	}
	if o.minPurchase, err = decimal.NewFromString(minPurchase); err != nil {
		return errors.Wrap(err, "min-purchase")
	}
	if o.minSources < 1 {
		return errors.New("min-sources must be at least 1")
	}
	if o.capacity == 0 {
		return errors.New("capacity must be positive")
	}
	if o.minLen < 1 || o.maxLen < o.minLen {
		return errors.New("code length bounds are inconsistent")
	}
	if !o.dryRun && o.databaseURL == "" {
		return errors.New("database URL is required: set --database-url or DATABASE_URL")
	}
	return nil
}

func (o *options) accepts(code string) bool {
	return len(code) >= o.minLen && len(code) <= o.maxLen
}

func run(ctx context.Context, opts options) error {
	files, err := filepath.Glob(opts.pattern)
	if err != nil {
		return errors.Wrap(err, "expand files")
	}
	if len(files) < opts.minSources {
		return errors.Errorf("%d files match %q, need at least %d", len(files), opts.pattern, opts.minSources)
	}
	if len(files) > maxSources {
		return errors.Errorf("at most %d files are supported, got %d", maxSources, len(files))
	}
	slices.Sort(files)

	slog.Info("indexing code lists", slog.Int("files", len(files)))
	filters, err := indexFiles(ctx, files, opts)
	if err != nil {
		return errors.Wrap(err, "index files")
	}

	slog.Info("matching codes across lists", slog.Int("min_sources", opts.minSources))
	codes, err := matchCodes(ctx, files, filters, opts)
	if err != nil {
		return errors.Wrap(err, "match codes")
	}
	slog.Info("codes accepted", slog.Int("count", len(codes)))

	if opts.dryRun || len(codes) == 0 {
		for _, c := range codes {
			slog.Info("accepted", slog.String("code", c))
		}
		return nil
	}

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	return writeRules(ctx, postgres.NewCouponRepository(pool), toRules(codes, opts))
}

// indexFiles builds one bloom filter per file, concurrently.
func indexFiles(ctx context.Context, files []string, opts options) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(opts.capacity, bloomFPR)
			n, err := eachCode(ctx, path, func(code string) {
				if opts.accepts(code) {
					filter.AddString(code)
				}
			})
			if err != nil {
				return errors.Wrapf(err, "index %s", path)
			}
			slog.Info("indexed", slog.String("file", path), slog.Uint64("lines", n))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// matchCodes rescans every file and records, per code, the set of lists
// whose filter reports it. Bloom false positives can only add sources, so
// a code is kept only if it was actually read from at least one list and
// the union of sources reaches minSources.
func matchCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter, opts options) ([]string, error) {
	found := make([]map[string]uint64, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			seen := make(map[string]uint64)
			self := uint64(1) << uint(i)
			_, err := eachCode(ctx, path, func(code string) {
				if !opts.accepts(code) {
					return
				}
				mask := self
				for j, f := range filters {
					if j != i && f.TestString(code) {
						mask |= uint64(1) << uint(j)
					}
				}
				if bits.OnesCount64(mask) >= opts.minSources {
					seen[code] |= self
				}
			})
			if err != nil {
				return errors.Wrapf(err, "match %s", path)
			}
			found[i] = seen
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint64)
	for _, seen := range found {
		for code, mask := range seen {
			merged[code] |= mask
		}
	}

	var codes []string
	for code, mask := range merged {
		if bits.OnesCount64(mask) >= opts.minSources {
			codes = append(codes, code)
		}
	}
	slices.Sort(codes)
	return codes, nil
}

// eachCode streams a gzip file line by line, upper-casing and trimming
// each code before calling fn. It returns the number of lines read.
func eachCode(ctx context.Context, path string, fn func(code string)) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrap(err, "gzip reader")
	}
	defer func() { _ = gz.Close() }()

	var n uint64
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		n++
		if n%progressEvery == 0 {
			slog.Info("progress", slog.String("file", path), slog.Uint64("lines", n))
		}
		if code := strings.ToUpper(strings.TrimSpace(scanner.Text())); code != "" {
			fn(code)
		}
	}
	if err := scanner.Err(); err != nil {
		return n, errors.Wrap(err, "scan")
	}
	return n, nil
}

func toRules(codes []string, opts options) []coupon.Rule {
	description := opts.percent.String() + "% off"
	if opts.minPurchase.IsPositive() {
		description += " orders over $" + opts.minPurchase.StringFixed(2)
	}
	rules := make([]coupon.Rule, len(codes))
	for i, code := range codes {
		rules[i] = coupon.Rule{
			Code:         code,
			DiscountType: coupon.DiscountPercentage,
			Value:        opts.percent,
			MinPurchase:  opts.minPurchase,
			Description:  description,
		}
	}
	return rules
}

type ruleWriter interface {
	Upsert(ctx context.Context, rules []coupon.Rule) error
}

func writeRules(ctx context.Context, repo ruleWriter, rules []coupon.Rule) error {
	for start := 0; start < len(rules); start += writeBatch {
		end := min(start+writeBatch, len(rules))
		if err := repo.Upsert(ctx, rules[start:end]); err != nil {
			return errors.Wrapf(err, "upsert codes %d-%d", start, end)
		}
		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(rules)))
	}
	return nil
}

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/tokyo-express/internal/domain"
	"github.com/xenking/tokyo-express/internal/domain/catalog"
	"github.com/xenking/tokyo-express/internal/storage"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 10_000
	maxLineSize   = 1 << 20
)

// productLine is one JSON Lines record. Category is a category slug.
type productLine struct {
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Composition string          `json:"composition"`
	Weight      string          `json:"weight"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Available   *bool           `json:"isAvailable"`
	Promoted    bool            `json:"isPromotion"`
	Discount    int             `json:"discountPercent"`
	Position    int             `json:"position"`
}

// record is a parsed line tagged with its origin for logging.
type record struct {
	file string
	line int
	p    productLine
}

func main() {
	_ = godotenv.Load()

	var (
		cfg     storage.Config
		pattern string
	)

	flag.StringVar(&cfg.Driver, "driver", envOr("TOKYO_STORAGE_DRIVER", storage.DriverPostgres), "storage backend: postgres or mongo")
	flag.StringVar(&cfg.DatabaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&cfg.MongoURI, "mongo-uri", "", "MongoDB connection URI (or MONGO_URI env)")
	flag.StringVar(&cfg.MongoDatabase, "mongo-database", envOr("TOKYO_STORAGE_MONGO_DATABASE", "tokyo"), "MongoDB database name")
	flag.StringVar(&pattern, "files", "data/products*.jsonl.gz", "glob of gzip-compressed JSON Lines product files")
	flag.Parse()

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = envOr("TOKYO_STORAGE_DATABASE_URL", os.Getenv("DATABASE_URL"))
	}
	if cfg.MongoURI == "" {
		cfg.MongoURI = envOr("TOKYO_STORAGE_MONGO_URI", os.Getenv("MONGO_URI"))
	}

	files := flag.Args()
	if len(files) == 0 {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			slog.Error("invalid files pattern", slog.String("error", err.Error()))
			os.Exit(1)
		}
		files = matches
	}
	if len(files) == 0 {
		slog.Error("no input files: pass them as arguments or set --files")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg, files); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func run(ctx context.Context, cfg storage.Config, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("opening storage", slog.String("driver", cfg.Driver))
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer func() { _ = store.Close(context.Background()) }()

	categories, err := store.Categories.List(ctx, catalog.CategoryFilter{})
	if err != nil {
		return errors.Wrap(err, "list categories")
	}
	categoryIDs := make(map[string]string, len(categories))
	for _, c := range categories {
		categoryIDs[c.Slug] = c.ID
	}

	imp := newImporter(store.Products, categoryIDs, bloomCapacity, bloomFPR)
	stats, err := imp.importFiles(ctx, files)
	if err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Int("files", len(files)),
		slog.Int("upserted", stats.upserted),
		slog.Int("duplicates", stats.duplicates),
		slog.Int("skipped", stats.skipped),
		slog.Int("lookups", stats.lookups),
	)
	return nil
}

type importStats struct {
	upserted   int
	duplicates int
	skipped    int
	// lookups counts bloom filter hits confirmed against storage.
	lookups int
}

// importer writes every product of a run with the same UpdatedAt stamp.
// Slugs are tracked only in a bloom filter: a miss is definitely new, a hit
// is a duplicate only if storage holds the slug with this run's stamp.
type importer struct {
	products    catalog.ProductRepository
	categoryIDs map[string]string
	seen        *bloom.BloomFilter
	now         func() time.Time
	runAt       time.Time
}

func newImporter(products catalog.ProductRepository, categoryIDs map[string]string, capacity uint, fpr float64) *importer {
	return &importer{
		products:    products,
		categoryIDs: categoryIDs,
		seen:        bloom.NewWithEstimates(capacity, fpr),
		now:         time.Now,
	}
}

// importedThisRun reports whether slug was already written by this run.
func (imp *importer) importedThisRun(ctx context.Context, slug string) (bool, error) {
	p, err := imp.products.GetBySlug(ctx, slug)
	if errors.Is(err, catalog.ErrProductNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "look up product %s", slug)
	}
	return p.UpdatedAt.Equal(imp.runAt), nil
}

// importFiles reads all files concurrently and upserts through a single
// writer. When a slug appears more than once, the first record to reach
// the writer wins.
func (imp *importer) importFiles(ctx context.Context, files []string) (importStats, error) {
	var stats importStats
	// Millisecond precision survives both backends unchanged.
	imp.runAt = imp.now().UTC().Truncate(time.Millisecond)
	records := make(chan record, 256)

	g, ctx := errgroup.WithContext(ctx)
	readers, rctx := errgroup.WithContext(ctx)
	for _, f := range files {
		readers.Go(func() error {
			return streamGzFile(rctx, f, func(line int, p productLine) error {
				select {
				case records <- record{file: f, line: line, p: p}:
					return nil
				case <-rctx.Done():
					return rctx.Err()
				}
			})
		})
	}
	g.Go(func() error {
		defer close(records)
		return readers.Wait()
	})
	g.Go(func() error {
		for rec := range records {
			if err := imp.write(ctx, rec, &stats); err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (imp *importer) write(ctx context.Context, rec record, stats *importStats) error {
	p := rec.p
	slug := catalog.NormalizeSlug(p.Slug)
	if slug == "" || strings.TrimSpace(p.Name) == "" || p.Price.IsNegative() ||
		domain.CheckAmount("price", p.Price) != nil {
		stats.skipped++
		slog.Warn("skipping invalid record", slog.String("file", rec.file), slog.Int("line", rec.line))
		return nil
	}
	categoryID, ok := imp.categoryIDs[strings.TrimSpace(p.Category)]
	if !ok {
		stats.skipped++
		slog.Warn("skipping record with unknown category",
			slog.String("file", rec.file),
			slog.Int("line", rec.line),
			slog.String("category", p.Category),
		)
		return nil
	}
	if imp.seen.TestAndAddString(slug) {
		stats.lookups++
		dup, err := imp.importedThisRun(ctx, slug)
		if err != nil {
			return err
		}
		if dup {
			stats.duplicates++
			return nil
		}
	}

	now := imp.runAt
	available := true
	if p.Available != nil {
		available = *p.Available
	}
	prod := &catalog.Product{
		Name:            strings.TrimSpace(p.Name),
		Slug:            slug,
		CategoryID:      categoryID,
		Description:     p.Description,
		Composition:     p.Composition,
		Weight:          p.Weight,
		Price:           domain.RoundAmount(p.Price),
		Image:           p.Image,
		Available:       available,
		Promoted:        p.Promoted,
		DiscountPercent: p.Discount,
		Position:        p.Position,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := imp.products.Upsert(ctx, prod); err != nil {
		return errors.Wrapf(err, "upsert product %s (%s:%d)", slug, rec.file, rec.line)
	}

	stats.upserted++
	if stats.upserted%progressEvery == 0 {
		slog.Info("import progress", slog.Int("upserted", stats.upserted))
	}
	return nil
}

// streamGzFile opens a gzip-compressed JSON Lines file and calls fn for
// each non-blank line. Malformed lines are logged and skipped.
func streamGzFile(ctx context.Context, path string, fn func(line int, p productLine) error) error {
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

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64<<10), maxLineSize)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var p productLine
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			slog.Warn("skipping malformed line",
				slog.String("file", path),
				slog.Int("line", line),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := fn(line, p); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

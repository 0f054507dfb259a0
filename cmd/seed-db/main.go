package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/xenking/tokyo-express/internal/domain"
	"github.com/xenking/tokyo-express/internal/domain/catalog"
	"github.com/xenking/tokyo-express/internal/domain/promotion"
	"github.com/xenking/tokyo-express/internal/domain/user"
	"github.com/xenking/tokyo-express/internal/storage"
)

type seedFile struct {
	Categories []struct {
		Slug     string `json:"slug"`
		Name     string `json:"name"`
		Position int    `json:"position"`
	} `json:"categories"`
	Products []struct {
		Name        string          `json:"name"`
		Slug        string          `json:"slug"`
		Category    string          `json:"category"`
		Price       decimal.Decimal `json:"price"`
		Weight      string          `json:"weight"`
		Composition string          `json:"composition"`
		Image       string          `json:"image"`
		Position    int             `json:"position"`
	} `json:"products"`
	Promotion *struct {
		Title           string          `json:"title"`
		Description     string          `json:"description"`
		DiscountPercent int             `json:"discountPercent"`
		MinOrderTotal   decimal.Decimal `json:"minOrderTotal"`
		Days            int             `json:"days"`
	} `json:"promotion"`
}

func main() {
	_ = godotenv.Load()

	var (
		cfg           storage.Config
		catalogFile   string
		adminLogin    string
		adminPassword string
	)

	flag.StringVar(&cfg.Driver, "driver", envOr("TOKYO_STORAGE_DRIVER", storage.DriverPostgres), "storage backend: postgres or mongo")
	flag.StringVar(&cfg.DatabaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&cfg.MongoURI, "mongo-uri", "", "MongoDB connection URI (or MONGO_URI env)")
	flag.StringVar(&cfg.MongoDatabase, "mongo-database", envOr("TOKYO_STORAGE_MONGO_DATABASE", "tokyo"), "MongoDB database name")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to the seed catalog JSON file")
	flag.StringVar(&adminLogin, "admin-login", "admin", "login of the seeded admin user")
	flag.StringVar(&adminPassword, "admin-password", "", "password of the seeded admin user (or TOKYO_SEED_ADMIN_PASSWORD env)")
	flag.Parse()

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = envOr("TOKYO_STORAGE_DATABASE_URL", os.Getenv("DATABASE_URL"))
	}
	if cfg.MongoURI == "" {
		cfg.MongoURI = envOr("TOKYO_STORAGE_MONGO_URI", os.Getenv("MONGO_URI"))
	}
	if cfg.Driver == storage.DriverPostgres && cfg.DatabaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if cfg.Driver == storage.DriverMongo && cfg.MongoURI == "" {
		slog.Error("mongo URI is required: set --mongo-uri or MONGO_URI")
		os.Exit(1)
	}
	if adminPassword == "" {
		adminPassword = os.Getenv("TOKYO_SEED_ADMIN_PASSWORD")
	}
	if adminPassword == "" {
		slog.Error("admin password is required: set --admin-password or TOKYO_SEED_ADMIN_PASSWORD")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg, catalogFile, adminLogin, adminPassword); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func run(ctx context.Context, cfg storage.Config, catalogFile, adminLogin, adminPassword string) error {
	slog.Info("opening storage", slog.String("driver", cfg.Driver))

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer func() { _ = store.Close(context.Background()) }()

	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	now := time.Now().UTC()

	categoryIDs, err := seedCategories(ctx, store, seed, now)
	if err != nil {
		return errors.Wrap(err, "seed categories")
	}
	if err := seedProducts(ctx, store, seed, categoryIDs, now); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedPromotion(ctx, store, seed, now); err != nil {
		return errors.Wrap(err, "seed promotion")
	}
	if err := seedAdmin(ctx, store, adminLogin, adminPassword); err != nil {
		return errors.Wrap(err, "seed admin")
	}
	return nil
}

func seedCategories(ctx context.Context, store *storage.Storage, seed seedFile, now time.Time) (map[string]string, error) {
	slog.Info("upserting categories", slog.Int("count", len(seed.Categories)))

	ids := make(map[string]string, len(seed.Categories))
	for _, c := range seed.Categories {
		cat := &catalog.Category{
			Name:      c.Name,
			Slug:      c.Slug,
			Position:  c.Position,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := store.Categories.Upsert(ctx, cat); err != nil {
			return nil, errors.Wrapf(err, "upsert category %s", c.Slug)
		}
		ids[c.Slug] = cat.ID

		slog.Info("upserted category", slog.String("slug", c.Slug), slog.String("id", cat.ID))
	}
	return ids, nil
}

func seedProducts(ctx context.Context, store *storage.Storage, seed seedFile, categoryIDs map[string]string, now time.Time) error {
	slog.Info("upserting products", slog.Int("count", len(seed.Products)))

	for _, p := range seed.Products {
		categoryID, ok := categoryIDs[p.Category]
		if !ok {
			slog.Warn("skipping product with unknown category",
				slog.String("slug", p.Slug),
				slog.String("category", p.Category),
			)
			continue
		}
		prod := &catalog.Product{
			Name:        p.Name,
			Slug:        p.Slug,
			CategoryID:  categoryID,
			Description: p.Composition,
			Composition: p.Composition,
			Weight:      p.Weight,
			Price:       p.Price,
			Image:       p.Image,
			Available:   true,
			Position:    p.Position,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := store.Products.Upsert(ctx, prod); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.Slug)
		}

		slog.Info("upserted product", slog.String("slug", p.Slug), slog.String("name", p.Name))
	}
	return nil
}

// seedPromotion creates the seed promotion unless one with the same title
// already exists.
func seedPromotion(ctx context.Context, store *storage.Storage, seed seedFile, now time.Time) error {
	if seed.Promotion == nil {
		return nil
	}
	existing, err := store.Promotions.ListAll(ctx)
	if err != nil {
		return errors.Wrap(err, "list promotions")
	}
	for _, p := range existing {
		if p.Title == seed.Promotion.Title {
			slog.Info("promotion already exists", slog.String("id", p.ID))
			return nil
		}
	}

	svc := promotion.NewService(store.Promotions)
	in := promotion.Input{
		Title:            seed.Promotion.Title,
		Description:      seed.Promotion.Description,
		DiscountPercent:  seed.Promotion.DiscountPercent,
		MinOrderSubtotal: seed.Promotion.MinOrderTotal,
		ActiveFrom:       &now,
		Enabled:          true,
	}
	if seed.Promotion.Days > 0 {
		to := now.AddDate(0, 0, seed.Promotion.Days)
		in.ActiveTo = &to
	}
	p, err := svc.Create(ctx, in)
	if err != nil {
		return err
	}

	slog.Info("created promotion", slog.String("id", p.ID), slog.String("title", p.Title))
	return nil
}

// seedAdmin creates the admin user if the login is free. An existing
// account keeps its password.
func seedAdmin(ctx context.Context, store *storage.Storage, login, password string) error {
	_, err := store.Users.GetByLogin(ctx, user.NormalizeLogin(login))
	switch {
	case err == nil:
		slog.Info("admin user already exists", slog.String("login", login))
		return nil
	case !errors.Is(err, domain.ErrNotFound):
		return errors.Wrap(err, "look up admin")
	}

	u, err := user.NewService(store.Users).Create(ctx, user.CreateInput{
		Login:    login,
		Password: password,
		Role:     user.RoleAdmin,
		Name:     "Администратор",
	})
	if err != nil {
		return err
	}

	slog.Info("created admin user", slog.String("id", u.ID), slog.String("login", u.Login))
	return nil
}

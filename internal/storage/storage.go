// Package storage opens the configured persistence backend and exposes its
// repositories behind the domain interfaces.
package storage

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/tokyo-express/internal/domain/catalog"
	"github.com/xenking/tokyo-express/internal/domain/order"
	"github.com/xenking/tokyo-express/internal/domain/promotion"
	"github.com/xenking/tokyo-express/internal/domain/user"
	mongostore "github.com/xenking/tokyo-express/internal/storage/mongo"
	"github.com/xenking/tokyo-express/internal/storage/postgres"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config selects and locates the backend.
type Config struct {
	Driver        string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string
}

// Storage is an open backend.
type Storage struct {
	Driver     string
	Categories catalog.CategoryRepository
	Products   catalog.ProductRepository
	Promotions promotion.Repository
	Orders     order.Repository
	Users      user.Repository

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

// Open connects to the backend named by cfg.Driver and prepares its schema:
// migrations for Postgres, indexes for MongoDB.
func Open(ctx context.Context, cfg Config) (*Storage, error) {
	switch cfg.Driver {
	case DriverPostgres, "":
		return openPostgres(ctx, cfg)
	case DriverMongo:
		return openMongo(ctx, cfg)
	default:
		return nil, errors.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg Config) (*Storage, error) {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	return &Storage{
		Driver:     DriverPostgres,
		Categories: postgres.NewCategoryRepository(pool),
		Products:   postgres.NewProductRepository(pool),
		Promotions: postgres.NewPromotionRepository(pool),
		Orders:     postgres.NewOrderRepository(pool),
		Users:      postgres.NewUserRepository(pool),
		ping:       pool.Ping,
		close: func(context.Context) error {
			pool.Close()
			return nil
		},
	}, nil
}

func openMongo(ctx context.Context, cfg Config) (*Storage, error) {
	client, err := mongostore.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, errors.Wrap(err, "connect mongo")
	}
	db := client.Database(cfg.MongoDatabase)
	if err := mongostore.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "ensure indexes")
	}
	return &Storage{
		Driver:     DriverMongo,
		Categories: mongostore.NewCategoryRepository(db),
		Products:   mongostore.NewProductRepository(db),
		Promotions: mongostore.NewPromotionRepository(db),
		Orders:     mongostore.NewOrderRepository(db),
		Users:      mongostore.NewUserRepository(db),
		ping:       mongostore.Ping(client),
		close:      client.Disconnect,
	}, nil
}

// Ping checks that the backend is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// Close releases the connections.
func (s *Storage) Close(ctx context.Context) error {
	return s.close(ctx)
}

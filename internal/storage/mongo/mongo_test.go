//go:build integration

package mongo

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/xenking/tokyo-express/internal/storage/storagetest"
)

var testClient *mongo.Client

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start mongo: %v", err)
	}
	defer func() { _ = container.Terminate(context.Background()) }()

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "27017/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	testClient, err = Connect(ctx, fmt.Sprintf("mongodb://%s:%s", host, port.Port()))
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer func() { _ = testClient.Disconnect(context.Background()) }()

	return m.Run()
}

func TestRepositories(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storagetest.Repos {
		ctx := context.Background()
		db := testClient.Database("tokyo_test")
		require.NoError(t, db.Drop(ctx))
		require.NoError(t, EnsureIndexes(ctx, db))
		// Indexes must be re-creatable on every start.
		require.NoError(t, EnsureIndexes(ctx, db))

		return storagetest.Repos{
			Categories: NewCategoryRepository(db),
			Products:   NewProductRepository(db),
			Promotions: NewPromotionRepository(db),
			Orders:     NewOrderRepository(db),
			Users:      NewUserRepository(db),
		}
	})
}

func TestDecimal128RoundTrip(t *testing.T) {
	for _, s := range []string{"0", "695", "2490.50", "0.01", "-150"} {
		d := decimal.RequireFromString(s)
		v, err := toDecimal128(d)
		require.NoError(t, err)
		back, err := fromDecimal128(v)
		require.NoError(t, err)
		assert.True(t, d.Equal(back), s)
	}
}

func TestSubstringEscapesPattern(t *testing.T) {
	assert.Equal(t, `100%\.\*`, substring("100%.*").Pattern)
	assert.Equal(t, "i", substring("x").Options)
}

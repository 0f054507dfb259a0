//go:build integration

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/tokyo-express/internal/domain/user"
	"github.com/xenking/tokyo-express/internal/storage"
)

const (
	adminLogin    = "admin"
	adminPassword = "admin123"
)

var (
	baseURL    string
	httpClient *http.Client
)

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "tokyo",
				"POSTGRES_PASSWORD": "tokyo",
				"POSTGRES_DB":       "tokyo",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() { _ = container.Terminate(context.Background()) }()

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	uploads, err := os.MkdirTemp("", "tokyo-uploads")
	if err != nil {
		log.Fatalf("uploads dir: %v", err)
	}
	defer func() { _ = os.RemoveAll(uploads) }()

	cfg := &Config{
		Storage: StorageConfig{
			Driver:      storage.DriverPostgres,
			DatabaseURL: fmt.Sprintf("postgres://tokyo:tokyo@%s:%s/tokyo?sslmode=disable", host, port.Port()),
		},
		Auth:      AuthConfig{JWTSecret: "integration-secret", TokenTTL: time.Hour},
		Pricing:   PricingConfig{DeliveryFee: "150"},
		Orders:    OrdersConfig{StrictStatusFlow: true, Timezone: "UTC"},
		Uploads:   UploadsConfig{Driver: "disk", Dir: uploads, MaxSize: 1 << 20},
		RateLimit: RateLimitConfig{RPS: 1000, Burst: 1000},
		CORS:      CORSConfig{Origins: []string{"http://shop.example.com"}},
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer func() { _ = store.Close(context.Background()) }()

	if _, err := user.NewService(store.Users).Create(ctx, user.CreateInput{
		Login:    adminLogin,
		Password: adminPassword,
		Role:     user.RoleAdmin,
		Name:     "Admin",
	}); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	srvCtx, stop := context.WithCancel(context.Background())
	defer stop()
	srv, err := newServer(srvCtx, cfg, store, noopTelemetry{})
	if err != nil {
		log.Fatalf("new server: %v", err)
	}
	defer func() { _ = srv.close(context.Background()) }()
	srv.health.Start(srvCtx, time.Second)
	defer srv.health.Stop()
	srv.health.SetReady(true)

	ts := httptest.NewServer(srv.handler)
	defer ts.Close()
	baseURL = ts.URL
	httpClient = &http.Client{Timeout: 10 * time.Second}

	return m.Run()
}

// HTTP helpers.

func do(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, baseURL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	require.NoError(t, err, "%s %s", method, path)
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func requireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, body)
	}
}

func login(t *testing.T) string {
	t.Helper()
	resp := do(t, http.MethodPost, "/api/auth/login", map[string]string{"login": adminLogin, "password": adminPassword}, "")
	requireStatus(t, resp, http.StatusOK)
	body := decodeJSON[struct {
		Token string `json:"token"`
	}](t, resp)
	require.NotEmpty(t, body.Token)
	return body.Token
}

type idResponse struct {
	ID string `json:"id"`
}

type orderResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Pricing struct {
		Subtotal        decimal.Decimal `json:"subtotal"`
		DeliveryFee     decimal.Decimal `json:"deliveryFee"`
		DiscountPercent int             `json:"discountPercent"`
		DiscountAmount  decimal.Decimal `json:"discountAmount"`
		Total           decimal.Decimal `json:"total"`
	} `json:"pricing"`
	Items []struct {
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
		Qty   int             `json:"qty"`
	} `json:"items"`
}

// --- Tests ---

func TestHealthEndpoints(t *testing.T) {
	for _, path := range []string{"/livez", "/readyz", "/api/health"} {
		resp := do(t, http.MethodGet, path, nil, "")
		requireStatus(t, resp, http.StatusOK)
		body := decodeJSON[struct {
			Status string `json:"status"`
		}](t, resp)
		assert.Equal(t, "ok", body.Status, path)
	}
}

func TestRequestIDAndCORS(t *testing.T) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, baseURL+"/api/catalog/categories", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "custom-request-id-12345")
	req.Header.Set("Origin", "http://shop.example.com")

	resp, err := httpClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "custom-request-id-12345", resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "http://shop.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Limit"))
}

func TestCheckoutFlow(t *testing.T) {
	token := login(t)

	resp := do(t, http.MethodPost, "/api/catalog/categories", map[string]any{"name": "Rolls", "slug": "e2e-rolls"}, token)
	requireStatus(t, resp, http.StatusCreated)
	category := decodeJSON[idResponse](t, resp)

	resp = do(t, http.MethodPost, "/api/catalog/products", map[string]any{
		"name":     "Philadelphia",
		"slug":     "e2e-philadelphia",
		"category": category.ID,
		"price":    1000,
	}, token)
	requireStatus(t, resp, http.StatusCreated)
	product := decodeJSON[idResponse](t, resp)

	resp = do(t, http.MethodPost, "/api/promotions", map[string]any{
		"title":           "20% from 2000",
		"discountPercent": 20,
		"minOrderTotal":   2000,
	}, token)
	requireStatus(t, resp, http.StatusCreated)
	_ = resp.Body.Close()

	cart := map[string]any{
		"items": []map[string]any{
			// The client price is ignored for catalog products.
			{"product": product.ID, "name": "Philadelphia", "price": 1, "qty": 3},
		},
		"mode":    "delivery",
		"address": map[string]any{"street": "Lenina", "house": "1"},
		"phone":   "+7 900 000 00 00",
	}

	resp = do(t, http.MethodPost, "/api/orders/quote", cart, "")
	requireStatus(t, resp, http.StatusOK)
	quote := decodeJSON[orderResponse](t, resp)
	assert.True(t, quote.Pricing.Subtotal.Equal(decimal.NewFromInt(3000)), quote.Pricing.Subtotal.String())
	assert.Equal(t, 20, quote.Pricing.DiscountPercent)
	assert.True(t, quote.Pricing.DiscountAmount.Equal(decimal.NewFromInt(600)))
	assert.True(t, quote.Pricing.DeliveryFee.Equal(decimal.NewFromInt(150)))
	assert.True(t, quote.Pricing.Total.Equal(decimal.NewFromInt(2550)))

	resp = do(t, http.MethodPost, "/api/orders", cart, "")
	requireStatus(t, resp, http.StatusCreated)
	placed := decodeJSON[orderResponse](t, resp)
	require.NotEmpty(t, placed.ID)
	assert.Equal(t, "new", placed.Status)
	assert.True(t, placed.Pricing.Total.Equal(decimal.NewFromInt(2550)))
	require.Len(t, placed.Items, 1)
	assert.True(t, placed.Items[0].Price.Equal(decimal.NewFromInt(1000)))

	resp = do(t, http.MethodGet, "/api/orders?status=new", nil, token)
	requireStatus(t, resp, http.StatusOK)
	listed := decodeJSON[[]orderResponse](t, resp)
	found := false
	for _, o := range listed {
		found = found || o.ID == placed.ID
	}
	assert.True(t, found, "placed order missing from staff list")

	// Strict flow: new cannot jump to done.
	resp = do(t, http.MethodPatch, "/api/orders/"+placed.ID+"/status", map[string]string{"status": "done"}, token)
	requireStatus(t, resp, http.StatusConflict)
	_ = resp.Body.Close()

	resp = do(t, http.MethodPatch, "/api/orders/"+placed.ID+"/status", map[string]string{"status": "accepted"}, token)
	requireStatus(t, resp, http.StatusOK)
	assert.Equal(t, "accepted", decodeJSON[orderResponse](t, resp).Status)

	resp = do(t, http.MethodGet, "/api/stats/today", nil, token)
	requireStatus(t, resp, http.StatusOK)
	stats := decodeJSON[struct {
		Today struct {
			Revenue     decimal.Decimal `json:"revenue"`
			OrdersCount int             `json:"ordersCount"`
		} `json:"today"`
		ActiveOrders []orderResponse `json:"activeOrders"`
	}](t, resp)
	assert.GreaterOrEqual(t, stats.Today.OrdersCount, 1)
	assert.True(t, stats.Today.Revenue.GreaterThanOrEqual(decimal.NewFromInt(2550)))
	assert.NotEmpty(t, stats.ActiveOrders)

	// A category with products cannot be deleted.
	resp = do(t, http.MethodDelete, "/api/catalog/categories/"+category.ID, nil, token)
	requireStatus(t, resp, http.StatusConflict)
	_ = resp.Body.Close()
}

func TestStaffRoutesRequireToken(t *testing.T) {
	for _, path := range []string{"/api/orders", "/api/users", "/api/stats/today", "/api/promotions/all"} {
		resp := do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		_ = resp.Body.Close()
	}
}

func TestUploadIsServed(t *testing.T) {
	token := login(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "sushi set.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("\x89PNG\r\n\x1a\nfake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, baseURL+"/api/upload/image", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := httpClient.Do(req)
	require.NoError(t, err)
	requireStatus(t, resp, http.StatusCreated)
	body := decodeJSON[struct {
		Path     string `json:"path"`
		Filename string `json:"filename"`
	}](t, resp)
	assert.Contains(t, body.Filename, "sushi_set-")
	require.Contains(t, body.Path, baseURL+"/uploads/")

	got, err := httpClient.Get(body.Path)
	require.NoError(t, err)
	defer func() { _ = got.Body.Close() }()
	assert.Equal(t, http.StatusOK, got.StatusCode)
}

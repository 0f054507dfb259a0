package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/tokyo-express/internal/domain/auth"
	"github.com/xenking/tokyo-express/internal/domain/catalog"
	"github.com/xenking/tokyo-express/internal/domain/order"
	"github.com/xenking/tokyo-express/internal/domain/pricing"
	"github.com/xenking/tokyo-express/internal/domain/promotion"
	"github.com/xenking/tokyo-express/internal/domain/user"
	"github.com/xenking/tokyo-express/internal/events"
	"github.com/xenking/tokyo-express/internal/handler"
	"github.com/xenking/tokyo-express/internal/media"
	"github.com/xenking/tokyo-express/internal/storage"
	"github.com/xenking/tokyo-express/pkg/health"
	"github.com/xenking/tokyo-express/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("uploads", cfg.Uploads.Driver),
	)

	store, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			lg.Warn("Close storage", zap.Error(err))
		}
	}()

	srv, err := newServer(ctx, cfg, store, m)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.close(closeCtx); err != nil {
			lg.Warn("Close event publisher", zap.Error(err))
		}
	}()

	srv.health.Start(ctx, 10*time.Second)
	srv.health.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           srv.handler,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		srv.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		srv.health.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// server is the fully wired HTTP surface. The caller starts health checks
// and calls close.
type server struct {
	handler   http.Handler
	health    *health.Health
	orders    *order.Service
	publisher events.Publisher
}

// close waits for pending order events, then closes the publisher.
func (s *server) close(ctx context.Context) error {
	flushErr := s.orders.Flush(ctx)
	return errors.Join(flushErr, s.publisher.Close())
}

func newServer(ctx context.Context, cfg *Config, store *storage.Storage, tel httpmiddleware.Telemetry) (*server, error) {
	healthSvc := health.New()
	healthSvc.AddReadinessCheck(store.Driver, 5*time.Second, store.Ping)
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc-pause", time.Second, health.GCMaxPauseCheck(time.Second))

	mediaStore, err := newMediaStore(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create media store")
	}
	if cfg.Uploads.Driver == "disk" {
		healthSvc.AddReadinessCheck("uploads-dir", time.Second, health.DirWritableCheck(cfg.Uploads.Dir))
	}

	// Domain services.
	fee, err := cfg.DeliveryFee()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokens([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	if err != nil {
		return nil, errors.Wrap(err, "create token issuer")
	}
	publisher := events.New(events.ParseBrokers(cfg.Events.Brokers), cfg.Events.Topic)
	catalogSvc := catalog.NewService(store.Categories, store.Products)
	promotionSvc := promotion.NewService(store.Promotions)
	engine := pricing.NewEngine(pricing.CatalogPrices(store.Products), promotionSvc, fee)
	orderSvc, err := order.NewService(engine, store.Orders,
		order.WithPublisher(publisher),
		order.WithPublishTimeout(cfg.Events.PublishTimeout),
		order.WithStrictStatusFlow(cfg.Orders.StrictStatusFlow),
		order.WithTracerProvider(tel.TracerProvider()),
		order.WithMeterProvider(tel.MeterProvider()),
		order.WithLocation(loc),
	)
	if err != nil {
		_ = publisher.Close()
		return nil, errors.Wrap(err, "create order service")
	}
	userSvc := user.NewService(store.Users)

	// HTTP handlers.
	hcfg := handler.Config{
		UploadsPublicURL: cfg.Uploads.PublicURL,
		MaxUploadSize:    cfg.Uploads.MaxSize,
	}
	if cfg.Uploads.Driver == "disk" {
		hcfg.UploadsDir = cfg.Uploads.Dir
	}
	router := handler.NewHandler(hcfg, handler.Deps{
		Catalog:    catalogSvc,
		Promotions: promotionSvc,
		Orders:     orderSvc,
		Users:      userSvc,
		Tokens:     tokens,
		Media:      mediaStore,
	}).Router()

	// Mux: health endpoints + API routes on one server.
	routeFinder := httpmiddleware.MakeRouteFinder(router)
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", router)

	h := httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Retry-After"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			RPS:        cfg.RateLimit.RPS,
			Burst:      cfg.RateLimit.Burst,
			TrustProxy: cfg.RateLimit.TrustProxy,
		}),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.RequestID(),
		httpmiddleware.Instrument("tokyo-api", routeFinder, tel),
		httpmiddleware.LogRequests(routeFinder),
		httpmiddleware.Labeler(routeFinder),
	)
	return &server{handler: h, health: healthSvc, orders: orderSvc, publisher: publisher}, nil
}

func newMediaStore(ctx context.Context, cfg *Config) (media.Store, error) {
	if cfg.Uploads.Driver != "s3" {
		disk, err := media.NewDiskStore(cfg.Uploads.Dir, "/uploads")
		if err != nil {
			return nil, err
		}
		return disk, nil
	}
	s3, err := media.NewS3Store(ctx, media.S3Config{
		Bucket:    cfg.Uploads.S3Bucket,
		Region:    cfg.Uploads.S3Region,
		Prefix:    cfg.Uploads.S3Prefix,
		Endpoint:  cfg.Uploads.S3Endpoint,
		PublicURL: cfg.Uploads.PublicURL,
	})
	if err != nil {
		return nil, err
	}
	return s3, nil
}

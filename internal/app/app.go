package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/controller"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/events"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/render"
	"github.com/xenking/storefront/internal/storage/memory"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/internal/storage/sqlite"
	"github.com/xenking/storefront/internal/upstream"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// snapshotStore is a cart snapshot backend that can report reachability.
type snapshotStore interface {
	cart.SnapshotRepository
	health.Pinger
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
	)

	store, closeStore, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer closeStore()

	publisher, err := newPublisher(cfg.Events)
	if err != nil {
		return errors.Wrap(err, "create event publisher")
	}
	defer publisher.Close()

	// Upstream catalog sources behind an instrumented client.
	client := &http.Client{
		Timeout: cfg.Sources.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}
	fetcher, err := upstream.NewFetcher(client, m.MeterProvider(),
		upstream.DummyJSON{Endpoint: cfg.Sources.DummyJSONURL},
		upstream.FakeStore{Endpoint: cfg.Sources.FakeStoreURL},
	)
	if err != nil {
		return errors.Wrap(err, "create fetcher")
	}

	// Stores and controller.
	ctrl := controller.New(
		fetcher,
		catalog.NewStore(),
		cart.Load(ctx, store, cfg.Storage.Key),
		publisher,
		controller.Config{
			Toast:              cfg.UI.ToastTiming(),
			BackToTopThreshold: cfg.UI.BackToTopThreshold,
			EventTimeout:       cfg.Events.Timeout,
		},
	)
	go func() {
		if err := ctrl.LoadCatalog(ctx); err == nil {
			lg.Info("Catalog loaded")
		}
	}()

	renderer, err := render.NewRenderer()
	if err != nil {
		return errors.Wrap(err, "create renderer")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("storage", 5*time.Second, health.PingCheck(store))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	handler.New(ctrl, renderer, handler.Options{
		ReloadGuard: httpmiddleware.Throttle(httpmiddleware.ThrottleConfig{
			Every: cfg.Reload.Every,
			Burst: cfg.Reload.Burst,
		}),
	}).Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Reload waits on both upstream sources.
		WriteTimeout:   cfg.Sources.Timeout + 10*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("storefront",
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
			httpmiddleware.LogRequests(),
			httpmiddleware.Gzip(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// openStorage returns the configured snapshot backend and its release func.
func openStorage(ctx context.Context, cfg StorageConfig) (snapshotStore, func(), error) {
	switch cfg.Driver {
	case DriverMemory:
		return memory.New(), func() {}, nil
	case DriverSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "run migrations")
		}
		return postgres.NewSnapshotRepository(pool), pool.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// newPublisher returns a Kafka publisher, or a no-op one when no brokers
// are configured.
func newPublisher(cfg EventsConfig) (events.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return events.Nop{}, nil
	}
	return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}

// Package app wires the service together and owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/minimart/order-service/internal/config"
	"github.com/minimart/order-service/internal/event"
	handlerhttp "github.com/minimart/order-service/internal/handler/http"
	"github.com/minimart/order-service/internal/inventory"
	"github.com/minimart/order-service/internal/repository/postgres"
	"github.com/minimart/order-service/internal/service"
	"github.com/minimart/order-service/migrations"
	"github.com/minimart/order-service/pkg/database"
	"github.com/minimart/order-service/pkg/health"
	"github.com/minimart/order-service/pkg/httpclient"
	"github.com/minimart/order-service/pkg/kafka"
	"github.com/minimart/order-service/pkg/tracing"
)

// App holds the wired service and its teardown order.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	pool     *pgxpool.Pool
	producer *kafka.Producer
	server   *http.Server

	shutdownTracing func(context.Context) error
}

// New builds the application: tracing, database (with migrations), Kafka
// producer, the inventory client behind a circuit breaker, the saga
// service and the HTTP server.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.TracingEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		SampleRatio: cfg.TracingSample,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	prometheus.MustRegister(database.NewPoolStatsCollector(pool, cfg.PostgresDatabase))

	producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.KafkaBrokers}, logger)
	events := event.NewProducer(producer, logger)

	// Reservation calls must be at-most-once: a conditional decrement is
	// not idempotent, so the client gets zero retries. The breaker fails
	// fast when the authority is down.
	baseClient := httpclient.New(httpclient.Config{
		Timeout:    cfg.ReservationTimeout,
		MaxRetries: 0,
	}, logger)
	breaker := httpclient.NewCircuitBreaker(baseClient, httpclient.BreakerConfig{
		Name:                "inventory-authority",
		MaxRequests:         cfg.BreakerMaxRequests,
		Interval:            cfg.BreakerInterval,
		Timeout:             cfg.BreakerTimeout,
		ConsecutiveFailures: cfg.BreakerConsecutiveFailures,
	}, logger)
	inventoryClient := inventory.NewClient(cfg.InventoryURL, breaker, logger)

	repo := postgres.NewOrderRepository(pool)
	orderService := service.NewOrderService(repo, inventoryClient, events, logger, cfg.ReservationTimeout)

	healthHandler := health.NewHandler(2 * time.Second)
	healthHandler.Register("postgres", true, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("kafka", false, producer.Ping)

	orderHandler := handlerhttp.NewOrderHandler(orderService, logger)
	router, err := handlerhttp.NewRouter(handlerhttp.RouterConfig{
		ServiceName:        cfg.ServiceName,
		RequestTimeout:     cfg.RequestTimeout,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		PprofAllowedCIDRs:  cfg.PprofAllowedCIDRs,
	}, orderHandler, healthHandler, logger)
	if err != nil {
		producer.Close()
		pool.Close()
		return nil, fmt.Errorf("build router: %w", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &App{
		cfg:             cfg,
		logger:          logger,
		pool:            pool,
		producer:        producer,
		server:          server,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
		return a.Shutdown()
	}
}

// Shutdown drains in-flight requests, then closes the producer, the pool
// and the tracer, in that order.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := a.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close kafka producer: %w", err))
	}
	a.pool.Close()
	if err := a.shutdownTracing(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	a.logger.Info("shutdown complete")
	return nil
}

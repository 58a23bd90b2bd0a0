package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fincore/xs2a-consent-gateway/internal/application/services"
	"github.com/fincore/xs2a-consent-gateway/internal/config"
	"github.com/fincore/xs2a-consent-gateway/internal/dispatch"
	"github.com/fincore/xs2a-consent-gateway/internal/idempotency"
	"github.com/fincore/xs2a-consent-gateway/internal/infrastructure/events"
	"github.com/fincore/xs2a-consent-gateway/internal/infrastructure/persistence/postgres"
	"github.com/fincore/xs2a-consent-gateway/internal/interfaces/rest"
	"github.com/fincore/xs2a-consent-gateway/internal/interfaces/rest/middleware"
	"github.com/fincore/xs2a-consent-gateway/internal/metrics"
	"github.com/fincore/xs2a-consent-gateway/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting consent gateway",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
		"idempotency_backend", cfg.Idempotency.Backend,
	)

	ctx := context.Background()
	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	consentRepo := postgres.NewConsentRepository(db)

	var store idempotency.Store
	if cfg.Idempotency.Backend == "postgres" {
		store = postgres.NewIdempotencyRepository(db, cfg.Idempotency.AccessExpiry(), cfg.Idempotency.ModifyExpiry())
	} else {
		store = idempotency.NewMemoryStore(cfg.Idempotency.AccessExpiry(), cfg.Idempotency.ModifyExpiry())
	}
	guard := idempotency.NewGuard(store, cfg.Idempotency.Wait(), logger)

	publisher := events.NewNoopPublisher()
	if cfg.Events.NatsURL != "" {
		p, err := events.NewNatsPublisher(cfg.Events.NatsURL, logger)
		if err != nil {
			logger.Error("failed to connect to nats, events disabled", "error", err)
		} else {
			publisher = p
			defer p.Close()
		}
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	hook := services.NewConsentStateChangeHook(consentRepo, publisher, logger)
	aggregator := services.NewAggregator(consentRepo, hook, m, logger)

	routes := services.NewRouteRegistry(consentRepo, aggregator, logger)
	facade := dispatch.NewFacade(routes, guard, m, logger)
	gateway := rest.NewServer(facade, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/", gateway)

	handler := middleware.Recovery(logger)(mux)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Metrics(m)(handler)
	handler = middleware.ClientID(cfg.Auth.TokenSecret, logger)(handler)
	handler = middleware.Timeout(cfg.Server.ReadTimeout)(handler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	evictionWorker := worker.NewEvictionWorker(
		store,
		cfg.Worker.Interval,
		cfg.Worker.BatchSize,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go evictionWorker.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}

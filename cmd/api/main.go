package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dejobratic/stockledger/internal/catalog"
	"github.com/dejobratic/stockledger/internal/config"
	"github.com/dejobratic/stockledger/internal/database"
	"github.com/dejobratic/stockledger/internal/identity"
	idemmemory "github.com/dejobratic/stockledger/internal/idempotency/memory"
	idempostgres "github.com/dejobratic/stockledger/internal/idempotency/postgres"
	"github.com/dejobratic/stockledger/internal/inventory"
	"github.com/dejobratic/stockledger/internal/kafka"
	"github.com/dejobratic/stockledger/internal/orders/adapters"
	httpadapter "github.com/dejobratic/stockledger/internal/orders/adapters/http"
	ordersmemory "github.com/dejobratic/stockledger/internal/orders/adapters/memory"
	orderspostgres "github.com/dejobratic/stockledger/internal/orders/adapters/postgres"
	ordersapp "github.com/dejobratic/stockledger/internal/orders/app"
	"github.com/dejobratic/stockledger/internal/orders/domain"
	ordersmetrics "github.com/dejobratic/stockledger/internal/orders/metrics"
	"github.com/dejobratic/stockledger/internal/orders/ports"
	"github.com/dejobratic/stockledger/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

type storage struct {
	tx    ports.Transactor
	idem  ports.IdempotencyStore
	ready func(context.Context) error
	close func()
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := telemetry.NewLogger(os.Stdout, cfg.Telemetry.SlogLevel(),
		slog.String("service", cfg.Service.Name),
		slog.String("version", cfg.Service.Version),
	)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Environment:    cfg.Service.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTelEndpoint,
		EnableTracing:  cfg.Telemetry.EnableTracing,
		EnableMetrics:  cfg.Telemetry.EnableMetrics,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	meter := otel.Meter(cfg.Service.Name)
	orderMetrics, err := ordersmetrics.NewMetrics(meter)
	if err != nil {
		return err
	}
	dbMetrics, err := database.NewMetrics(meter)
	if err != nil {
		return err
	}
	kafkaMetrics, err := kafka.NewMetrics(meter)
	if err != nil {
		return err
	}
	httpMetrics, err := httpadapter.NewMetrics(meter)
	if err != nil {
		return err
	}

	store, err := openStorage(ctx, cfg, meter, logger)
	if err != nil {
		return err
	}
	defer store.close()

	var events ports.EventBus = kafka.NewNoopEventBus(logger)
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(kafka.NewWriter(cfg.Kafka.Brokers))
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Error("kafka producer close failed", "error", err)
			}
		}()
		events = producer
		logger.Info("publishing order events to kafka", "brokers", cfg.Kafka.Brokers)
	}

	policy := domain.DefaultPolicy()
	if cfg.Orders.CustomerCancelPendingOnly {
		policy = domain.PendingOnlyPolicy()
	}

	tx := adapters.NewObservableTransactor(store.tx, dbMetrics)
	ledger := inventory.NewLedger()
	ordersService := ordersapp.NewService(
		tx,
		ledger,
		adapters.NewObservableEventBus(events, kafkaMetrics),
		store.idem,
		policy,
		logger,
		orderMetrics,
	)
	catalogService := catalog.NewService(tx, ledger, logger)

	apiMux := http.NewServeMux()
	httpadapter.NewHandler(ordersService, catalogService, logger).Register(apiMux)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.ready(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.Handle("/v1/", identity.Middleware(httpadapter.WithMetrics(apiMux, httpMetrics)))

	handler := otelhttp.NewHandler(
		httpadapter.WithRecovery(httpadapter.WithLogging(mux, logger), logger),
		"http-server",
		otelhttp.WithMeterProvider(otel.GetMeterProvider()),
		otelhttp.WithTracerProvider(otel.GetTracerProvider()),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "port", cfg.HTTP.Port, "storage", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config, meter metric.Meter, logger *slog.Logger) (*storage, error) {
	if cfg.Storage.Backend == config.StorageMemory {
		logger.Warn("using in-memory storage; data is lost on restart")
		return &storage{
			tx:    ordersmemory.NewStore(),
			idem:  idemmemory.NewStore(cfg.Storage.IdempotencyTTL),
			ready: func(context.Context) error { return nil },
			close: func() {},
		}, nil
	}

	if cfg.Database.AutoMigrate {
		logger.Info("running database migrations")
		if err := database.RunMigrations(cfg.Database.URL); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations completed successfully")
	}

	pool, err := database.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}
	if err := database.RegisterPoolStats(meter, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &storage{
		tx:   orderspostgres.NewStore(pool, cfg.Database.TxTimeout),
		idem: idempostgres.NewStore(pool, cfg.Storage.IdempotencyTTL),
		ready: func(ctx context.Context) error {
			return database.CheckHealth(ctx, pool)
		},
		close: pool.Close,
	}, nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Package main is the entry point for the game economy ledger server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sefa-b/game-economy/internal/api/middleware"
	v1 "github.com/sefa-b/game-economy/internal/api/v1"
	"github.com/sefa-b/game-economy/internal/cache"
	"github.com/sefa-b/game-economy/internal/config"
	"github.com/sefa-b/game-economy/internal/domain"
	"github.com/sefa-b/game-economy/internal/repository"
	"github.com/sefa-b/game-economy/internal/service"
	"github.com/sefa-b/game-economy/internal/utils"
	"github.com/sefa-b/game-economy/internal/worker"
)

const serviceName = "game-economy"

// caches groups the three repository caches. sweepers lists the ones that
// live in process and need the janitor.
type caches struct {
	transactions cache.Cache[domain.Namespace, domain.Transaction]
	currencies   cache.Cache[string, domain.Currency]
	subjects     cache.Cache[uuid.UUID, domain.Subject]
	sweepers     []cache.Sweeper
}

func newMemoryCaches(opts cache.Options) caches {
	tx := cache.NewMemory[domain.Namespace, domain.Transaction](opts)
	cur := cache.NewMemory[string, domain.Currency](opts)
	sub := cache.NewMemory[uuid.UUID, domain.Subject](opts)
	return caches{
		transactions: tx,
		currencies:   cur,
		subjects:     sub,
		sweepers:     []cache.Sweeper{tx, cur, sub},
	}
}

func newRedisCaches(client *redis.Client, prefix string, opts cache.Options) caches {
	return caches{
		transactions: cache.NewRedis[domain.Namespace, domain.Transaction](client, prefix+":tx:",
			func(ns domain.Namespace) string { return ns.Join() }, opts),
		currencies: cache.NewRedis[string, domain.Currency](client, prefix+":currency:",
			func(name string) string { return name }, opts),
		subjects: cache.NewRedis[uuid.UUID, domain.Subject](client, prefix+":subject:",
			func(id uuid.UUID) string { return id.String() }, opts),
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize structured logger
	utils.InitLogger(cfg.Environment, serviceName, cfg.LogLevel)

	// Initialize metrics collector
	metricsCollector := utils.NewMetricsCollector()

	ctx := context.Background()

	// Initialize distributed tracing
	if cfg.Tracing.Enabled {
		shutdownTracer, err := utils.InitTracer(ctx, serviceName, "1.0.0", cfg.Tracing.Endpoint)
		if err != nil {
			utils.Error("failed to initialize tracer", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer shutdownTracer()
	}

	// Open the store and bring the schema up to date
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := repository.Open(connectCtx, cfg.Database.Driver, cfg.Database.DSN(), repository.PoolConfig{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		cancel()
		utils.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := repository.Migrate(connectCtx, db); err != nil {
		cancel()
		db.Close()
		utils.Error("failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cancel()
	defer db.Close()

	// Initialize caches, falling back to memory when Redis is unreachable
	cacheOpts := cache.Options{IdleTTL: cfg.Cache.IdleTTL, MaxAge: cfg.Cache.MaxAge}
	c := newMemoryCaches(cacheOpts)
	if cfg.Cache.Backend == "redis" {
		client, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err != nil {
			utils.Warn("failed to connect to Redis, using in-memory cache", slog.String("error", err.Error()))
		} else {
			defer client.Close()
			c = newRedisCaches(client, cfg.Cache.Redis.Prefix, cacheOpts)
		}
	}

	// Initialize repositories and services
	policy := repository.WritePolicy(cfg.Cache.WritePolicy)
	transactions := repository.NewTransactionRepository(db, c.transactions, policy)
	currencies := repository.NewCurrencyRepository(db, c.currencies, policy)
	subjects := repository.NewSubjectRepository(db, c.subjects, policy)

	services := &service.Services{
		Ledger:       service.NewTransactionHandler(transactions, currencies, subjects, cfg.Ledger.AllowNegative),
		Transactions: transactions,
		Currencies:   currencies,
		Subjects:     subjects,
	}

	janitor := worker.NewJanitor(c.sweepers...)

	// Create HTTP server
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Add Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Register v1 API routes
	v1.NewRouter(services, metricsCollector).RegisterRoutes(mux)

	server := &http.Server{
		Addr: cfg.GetAddr(),
		Handler: middleware.Chain(mux,
			middleware.TracingMiddleware(serviceName),
			middleware.LoggingMiddleware,
			middleware.MetricsMiddleware(metricsCollector),
		),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Channel to listen for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	if len(c.sweepers) > 0 {
		janitor.Start(cfg.Cache.CleanupInterval)
	}

	// Start server in goroutine
	go func() {
		utils.Info("server starting",
			slog.String("addr", cfg.GetAddr()),
			slog.String("env", cfg.Environment),
			slog.String("db_driver", cfg.Database.Driver),
			slog.String("cache_backend", cfg.Cache.Backend),
			slog.Bool("allow_negative", cfg.Ledger.AllowNegative),
		)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Error("server failed to start", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	<-quit
	utils.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := janitor.Stop(shutdownCtx); err != nil {
		utils.Error("cache janitor shutdown error", slog.String("error", err.Error()))
	}

	// Attempt graceful shutdown
	if err := server.Shutdown(shutdownCtx); err != nil {
		utils.Error("server forced to shutdown", slog.String("error", err.Error()))
		os.Exit(1)
	}

	utils.Info("server stopped gracefully")
}

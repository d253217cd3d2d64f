package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/af-corp/ai-gateway/internal/cache"
	"github.com/af-corp/ai-gateway/internal/config"
	"github.com/af-corp/ai-gateway/internal/events"
	"github.com/af-corp/ai-gateway/internal/gateway"
	"github.com/af-corp/ai-gateway/internal/health"
	"github.com/af-corp/ai-gateway/internal/ratelimit"
	"github.com/af-corp/ai-gateway/internal/router"
	"github.com/af-corp/ai-gateway/internal/store"
	"github.com/af-corp/ai-gateway/internal/telemetry"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if path, err := config.LoadDotEnv(".env", filepath.Join(*configDir, ".env")); err != nil {
		logger.Warn("failed to load .env", "error", err)
	} else if path != "" {
		logger.Info("loaded environment file", "path", path)
	}

	// Load configuration
	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	level.Set(cfg.Telemetry.Level())

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	rdb := connectRedis(ctx, cfg.Redis, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	var catalog *store.PostgresStore
	if cfg.Database.Enabled {
		pool, err := connectDatabase(ctx, cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		catalog = store.NewPostgresStore(pool)
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	var healthTracker *router.HealthTracker
	if cb := cfg.Gateway.CircuitBreaker; cb.Enabled {
		healthTracker = router.NewHealthTracker(cb.FailureThreshold, cb.RecoveryProbeInterval)
	}

	registry := router.NewRegistry(nil)
	bus := events.NewBus()
	reporter := health.NewReporter()
	bus.Subscribe(events.LogHook(logger))
	bus.Subscribe(reporter.Hook())
	if rdb != nil {
		bus.Subscribe(events.NewRedisPublisher(rdb, cfg.Redis.EventsChannel).Hook())
	}

	gw, err := gateway.New(cfg.Gateway, gateway.Deps{
		Registry:  registry,
		Health:    healthTracker,
		Limiter:   ratelimit.NewLimiter(limiterStore(cfg.Gateway, rdb, logger), cfg.Gateway.RateLimitMaxRequests, cfg.Gateway.RateLimitWindow, metrics),
		Cache:     cache.NewManager(cacheStore(ctx, cfg.Gateway, rdb, logger), cfg.Gateway.CacheTTL),
		Collector: telemetry.NewCollector(metrics),
		Metrics:   metrics,
		Bus:       bus,
		Defaults:  loader.Services,
	})
	if err != nil {
		logger.Error("failed to build gateway", "error", err)
		os.Exit(1)
	}

	// Seed the catalog: configured services, overridden by persisted ones.
	// Credentials always come from the configured side.
	services := loader.Services()
	if catalog != nil {
		persisted, err := catalog.Load(ctx)
		if err != nil {
			logger.Warn("failed to load persisted services", "error", err)
		} else {
			services = config.MergePersisted(services, persisted)
		}
	}
	if err := gw.Seed(ctx, services); err != nil {
		logger.Warn("some services were not registered", "error", err)
	}
	if catalog != nil {
		bus.Subscribe(store.SyncHook(catalog, registry.Get))
	}
	logger.Info("service catalog ready", "services", len(registry.List()))

	loader.OnReload(func(c *config.Config) {
		level.Set(c.Telemetry.Level())
		if err := gw.UpdateConfig(ctx, c.Gateway); err != nil {
			logger.Error("failed to apply reloaded gateway config", "error", err)
		}
	})
	if err := loader.Watch(ctx.Done()); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	// Router setup
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(gateway.RequestID)

	r.Get("/health", healthHandler)
	r.Handle("/metrics", promhttp.Handler())
	gateway.NewHandler(gw).Routes(r)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	grpcServer := grpc.NewServer()
	reporter.Register(grpcServer)
	grpcLis, err := net.Listen("tcp", cfg.Server.GRPCAddr())
	if err != nil {
		logger.Error("failed to listen for grpc", "addr", cfg.Server.GRPCAddr(), "error", err)
		os.Exit(1)
	}

	// Graceful shutdown
	errCh := make(chan error, 2)
	go func() {
		logger.Info("gateway starting", "addr", srv.Addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()
	go func() {
		logger.Info("grpc health starting", "addr", grpcLis.Addr().String())
		errCh <- grpcServer.Serve(grpcLis)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	reporter.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	grpcServer.GracefulStop()
	stop()
	logger.Info("gateway stopped")
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) *redis.Client {
	if !cfg.Enabled || len(cfg.Addresses) == 0 || cfg.Addresses[0] == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addresses[0],
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not reachable (shared cache and limiter disabled)", "error", err)
		rdb.Close()
		return nil
	}
	logger.Info("redis connected", "addr", cfg.Addresses[0])
	return rdb
}

func connectDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("database connected", "host", cfg.Host, "name", cfg.Name)
	return pool, nil
}

func limiterStore(cfg config.GatewayConfig, rdb *redis.Client, logger *slog.Logger) ratelimit.Store {
	if cfg.RateLimitBackend == config.BackendRedis {
		if rdb != nil {
			return ratelimit.NewRedisStore(rdb)
		}
		logger.Warn("redis rate limit backend requested but redis is unavailable, using memory")
	}
	return ratelimit.NewMemoryStore()
}

func cacheStore(ctx context.Context, cfg config.GatewayConfig, rdb *redis.Client, logger *slog.Logger) cache.Store {
	if cfg.CacheBackend == config.BackendRedis {
		if rdb != nil {
			return cache.NewRedisStore(rdb)
		}
		logger.Warn("redis cache backend requested but redis is unavailable, using memory")
	}
	mem := cache.NewMemoryStore()
	if cfg.CacheSweepInterval > 0 {
		mem.StartSweeper(ctx, cfg.CacheSweepInterval)
	}
	return mem
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": version,
	})
}


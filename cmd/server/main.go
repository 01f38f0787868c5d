package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nulzo/completion-gateway/internal/cache"
	cachememory "github.com/nulzo/completion-gateway/internal/cache/memory"
	cacheredis "github.com/nulzo/completion-gateway/internal/cache/redis"
	"github.com/nulzo/completion-gateway/internal/config"
	"github.com/nulzo/completion-gateway/internal/faultguard"
	"github.com/nulzo/completion-gateway/internal/gateway"
	"github.com/nulzo/completion-gateway/internal/health"
	"github.com/nulzo/completion-gateway/internal/logger"
	"github.com/nulzo/completion-gateway/internal/metrics"
	"github.com/nulzo/completion-gateway/internal/platform/otel"
	"github.com/nulzo/completion-gateway/internal/ratelimit"
	"github.com/nulzo/completion-gateway/internal/registry"
	"github.com/nulzo/completion-gateway/internal/selection"
	"github.com/nulzo/completion-gateway/internal/server"
	"github.com/nulzo/completion-gateway/internal/server/validator"
	"github.com/nulzo/completion-gateway/internal/store/sqlite"
	"github.com/nulzo/completion-gateway/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	// Import providers to trigger init() registration
	_ "github.com/nulzo/completion-gateway/internal/llm/echo"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Initialize(cfg.Server.Env)
	defer logger.Sync()
	log := logger.Get()

	version.CheckForUpdates()

	shutdownTracer, err := otel.InitTracer("completion-gateway", log, os.Stdout)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Catalog snapshot: external sqlite store when configured, otherwise
	// the YAML provider list.
	snapshot := gateway.Snapshot(cfg.Providers)
	overrides := cfg.RateLimit.Overrides

	if cfg.Catalog.DSN != "" {
		repo, err := sqlite.NewSQLiteStorage(cfg.Catalog.DSN)
		if err != nil {
			log.Fatal("Failed to open catalog store", zap.Error(err))
		}
		defer repo.Close()

		stored, err := repo.Catalog().ListProviders(ctx)
		if err != nil {
			log.Fatal("Failed to load catalog snapshot", zap.Error(err))
		}
		if len(stored) == 0 {
			// First run: seed the store from the YAML snapshot.
			if err := repo.Catalog().SyncProviders(ctx, snapshot); err != nil {
				log.Warn("Failed to seed catalog store", zap.Error(err))
			}
			if err := repo.Catalog().SyncRateLimits(ctx, overrides); err != nil {
				log.Warn("Failed to seed rate-limit overrides", zap.Error(err))
			}
		} else {
			snapshot = stored
			if storedOverrides, err := repo.Catalog().RateLimitOverrides(ctx); err == nil {
				overrides = storedOverrides
			}
		}
	}

	reg := registry.New(snapshot)

	var cacheStore cache.CacheService
	if cfg.Redis.Enabled {
		cacheStore, err = cacheredis.NewRedisCache(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to redis cache", zap.Error(err))
		}
	} else {
		cacheStore = cachememory.NewMemoryCache()
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	limiter := ratelimit.New(cfg.RateLimit.DefaultRPM, overrides, log)
	guard := faultguard.New(cfg.Fault, log)
	selector := selection.New(reg)

	service := gateway.NewService(log, reg, selector, limiter, cacheStore, guard, m, cfg.Cache.TTL, cfg.Stream)

	active := gateway.BootstrapProviders(ctx, service, cfg.Providers, log)
	checker := health.NewChecker(reg, active, cfg.Health.TTL, cfg.Health.ProbeTimeout, log)

	validator.InitValidator()
	srv := server.New(cfg, log, service, checker)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: srv.Handler(),
	}

	go func() {
		log.Info("Starting completion gateway",
			zap.String("port", cfg.Server.Port),
			zap.Int("providers", len(active)),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("Graceful shutdown failed", zap.Error(err))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Warn("Tracer shutdown failed", zap.Error(err))
	}
}

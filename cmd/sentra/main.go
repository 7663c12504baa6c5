package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sentra-authz/sentra/internal/app"
	"github.com/sentra-authz/sentra/internal/catalog"
	"github.com/sentra-authz/sentra/internal/directory"
	"github.com/sentra-authz/sentra/internal/grantcache"
	"github.com/sentra-authz/sentra/internal/matrix"
	"github.com/sentra-authz/sentra/internal/observability"
	"github.com/sentra-authz/sentra/internal/oplog"
	"github.com/sentra-authz/sentra/internal/override"
	"github.com/sentra-authz/sentra/internal/platform/cache"
	"github.com/sentra-authz/sentra/internal/platform/db"
	"github.com/sentra-authz/sentra/internal/resolver"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPingTimeout)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	audit := oplog.New(oplog.NewPGRecorder(pool), logger)
	dir := directory.NewPGDirectory(pool)

	grantCache := grantcache.NewCache(grantcache.NewRedisStore(redisClient), cfg.AuthzCacheTTL, logger, metrics)
	roleInvalidator := grantcache.NewRoleInvalidator(grantCache, dir, logger)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, audit)

	matrixRepo := matrix.NewRepository(pool)
	matrixService := matrix.NewService(matrixRepo, roleInvalidator, audit, logger)

	overrideRepo := override.NewRepository(pool)
	overrideService := override.NewService(overrideRepo, dir, catalogService, grantCache, audit)

	authzResolver := resolver.New(catalogRepo, matrixRepo, overrideRepo, dir, grantCache, metrics)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		CatalogHandler:  catalog.NewHandler(logger, catalogService),
		MatrixHandler:   matrix.NewHandler(logger, matrixService),
		OverrideHandler: override.NewHandler(logger, overrideService),
		ResolverHandler: resolver.NewHandler(logger, authzResolver),
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("server starting", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
	logger.Info("server stopped")
}

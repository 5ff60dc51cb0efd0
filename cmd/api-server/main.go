package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/dental-agenda/internal/agenda"
	"github.com/hackgods/dental-agenda/internal/api"
	"github.com/hackgods/dental-agenda/internal/config"
	"github.com/hackgods/dental-agenda/internal/db"
	"github.com/hackgods/dental-agenda/internal/logging"
	"github.com/hackgods/dental-agenda/internal/patient"
	redisclient "github.com/hackgods/dental-agenda/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, false, "info").Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(os.Stdout, cfg.IsDev(), cfg.LogLevel)
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("store", cfg.StoreBackend).
		Str("lock", cfg.LockBackend).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	if err := db.Migrate(rootCtx, pgPool, logger); err != nil {
		logger.Fatal().Err(err).Msg("migration error")
	}

	var store agenda.Store
	switch cfg.StoreBackend {
	case config.BackendMemory:
		store = agenda.NewMemoryStore()
	default:
		store = agenda.NewPgStore(pgPool)
	}

	var rdb *redis.Client
	var locker agenda.Locker
	switch cfg.LockBackend {
	case config.LockLocal:
		locker = agenda.NewLocalLocker(cfg.LockWait, cfg.LockTTL)
	default:
		rdb, err = redisclient.NewRedisClient(rootCtx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Msg("connected to Redis")
		locker = redisclient.NewCalendarLocker(rdb, cfg.LockTTL, cfg.LockWait)
	}

	resolver := patient.NewResolver(patient.NewPgDirectory(pgPool), cfg.DirectoryTimeout)
	svc := agenda.NewService(store, locker, resolver, logger)
	projector := agenda.NewProjector(store, resolver, logger, cfg.EnrichConcurrency)

	router := api.NewRouter(api.RouterConfig{
		Service:   svc,
		Projector: projector,
		PgPool:    pgPool,
		Redis:     rdb,
		Env:       cfg.Env,
		Version:   version,
		Logger:    logger,
		JWTSecret: cfg.JWTSecret,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	case <-rootCtx.Done():
	}

	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

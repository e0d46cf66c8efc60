package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Priya8975/showing-webhooks/internal/api"
	"github.com/Priya8975/showing-webhooks/internal/config"
	"github.com/Priya8975/showing-webhooks/internal/ingest"
	"github.com/Priya8975/showing-webhooks/internal/logger"
	"github.com/Priya8975/showing-webhooks/internal/store"
	ws "github.com/Priya8975/showing-webhooks/internal/websocket"
	"github.com/Priya8975/showing-webhooks/internal/worker"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "json", os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pgStore.Close()
	log.Info().Msg("connected to PostgreSQL")

	// Run database migrations
	if err := pgStore.RunMigrations(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Msg("database migrations applied")

	// Initialize Redis
	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisStore.Close()
	log.Info().Msg("connected to Redis")

	if cfg.BearerToken == "" {
		log.Warn().Msg("SHOWMOJO_BEARER_TOKEN is not set, webhook and admin routes accept unauthenticated requests")
	}

	clock := systemClock{}
	hub := ws.NewHub(log, cfg.AllowedOrigins)
	cache := store.NewCache(redisStore.Client(), cfg.CacheTTL, log)
	svc := ingest.NewService(pgStore, clock, log, hub, cache)

	queue := worker.NewQueue(redisStore.Client(), log)
	pool := worker.NewPool(cfg.NumWorkers, svc, queue, log)
	dispatcher := worker.NewDispatcher(redisStore.Client(), pool, cfg.ReconcilePollInterval, log)

	var background sync.WaitGroup
	pool.Start(ctx)
	background.Add(2)
	go func() {
		defer background.Done()
		hub.Run(ctx)
	}()
	go func() {
		defer background.Done()
		dispatcher.Start(ctx)
	}()

	// Setup router
	router := api.NewRouter(api.Deps{
		Service:        svc,
		Reader:         pgStore,
		Queue:          queue,
		Cache:          cache,
		Redis:          redisStore,
		Hub:            hub,
		Clock:          clock,
		Logger:         log,
		BearerToken:    cfg.BearerToken,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.Error().Err(err).Msg("server error")
		stop()
	}

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// The dispatcher must stop submitting before the pool closes its queue.
	background.Wait()
	pool.Stop()

	log.Info().Msg("server stopped")
}

package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Simplici0/coverworks/internal/bulk"
	"github.com/Simplici0/coverworks/internal/config"
	"github.com/Simplici0/coverworks/internal/db"
	"github.com/Simplici0/coverworks/internal/migrations"
	"github.com/Simplici0/coverworks/internal/pricing"
	"github.com/Simplici0/coverworks/internal/rates"
	"github.com/Simplici0/coverworks/internal/seed"
	"github.com/Simplici0/coverworks/internal/snapshot"
	"github.com/Simplici0/coverworks/internal/store"
	"github.com/Simplici0/coverworks/internal/variation"
)

type server struct {
	db         *sql.DB
	rates      *rates.Resolver
	snapshots  *snapshot.Manager
	bulk       *bulk.Orchestrator
	variations *variation.Generator
	adminKey   string
	logger     *slog.Logger
}

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	if cfg.IsDev() {
		versions, err := migrations.Up(ctx, database)
		if err != nil {
			log.Fatalf("failed to run database migrations: %v", err)
		}
		stats, err := seed.Run(ctx, database)
		if err != nil {
			log.Fatalf("failed to seed pricing defaults: %v", err)
		}
		logger.Info("dev database ready", slog.Any("applied_migrations", versions), slog.Int("seed_inserts", stats.Inserts))
	}

	srv := newServer(database, cfg, logger)

	addr := ":" + cfg.Port
	logger.Info("server listening", slog.String("addr", addr), slog.String("env", cfg.Env))
	if err := http.ListenAndServe(addr, srv.routes()); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	if cfg.IsDev() {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func parseLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func newServer(database *sql.DB, cfg config.Config, logger *slog.Logger) *server {
	s := store.New(database)
	resolver := rates.NewResolver(s, rates.Options{CacheSize: cfg.RateCacheSize, CacheTTL: cfg.RateCacheTTL})
	manager := snapshot.NewManager(pricing.NewCalculator(resolver), s, s, logger)

	return &server{
		db:         database,
		rates:      resolver,
		snapshots:  manager,
		bulk:       bulk.New(s, manager, cfg.BulkWorkers, logger),
		variations: variation.NewGenerator(s, resolver, s, logger),
		adminKey:   cfg.AdminAPIKey,
		logger:     logger,
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.adminKeyMiddleware)

		r.Post("/pricing/bulk", s.handleBulkRecalculate)
		r.Route("/pricing/models/{modelID}/marketplaces/{marketplace}", func(r chi.Router) {
			r.Post("/recalculate", s.handleRecalculate)
			r.Post("/stale-check", s.handleStaleCheck)
			r.Get("/variants/{variant}", s.handleGetSnapshot)
			r.Get("/variants/{variant}/history", s.handleGetHistory)
			r.Get("/variants/{variant}/diff", s.handleGetDiff)
		})

		r.Post("/variations/generate", s.handleGenerateVariations)
		r.Get("/variations", s.handleListVariations)

		r.Post("/rates/cache/invalidate", s.handleInvalidateRates)
	})

	return r
}

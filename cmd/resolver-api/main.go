// @title Entity Graph Resolution API
// @version 1.0
// @description Duplicate detection, merge and linking service for an entity graph

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"entity-graph/backend/internal/api"
	"entity-graph/backend/internal/api/handlers"
	"entity-graph/backend/internal/config"
	"entity-graph/backend/internal/dedup"
	"entity-graph/backend/internal/health"
	"entity-graph/backend/internal/ingest"
	"entity-graph/backend/internal/linking"
	"entity-graph/backend/internal/logger"
	"entity-graph/backend/internal/match"
	"entity-graph/backend/internal/normalize"
	"entity-graph/backend/internal/notify"
	"entity-graph/backend/internal/scheduler"
	"entity-graph/backend/internal/score"
	"entity-graph/backend/internal/store/postgres"
	"entity-graph/backend/internal/suggest"
)

func main() {
	// Load and validate configuration first (before logger)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logger with configuration
	logger.Init(cfg.Logger)

	logger.Info().
		Str("environment", cfg.Logger.Environment).
		Str("log_level", cfg.Logger.Level).
		Msg("configuration loaded successfully")

	// Run migrations before connecting to the database
	logger.Info().Msg("running database migrations")
	if err := postgres.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	ctx := context.Background()
	st, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer st.Close()

	logger.Info().Msg("database connected successfully")

	// Core wiring: normalizer, matching engine, cache, executor, services
	normalizer := normalize.New(cfg.Matching.DefaultRegion)
	engine := match.NewEngine(st, score.NewScorer(),
		match.WithThreshold(cfg.Matching.FuzzyThreshold),
		match.WithWorkers(cfg.Matching.Workers),
	)
	cache := suggest.New(st, cfg.Cache.SuggestionTTL)
	notifier := notify.NewLogNotifier()

	executor := linking.NewExecutor(st, cache, notifier)
	dedupService := dedup.NewService(st, engine, cache, executor, notifier)
	ingestService := ingest.NewService(st, normalizer, cache)

	sched := scheduler.New(cache)
	if err := sched.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	// Handlers
	dedupHandler := handlers.NewDedupHandler(dedupService)
	linkingHandler := handlers.NewLinkingHandler(executor)
	ingestHandler := handlers.NewIngestHandler(ingestService)

	// Set up Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(api.RequestIDMiddleware())
	router.Use(api.LoggingMiddleware())
	router.Use(api.ErrorHandlerMiddleware())

	// Health endpoints
	router.GET("/health", health.LivenessHandler)
	router.GET("/ready", health.ReadinessHandler(st, cfg.Database.HealthTimeout))

	// API routes
	v1 := router.Group("/api/v1")
	{
		entities := v1.Group("/entities")
		{
			entities.POST("", ingestHandler.CreateEntity)
			entities.POST("/:id/items", ingestHandler.AddItem)
			entities.GET("/:id/duplicates", dedupHandler.FindDuplicates)
		}

		// Merge routes live outside /entities: a static "merge" segment would
		// collide with the :id wildcard in gin's routing tree.
		v1.POST("/merge/preview", dedupHandler.PreviewMerge)
		v1.POST("/merge", dedupHandler.MergeEntities)

		orphans := v1.Group("/orphans")
		{
			orphans.POST("", ingestHandler.CreateOrphan)
			orphans.POST("/:id/link", linkingHandler.LinkOrphan)
		}

		v1.POST("/links/items", linkingHandler.LinkDataItems)
		v1.POST("/relationships", linkingHandler.CreateRelationship)
		v1.POST("/suggestions/dismiss", linkingHandler.DismissSuggestion)
		v1.GET("/history", linkingHandler.GetLinkingHistory)
	}

	// Start server with configured bind address
	addr := cfg.GetBindAddress()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", addr).Msg("failed to bind listener")
	}

	srv := &http.Server{
		Addr:    ln.Addr().String(),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}

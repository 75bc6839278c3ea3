package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/streamatlas/streamatlas-backend/api/routes"
	"github.com/streamatlas/streamatlas-backend/internal/availability"
	"github.com/streamatlas/streamatlas-backend/internal/genres"
	"github.com/streamatlas/streamatlas-backend/internal/ingestion"
	"github.com/streamatlas/streamatlas-backend/internal/justwatch"
	"github.com/streamatlas/streamatlas-backend/internal/movies"
	"github.com/streamatlas/streamatlas-backend/internal/platforms"
	"github.com/streamatlas/streamatlas-backend/internal/tmdb"
	"github.com/streamatlas/streamatlas-backend/pkg/config"
	"github.com/streamatlas/streamatlas-backend/pkg/db"
	"github.com/streamatlas/streamatlas-backend/pkg/logger"
	"github.com/streamatlas/streamatlas-backend/pkg/metrics"
	"github.com/streamatlas/streamatlas-backend/pkg/migrate"
	"github.com/streamatlas/streamatlas-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	movieRepo := movies.NewRepository(dbClient.DB())
	genreRepo := genres.NewRepository(dbClient.DB())
	platformRepo := platforms.NewRepository(dbClient.DB())
	availabilityRepo := availability.NewRepository(dbClient.DB())

	catalogService, err := movies.NewService(movies.ServiceParams{
		Movies:       movieRepo,
		Availability: availabilityRepo,
		Genres:       genreRepo,
		Platforms:    platformRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	justWatchClient, err := justwatch.NewClient(cfg.JustWatch, cfg.Retry, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create justwatch client", err)
		os.Exit(1)
	}
	tmdbClient, err := tmdb.NewClient(cfg.TMDB, cfg.Retry, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create tmdb client", err)
		os.Exit(1)
	}

	ingestionMetrics := metrics.NewIngestionMetrics(prometheus.DefaultRegisterer)
	ingestionService, err := ingestion.NewCatalogService(ingestion.CatalogServiceParams{
		Client:    justWatchClient,
		Platforms: platformRepo,
		Movies:    movieRepo,
		Offers:    availabilityRepo,
		Logger:    logg,
		Metrics:   ingestionMetrics,
		Config:    cfg.Ingestion,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ingestion service", err)
		os.Exit(1)
	}
	enrichmentService, err := ingestion.NewEnrichmentService(ingestion.EnrichmentServiceParams{
		Client:  tmdbClient,
		Genres:  genreRepo,
		Movies:  movieRepo,
		Logger:  logg,
		Metrics: ingestionMetrics,
		Config:  cfg.Ingestion,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create enrichment service", err)
		os.Exit(1)
	}
	orchestrator, err := ingestion.NewOrchestrator(ingestion.OrchestratorParams{
		Catalog:    ingestionService,
		Enrichment: enrichmentService,
		Logger:     logg,
		Metrics:    ingestionMetrics,
		Config:     cfg.Ingestion,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orchestrator", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, catalogService, orchestrator),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

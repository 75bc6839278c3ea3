package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

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
)

// One-shot seeding run: sync platforms and genres, page the catalog deeply,
// then enrich. Intended for a fresh database or a full rebuild.
func main() {
	logg := logger.New(logger.Options{ServiceName: "bootstrap"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	platformsFlag := flag.String("platforms", "", "comma-separated platform ids to ingest (default: configured bootstrap platforms)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "bootstrap",
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

	movieRepo := movies.NewRepository(dbClient.DB())
	ingestionMetrics := metrics.NewIngestionMetrics(prometheus.DefaultRegisterer)

	catalogService, err := ingestion.NewCatalogService(ingestion.CatalogServiceParams{
		Client:    justWatchClient,
		Platforms: platforms.NewRepository(dbClient.DB()),
		Movies:    movieRepo,
		Offers:    availability.NewRepository(dbClient.DB()),
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
		Genres:  genres.NewRepository(dbClient.DB()),
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
		Catalog:    catalogService,
		Enrichment: enrichmentService,
		Logger:     logg,
		Metrics:    ingestionMetrics,
		Config:     cfg.Ingestion,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orchestrator", err)
		os.Exit(1)
	}

	platformIDs := cfg.Ingestion.BootstrapPlatforms
	if trimmed := strings.TrimSpace(*platformsFlag); trimmed != "" {
		platformIDs = nil
		for _, id := range strings.Split(trimmed, ",") {
			if id = strings.TrimSpace(id); id != "" {
				platformIDs = append(platformIDs, id)
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"platforms": platformIDs,
	})
	logg.Info(ctx, "starting bootstrap run")

	result := orchestrator.Bootstrap(ctx, platformIDs)
	if !result.Success {
		logg.Error(logg.WithField(ctx, "message", result.Message), "bootstrap run failed", nil)
		os.Exit(1)
	}

	logg.Info(logg.WithField(ctx, "duration", result.Duration.String()), "bootstrap run complete")
}

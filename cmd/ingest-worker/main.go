package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamatlas/streamatlas-backend/internal/availability"
	"github.com/streamatlas/streamatlas-backend/internal/cron"
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

const workerScope = "ingest-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: workerScope})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = workerScope

	logg = logger.New(logger.Options{
		ServiceName: workerScope,
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

	orchestrator, err := buildOrchestrator(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build ingestion pipeline", err)
		os.Exit(1)
	}

	job, err := cron.NewCatalogUpdateJob(cron.CatalogUpdateJobParams{
		Logger:       logg,
		Orchestrator: orchestrator,
		Status:       redisClient,
		StatusKey:    redisClient.StatusKey(workerScope),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog update job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(workerScope, cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(job),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Schedule: cfg.Ingestion.CronSchedule,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"schedule": cfg.Ingestion.CronSchedule,
	})

	go serveMetrics(ctx, cfg, logg)

	if cfg.Ingestion.BootstrapOnStart {
		logg.Info(ctx, "running startup bootstrap")
		result := orchestrator.Bootstrap(ctx, cfg.Ingestion.BootstrapPlatforms)
		if !result.Success {
			logg.Warn(logg.WithField(ctx, "message", result.Message), "startup bootstrap did not complete cleanly")
		}
	}

	logg.Info(ctx, "starting ingest worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "ingest worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "ingest worker shutting down gracefully")
}

func buildOrchestrator(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*ingestion.Orchestrator, error) {
	justWatchClient, err := justwatch.NewClient(cfg.JustWatch, cfg.Retry, logg)
	if err != nil {
		return nil, err
	}
	tmdbClient, err := tmdb.NewClient(cfg.TMDB, cfg.Retry, logg)
	if err != nil {
		return nil, err
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
		return nil, err
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
		return nil, err
	}

	return ingestion.NewOrchestrator(ingestion.OrchestratorParams{
		Catalog:    catalogService,
		Enrichment: enrichmentService,
		Logger:     logg,
		Metrics:    ingestionMetrics,
		Config:     cfg.Ingestion,
	})
}

func serveMetrics(ctx context.Context, cfg *config.Config, logg *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: ":" + cfg.App.Port, Handler: mux}
	go func() {
		<-ctx.Done()
		server.Close()
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "metrics endpoint stopped unexpectedly", err)
	}
}

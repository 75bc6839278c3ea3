package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/streamatlas/streamatlas-backend/api/controllers"
	"github.com/streamatlas/streamatlas-backend/api/middleware"
	"github.com/streamatlas/streamatlas-backend/internal/movies"
	"github.com/streamatlas/streamatlas-backend/pkg/config"
	"github.com/streamatlas/streamatlas-backend/pkg/db"
	"github.com/streamatlas/streamatlas-backend/pkg/logger"
	"github.com/streamatlas/streamatlas-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	catalogService movies.Service,
	orchestrator controllers.PipelineTrigger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
		r.Get("/detailed", controllers.HealthDetailed(cfg, logg, dbP, redisP, orchestrator))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/movies", func(r chi.Router) {
			r.Get("/", controllers.MovieList(catalogService, logg))
			r.Get("/{movieId}", controllers.MovieDetail(catalogService, logg))
			r.Get("/{movieId}/availability", controllers.MovieAvailability(catalogService, logg))
		})
		r.Get("/genres", controllers.GenreList(catalogService, logg))
		r.Get("/platforms", controllers.PlatformList(catalogService, logg))
		r.Get("/catalog/stats", controllers.CatalogStats(catalogService, logg))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Admin(cfg.JWT, logg))
			// GET kept alongside POST so hosted cron services that only
			// issue GETs can fire the refresh.
			r.Post("/trigger-update", controllers.TriggerUpdate(orchestrator, logg))
			r.Get("/trigger-update", controllers.TriggerUpdate(orchestrator, logg))
			r.Post("/bootstrap", controllers.TriggerBootstrap(orchestrator, logg))
			r.Get("/ingestion/status", controllers.IngestionStatus(orchestrator, cfg.Ingestion.CronSchedule, logg))
		})
	})

	return r
}

package ingestion

import (
	"context"
	"time"

	"github.com/lib/pq"

	"github.com/streamatlas/streamatlas-backend/internal/platforms"
	"github.com/streamatlas/streamatlas-backend/internal/tmdb"
	"github.com/streamatlas/streamatlas-backend/pkg/config"
	"github.com/streamatlas/streamatlas-backend/pkg/db/models"
	pkgerrors "github.com/streamatlas/streamatlas-backend/pkg/errors"
	"github.com/streamatlas/streamatlas-backend/pkg/logger"
	"github.com/streamatlas/streamatlas-backend/pkg/metrics"
)

// Resolution labels describe how a movie was matched to its metadata record.
const (
	resolutionID     = "id"
	resolutionIMDb   = "imdb"
	resolutionSearch = "search"
)

// MetadataClient is the slice of the metadata provider consumed by enrichment.
type MetadataClient interface {
	GetGenres(ctx context.Context) []tmdb.Genre
	GetMovieDetails(ctx context.Context, tmdbID int64) (*tmdb.MovieDetails, error)
	FindByIMDbID(ctx context.Context, imdbID string) (*tmdb.SearchResult, error)
	SearchMovie(ctx context.Context, title string, year *int) []tmdb.SearchResult
}

// GenreStore is the genre persistence surface used by enrichment.
type GenreStore interface {
	BulkUpsert(ctx context.Context, rows []models.Genre) error
	FindOrCreate(ctx context.Context, tmdbID int64, name, slug string) (*models.Genre, error)
}

// EnrichmentMovieStore is the movie persistence surface used by enrichment.
type EnrichmentMovieStore interface {
	FindNeedingEnrichment(ctx context.Context, limit int) ([]models.Movie, error)
	SetEnriched(ctx context.Context, movie *models.Movie, fields map[string]any, genres []models.Genre) error
}

// EnrichmentService fills catalog rows with full metadata. Each movie is
// resolved through a cross-reference chain: the metadata id when known, the
// IMDb id next, and a title plus year search as the last resort.
type EnrichmentService struct {
	client  MetadataClient
	genres  GenreStore
	movies  EnrichmentMovieStore
	logg    *logger.Logger
	metrics *metrics.IngestionMetrics

	batchSize  int
	batchDelay time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// EnrichmentServiceParams wires the enrichment service dependencies.
type EnrichmentServiceParams struct {
	Client  MetadataClient
	Genres  GenreStore
	Movies  EnrichmentMovieStore
	Logger  *logger.Logger
	Metrics *metrics.IngestionMetrics
	Config  config.IngestionConfig
}

// NewEnrichmentService validates dependencies and builds the enrichment service.
func NewEnrichmentService(params EnrichmentServiceParams) (*EnrichmentService, error) {
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "metadata client required")
	}
	if params.Genres == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "genre store required")
	}
	if params.Movies == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "movie store required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	batchSize := params.Config.EnrichBatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	return &EnrichmentService{
		client:     params.Client,
		genres:     params.Genres,
		movies:     params.Movies,
		logg:       params.Logger,
		metrics:    params.Metrics,
		batchSize:  batchSize,
		batchDelay: params.Config.BatchDelay,
		now:        time.Now,
		sleep:      sleepCtx,
	}, nil
}

// SyncGenres refreshes the canonical genre list from the metadata provider.
func (s *EnrichmentService) SyncGenres(ctx context.Context) (int, error) {
	s.logg.Info(ctx, "syncing genres from metadata provider")

	genres := s.client.GetGenres(ctx)
	if len(genres) == 0 {
		s.logg.Warn(ctx, "no genres returned by metadata provider")
		return 0, nil
	}

	rows := make([]models.Genre, 0, len(genres))
	for _, g := range genres {
		if g.ID == 0 || g.Name == "" {
			continue
		}
		rows = append(rows, models.Genre{
			TMDBID: g.ID,
			Name:   g.Name,
			Slug:   platforms.Slugify(g.Name),
		})
	}
	if err := s.genres.BulkUpsert(ctx, rows); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert genres")
	}

	s.logg.Info(s.logg.WithField(ctx, "count", len(rows)), "genre sync complete")
	return len(rows), nil
}

// EnrichMovie resolves and applies metadata for one movie. Returns the
// resolution label, or empty when no metadata record could be matched.
func (s *EnrichmentService) EnrichMovie(ctx context.Context, movie *models.Movie) (string, error) {
	details, resolution, err := s.resolveDetails(ctx, movie)
	if err != nil {
		return "", err
	}
	if details == nil {
		return "", nil
	}

	genreRows, err := s.resolveGenres(ctx, details.Genres)
	if err != nil {
		return "", err
	}

	if err := s.movies.SetEnriched(ctx, movie, s.enrichmentFields(movie, details), genreRows); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist enrichment")
	}
	return resolution, nil
}

func (s *EnrichmentService) resolveDetails(ctx context.Context, movie *models.Movie) (*tmdb.MovieDetails, string, error) {
	if movie.TMDBID != nil {
		details, err := s.client.GetMovieDetails(ctx, *movie.TMDBID)
		if err != nil {
			return nil, "", err
		}
		if details != nil {
			return details, resolutionID, nil
		}
	}

	if movie.IMDbID != nil && *movie.IMDbID != "" {
		match, err := s.client.FindByIMDbID(ctx, *movie.IMDbID)
		if err != nil {
			return nil, "", err
		}
		if match != nil {
			details, err := s.client.GetMovieDetails(ctx, match.ID)
			if err != nil {
				return nil, "", err
			}
			if details != nil {
				return details, resolutionIMDb, nil
			}
		}
	}

	results := s.client.SearchMovie(ctx, movie.Title, movie.ReleaseYear)
	if len(results) > 0 {
		details, err := s.client.GetMovieDetails(ctx, results[0].ID)
		if err != nil {
			return nil, "", err
		}
		if details != nil {
			return details, resolutionSearch, nil
		}
	}

	return nil, "", nil
}

func (s *EnrichmentService) resolveGenres(ctx context.Context, tags []tmdb.Genre) ([]models.Genre, error) {
	if len(tags) == 0 {
		return []models.Genre{}, nil
	}
	rows := make([]models.Genre, 0, len(tags))
	for _, tag := range tags {
		if tag.ID == 0 || tag.Name == "" {
			continue
		}
		genre, err := s.genres.FindOrCreate(ctx, tag.ID, tag.Name, platforms.Slugify(tag.Name))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve genre")
		}
		if genre != nil {
			rows = append(rows, *genre)
		}
	}
	return rows, nil
}

// enrichmentFields builds the partial update from resolved metadata. The
// metadata record is authoritative for descriptive fields; cross-reference
// ids already present on the row are kept as-is.
func (s *EnrichmentService) enrichmentFields(movie *models.Movie, details *tmdb.MovieDetails) map[string]any {
	now := s.now()
	fields := map[string]any{
		"title":             details.Title,
		"original_title":    details.OriginalTitle,
		"overview":          details.Overview,
		"tagline":           details.Tagline,
		"release_date":      details.ReleaseDate,
		"release_year":      details.ReleaseYear,
		"runtime":           details.Runtime,
		"poster_path":       details.PosterPath,
		"backdrop_path":     details.BackdropPath,
		"vote_average":      details.VoteAverage,
		"vote_count":        details.VoteCount,
		"popularity":        details.Popularity,
		"status":            details.Status,
		"original_language": details.OriginalLanguage,
		"spoken_languages":  spokenLanguagesValue(details.SpokenLanguages),
		"is_enriched":       true,
		"last_enriched_at":  now,
	}
	if movie.TMDBID == nil && details.TMDBID != 0 {
		fields["tmdb_id"] = details.TMDBID
	}
	if movie.IMDbID == nil && details.IMDbID != nil {
		fields["imdb_id"] = *details.IMDbID
	}
	return fields
}

func spokenLanguagesValue(langs []string) any {
	if len(langs) == 0 {
		return nil
	}
	return pq.StringArray(langs)
}

// EnrichmentResult reports one enrichment pass.
type EnrichmentResult struct {
	Enriched int `json:"enriched"`
	Failed   int `json:"failed"`
}

// EnrichPending enriches up to limit unenriched movies in batches. A movie
// that fails or cannot be matched is counted and skipped; the batch keeps
// going.
func (s *EnrichmentService) EnrichPending(ctx context.Context, limit int) (*EnrichmentResult, error) {
	pending, err := s.movies.FindNeedingEnrichment(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load unenriched movies")
	}

	s.logg.Info(s.logg.WithField(ctx, "pending", len(pending)), "starting enrichment pass")
	result := &EnrichmentResult{}

	for start := 0; start < len(pending); start += s.batchSize {
		end := start + s.batchSize
		if end > len(pending) {
			end = len(pending)
		}

		for i := start; i < end; i++ {
			movie := pending[i]
			resolution, err := s.EnrichMovie(ctx, &movie)
			if err != nil {
				s.logg.Error(s.logg.WithField(ctx, "movie_id", movie.ID), "enriching movie failed", err)
				s.metrics.IncEnrichmentFailure()
				s.metrics.IncProviderError("metadata")
				result.Failed++
				continue
			}
			if resolution == "" {
				s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"movie_id": movie.ID, "title": movie.Title}), "no metadata match for movie")
				s.metrics.IncEnrichmentFailure()
				result.Failed++
				continue
			}
			s.metrics.IncEnriched(resolution)
			result.Enriched++
		}

		if end < len(pending) {
			if err := s.sleep(ctx, s.batchDelay); err != nil {
				return result, err
			}
		}
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"enriched": result.Enriched,
		"failed":   result.Failed,
	}), "enrichment pass complete")

	return result, nil
}

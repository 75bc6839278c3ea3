package movies

import (
	"context"

	"github.com/google/uuid"

	"github.com/streamatlas/streamatlas-backend/internal/availability"
	"github.com/streamatlas/streamatlas-backend/internal/genres"
	"github.com/streamatlas/streamatlas-backend/internal/platforms"
	"github.com/streamatlas/streamatlas-backend/pkg/db/models"
	pkgerrors "github.com/streamatlas/streamatlas-backend/pkg/errors"
	"github.com/streamatlas/streamatlas-backend/pkg/pagination"
	"github.com/streamatlas/streamatlas-backend/pkg/types"
)

// Service defines the catalog read operations consumed by the API layer.
type Service interface {
	GetMovie(ctx context.Context, id uuid.UUID) (*MovieDetail, error)
	GetMovieByJustWatchID(ctx context.Context, justWatchID string) (*MovieDetail, error)
	Search(ctx context.Context, query ListQuery) (*types.Paged[models.Movie], error)
	ListGenres(ctx context.Context) ([]models.Genre, error)
	ListPlatforms(ctx context.Context) ([]models.Platform, error)
	CatalogStats(ctx context.Context) (*CatalogStats, error)
}

type service struct {
	movies       *Repository
	availability *availability.Repository
	genres       *genres.Repository
	platforms    *platforms.Repository
}

// MovieDetail pairs a movie with its current offer rows.
type MovieDetail struct {
	models.Movie
	Availabilities []models.Availability `json:"availabilities"`
}

// CatalogStats aggregates per-table counts for the statistics endpoint.
type CatalogStats struct {
	Movies         Stats              `json:"movies"`
	Availabilities availability.Stats `json:"availabilities"`
	Genres         struct {
		Total int `json:"total"`
	} `json:"genres"`
	Platforms struct {
		Total  int `json:"total"`
		Active int `json:"active"`
	} `json:"platforms"`
}

// ServiceParams wires the read service dependencies.
type ServiceParams struct {
	Movies       *Repository
	Availability *availability.Repository
	Genres       *genres.Repository
	Platforms    *platforms.Repository
}

// NewService validates dependencies and builds the read service.
func NewService(params ServiceParams) (Service, error) {
	if params.Movies == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "movie repository required")
	}
	if params.Availability == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "availability repository required")
	}
	if params.Genres == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "genre repository required")
	}
	if params.Platforms == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "platform repository required")
	}
	return &service{
		movies:       params.Movies,
		availability: params.Availability,
		genres:       params.Genres,
		platforms:    params.Platforms,
	}, nil
}

func (s *service) GetMovie(ctx context.Context, id uuid.UUID) (*MovieDetail, error) {
	movie, err := s.movies.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load movie")
	}
	return s.detail(ctx, movie)
}

func (s *service) GetMovieByJustWatchID(ctx context.Context, justWatchID string) (*MovieDetail, error) {
	movie, err := s.movies.FindByJustWatchID(ctx, justWatchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load movie")
	}
	return s.detail(ctx, movie)
}

func (s *service) detail(ctx context.Context, movie *models.Movie) (*MovieDetail, error) {
	if movie == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "movie not found")
	}
	offers, err := s.availability.FindByMovie(ctx, movie.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load availabilities")
	}
	return &MovieDetail{Movie: *movie, Availabilities: offers}, nil
}

func (s *service) Search(ctx context.Context, query ListQuery) (*types.Paged[models.Movie], error) {
	rows, total, err := s.movies.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search movies")
	}
	params := query.Page.Normalize()
	return &types.Paged[models.Movie]{
		Items:      rows,
		Page:       params.Page,
		Limit:      params.Limit,
		Total:      total,
		TotalPages: pagination.TotalPages(total, params.Limit),
	}, nil
}

func (s *service) ListGenres(ctx context.Context) ([]models.Genre, error) {
	rows, err := s.genres.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list genres")
	}
	return rows, nil
}

func (s *service) ListPlatforms(ctx context.Context) ([]models.Platform, error) {
	rows, err := s.platforms.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list platforms")
	}
	return rows, nil
}

func (s *service) CatalogStats(ctx context.Context) (*CatalogStats, error) {
	movieStats, err := s.movies.GetStats(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "movie stats")
	}
	availStats, err := s.availability.GetStats(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "availability stats")
	}
	genreRows, err := s.genres.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list genres")
	}
	platformRows, err := s.platforms.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list platforms")
	}

	stats := &CatalogStats{
		Movies:         *movieStats,
		Availabilities: *availStats,
	}
	stats.Genres.Total = len(genreRows)
	stats.Platforms.Total = len(platformRows)
	for _, p := range platformRows {
		if p.IsActive {
			stats.Platforms.Active++
		}
	}
	return stats, nil
}

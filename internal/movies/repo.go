package movies

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streamatlas/streamatlas-backend/pkg/db"
	"github.com/streamatlas/streamatlas-backend/pkg/db/models"
	"github.com/streamatlas/streamatlas-backend/pkg/pagination"
)

// Repository exposes movie persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a movie repository tied to the provided GORM DB.
func NewRepository(gdb *gorm.DB) *Repository {
	return &Repository{db: gdb}
}

// FindByID returns the movie with genres preloaded. Returns nil when absent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Movie, error) {
	var movie models.Movie
	err := r.db.WithContext(ctx).Preload("Genres").First(&movie, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

// FindByJustWatchID looks up a movie by its catalog provider id. Returns nil
// when absent.
func (r *Repository) FindByJustWatchID(ctx context.Context, justWatchID string) (*models.Movie, error) {
	var movie models.Movie
	err := r.db.WithContext(ctx).Preload("Genres").Where("just_watch_id = ?", justWatchID).First(&movie).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

// FindByTMDBID looks up a movie by its metadata provider id. Returns nil when
// absent.
func (r *Repository) FindByTMDBID(ctx context.Context, tmdbID int64) (*models.Movie, error) {
	var movie models.Movie
	err := r.db.WithContext(ctx).Where("tmdb_id = ?", tmdbID).First(&movie).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

// CreateOrFind inserts the movie, resolving a duplicate-key race on the
// catalog id by re-querying. The bool reports whether this call created the
// row.
func (r *Repository) CreateOrFind(ctx context.Context, movie *models.Movie) (*models.Movie, bool, error) {
	err := r.db.WithContext(ctx).Create(movie).Error
	if err == nil {
		return movie, true, nil
	}
	if db.IsUniqueViolation(err, "") {
		existing, findErr := r.FindByJustWatchID(ctx, movie.JustWatchID)
		if findErr != nil {
			return nil, false, findErr
		}
		if existing != nil {
			return existing, false, nil
		}
	}
	return nil, false, err
}

// UpdateFields applies a partial update to the movie row.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Movie{}).Where("id = ?", id).Updates(fields).Error
}

// FindNeedingEnrichment returns up to limit unenriched movies, earliest
// sighting first, so early arrivals are enriched before fresh ones. The
// ordering rides the (is_enriched, first_seen_at) index.
func (r *Repository) FindNeedingEnrichment(ctx context.Context, limit int) ([]models.Movie, error) {
	var rows []models.Movie
	err := r.db.WithContext(ctx).
		Where("is_enriched = ?", false).
		Order("first_seen_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SetEnriched applies the enrichment field updates and replaces the movie's
// genre set in one pass.
func (r *Repository) SetEnriched(ctx context.Context, movie *models.Movie, fields map[string]any, genres []models.Genre) error {
	if err := r.UpdateFields(ctx, movie.ID, fields); err != nil {
		return err
	}
	if genres == nil {
		return nil
	}
	return r.db.WithContext(ctx).Model(movie).Association("Genres").Replace(genres)
}

// ListQuery captures the read API's filter and sort surface.
type ListQuery struct {
	Search            string
	ReleaseYear       *int
	MinRating         *float64
	GenreSlug         string
	PlatformSlug      string
	MonetizationTypes []string
	SortBy            string
	SortOrder         string
	Page              pagination.Params
}

// List returns a filtered, sorted page of movies plus the total row count for
// the same filters.
func (r *Repository) List(ctx context.Context, q ListQuery) ([]models.Movie, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.Movie{})

	if q.Search != "" {
		base = base.Where("title ILIKE ?", "%"+q.Search+"%")
	}
	if q.ReleaseYear != nil {
		base = base.Where("release_year = ?", *q.ReleaseYear)
	}
	if q.MinRating != nil {
		base = base.Where("vote_average >= ?", *q.MinRating)
	}
	if q.GenreSlug != "" {
		base = base.
			Joins("JOIN movie_genres mg ON mg.movie_id = movies.id").
			Joins("JOIN genres g ON g.id = mg.genre_id").
			Where("g.slug = ?", q.GenreSlug)
	}
	if q.PlatformSlug != "" {
		base = base.
			Joins("JOIN availabilities a ON a.movie_id = movies.id").
			Joins("JOIN platforms p ON p.id = a.platform_id").
			Where("p.slug = ? AND a.is_available = ?", q.PlatformSlug, true)
		if len(q.MonetizationTypes) > 0 {
			base = base.Where("a.monetization_type IN ?", q.MonetizationTypes)
		}
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Distinct("movies.id").Count(&total).Error; err != nil {
		return nil, 0, err
	}

	params := q.Page.Normalize()
	var rows []models.Movie
	err := base.Session(&gorm.Session{}).
		Distinct("movies.*").
		Preload("Genres").
		Order(orderClause(q.SortBy, q.SortOrder)).
		Limit(params.Limit).
		Offset(q.Page.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func orderClause(sortBy, sortOrder string) string {
	column := "popularity"
	switch sortBy {
	case "title":
		column = "title"
	case "release_year", "releaseYear":
		column = "release_year"
	case "vote_average", "rating":
		column = "vote_average"
	case "popularity", "":
	default:
	}
	direction := "DESC"
	if sortOrder == "asc" {
		direction = "ASC"
	}
	return "movies." + column + " " + direction + " NULLS LAST"
}

// Stats summarizes the movie table for the catalog statistics endpoint.
type Stats struct {
	Total      int64 `json:"total"`
	Enriched   int64 `json:"enriched"`
	Unenriched int64 `json:"unenriched"`
}

// GetStats counts total and enriched movies.
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := r.db.WithContext(ctx).Model(&models.Movie{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&models.Movie{}).Where("is_enriched = ?", true).Count(&stats.Enriched).Error; err != nil {
		return nil, err
	}
	stats.Unenriched = stats.Total - stats.Enriched
	return &stats, nil
}

// CountCreatedSince supports run reporting.
func (r *Repository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Movie{}).Where("created_at >= ?", since).Count(&count).Error
	return count, err
}

package genres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/streamatlas/streamatlas-backend/pkg/db"
	"github.com/streamatlas/streamatlas-backend/pkg/db/models"
)

// Repository exposes genre persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a genre repository tied to the provided GORM DB.
func NewRepository(gdb *gorm.DB) *Repository {
	return &Repository{db: gdb}
}

// FindByTMDBID looks up a genre by its external numeric id. Returns nil (no
// error) when absent.
func (r *Repository) FindByTMDBID(ctx context.Context, tmdbID int64) (*models.Genre, error) {
	var genre models.Genre
	err := r.db.WithContext(ctx).Where("tmdb_id = ?", tmdbID).First(&genre).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &genre, nil
}

// FindOrCreate returns the genre keyed by external id, inserting it if new.
// A duplicate-key race is resolved by re-querying.
func (r *Repository) FindOrCreate(ctx context.Context, tmdbID int64, name, slug string) (*models.Genre, error) {
	if existing, err := r.FindByTMDBID(ctx, tmdbID); err != nil || existing != nil {
		return existing, err
	}

	genre := models.Genre{TMDBID: tmdbID, Name: name, Slug: slug}
	err := r.db.WithContext(ctx).Create(&genre).Error
	if err == nil {
		return &genre, nil
	}
	if db.IsUniqueViolation(err, "") {
		return r.FindByTMDBID(ctx, tmdbID)
	}
	return nil, err
}

// BulkUpsert writes the genre list keyed by external id, refreshing names.
func (r *Repository) BulkUpsert(ctx context.Context, rows []models.Genre) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tmdb_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(&rows).Error
}

// List returns all genres ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Genre, error) {
	var rows []models.Genre
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

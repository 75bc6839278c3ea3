package platforms

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/streamatlas/streamatlas-backend/pkg/db"
	"github.com/streamatlas/streamatlas-backend/pkg/db/models"
)

// Repository exposes platform persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a platform repository tied to the provided GORM DB.
func NewRepository(gdb *gorm.DB) *Repository {
	return &Repository{db: gdb}
}

// FindByJustWatchID looks up a platform by its external catalog id. Returns
// nil (no error) when absent.
func (r *Repository) FindByJustWatchID(ctx context.Context, justWatchID string) (*models.Platform, error) {
	var platform models.Platform
	err := r.db.WithContext(ctx).Where("just_watch_id = ?", justWatchID).First(&platform).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &platform, nil
}

// FindBySlug looks up a platform by slug. Returns nil (no error) when absent.
func (r *Repository) FindBySlug(ctx context.Context, slug string) (*models.Platform, error) {
	var platform models.Platform
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&platform).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &platform, nil
}

// FindOrCreate returns the platform keyed by the external id, inserting it
// on first sighting. Two racing callers discovering the same platform are
// resolved by re-querying after a duplicate-key insert failure; neither
// caller errors and only one row exists afterwards. Distinct providers whose
// names slugify identically get the external id suffixed onto the slug
// instead of being mistaken for an insert race.
func (r *Repository) FindOrCreate(ctx context.Context, justWatchID, name string, icon *string) (*models.Platform, error) {
	if existing, err := r.FindByJustWatchID(ctx, justWatchID); err != nil || existing != nil {
		return existing, err
	}

	platform := models.Platform{
		JustWatchID: justWatchID,
		Name:        name,
		Slug:        Slugify(name),
		Icon:        icon,
		IsActive:    true,
	}
	err := r.db.WithContext(ctx).Create(&platform).Error
	if err != nil && db.IsUniqueViolation(err, "slug") {
		platform.Slug = platform.Slug + "-" + Slugify(justWatchID)
		err = r.db.WithContext(ctx).Create(&platform).Error
	}
	if err == nil {
		return &platform, nil
	}
	if db.IsUniqueViolation(err, "") {
		return r.FindByJustWatchID(ctx, justWatchID)
	}
	return nil, err
}

// BulkUpsert writes the platform list keyed by external id, refreshing name
// and backfilling icon without touching the active flag.
func (r *Repository) BulkUpsert(ctx context.Context, rows []models.Platform) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "just_watch_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "icon", "updated_at"}),
	}).Create(&rows).Error
}

// List returns every platform ordered by name, inactive ones included.
func (r *Repository) List(ctx context.Context) ([]models.Platform, error) {
	var rows []models.Platform
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListActive returns every active platform ordered by name.
func (r *Repository) ListActive(ctx context.Context) ([]models.Platform, error) {
	var rows []models.Platform
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SetActive toggles the platform's active flag.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).Model(&models.Platform{}).Where("id = ?", id).Update("is_active", active).Error
}

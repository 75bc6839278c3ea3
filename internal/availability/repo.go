package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/streamatlas/streamatlas-backend/pkg/db"
	"github.com/streamatlas/streamatlas-backend/pkg/db/models"
	"github.com/streamatlas/streamatlas-backend/pkg/enums"
)

// Repository exposes availability persistence operations. The ingestion
// pipeline is the only writer; the API layer reads through it.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository constructs an availability repository tied to the provided GORM DB.
func NewRepository(gdb *gorm.DB) *Repository {
	return &Repository{db: gdb, now: time.Now}
}

// Offer carries the mutable fields refreshed on every sighting of a
// (movie, platform, monetization type) triple.
type Offer struct {
	MovieID          uuid.UUID
	PlatformID       uuid.UUID
	MonetizationType enums.MonetizationType
	Quality          enums.Quality
	PriceAmount      *decimal.Decimal
	PriceCurrency    *string
	ExternalURL      *string
}

// Upsert refreshes the offer identified by its natural key, or inserts it on
// first sighting. Re-observing an offer updates quality, price and deep link,
// flips it available and stamps lastSeenAt. Returns whether a row was created.
func (r *Repository) Upsert(ctx context.Context, offer Offer) (bool, error) {
	now := r.now()

	var existing models.Availability
	err := r.db.WithContext(ctx).
		Where("movie_id = ? AND platform_id = ? AND monetization_type = ?",
			offer.MovieID, offer.PlatformID, offer.MonetizationType).
		First(&existing).Error

	if err == nil {
		updates := map[string]any{
			"quality":        offer.Quality,
			"price_amount":   offer.PriceAmount,
			"price_currency": offer.PriceCurrency,
			"external_url":   offer.ExternalURL,
			"is_available":   true,
			"last_seen_at":   now,
		}
		return false, r.db.WithContext(ctx).Model(&existing).Updates(updates).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	row := models.Availability{
		MovieID:          offer.MovieID,
		PlatformID:       offer.PlatformID,
		MonetizationType: offer.MonetizationType,
		Quality:          offer.Quality,
		PriceAmount:      offer.PriceAmount,
		PriceCurrency:    offer.PriceCurrency,
		ExternalURL:      offer.ExternalURL,
		IsAvailable:      true,
		FirstSeenAt:      now,
		LastSeenAt:       now,
	}
	createErr := r.db.WithContext(ctx).Create(&row).Error
	if createErr == nil {
		return true, nil
	}
	// A racing upsert of the same triple beat us to the insert; refresh the
	// winner's row instead.
	if db.IsUniqueViolation(createErr, "idx_availability_offer") {
		return false, r.db.WithContext(ctx).
			Model(&models.Availability{}).
			Where("movie_id = ? AND platform_id = ? AND monetization_type = ?",
				offer.MovieID, offer.PlatformID, offer.MonetizationType).
			Updates(map[string]any{
				"quality":        offer.Quality,
				"price_amount":   offer.PriceAmount,
				"price_currency": offer.PriceCurrency,
				"external_url":   offer.ExternalURL,
				"is_available":   true,
				"last_seen_at":   now,
			}).Error
	}
	return false, createErr
}

// MarkStaleAsUnavailable flips every available offer on the platform whose
// lastSeenAt predates the cutoff. The cutoff is the wall-clock start of the
// platform's ingestion pass; anything not refreshed during that pass has
// disappeared from the upstream feed. Returns the number of rows flipped.
func (r *Repository) MarkStaleAsUnavailable(ctx context.Context, platformID uuid.UUID, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Availability{}).
		Where("platform_id = ? AND is_available = ? AND last_seen_at < ?", platformID, true, cutoff).
		Updates(map[string]any{
			"is_available":        false,
			"last_unavailable_at": r.now(),
		})
	return result.RowsAffected, result.Error
}

// FindByMovie returns the movie's offers with platforms preloaded, available
// rows first.
func (r *Repository) FindByMovie(ctx context.Context, movieID uuid.UUID) ([]models.Availability, error) {
	var rows []models.Availability
	err := r.db.WithContext(ctx).
		Preload("Platform").
		Where("movie_id = ?", movieID).
		Order("is_available DESC").
		Order("monetization_type ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Stats summarizes the availability table for the catalog statistics endpoint.
type Stats struct {
	Total     int64 `json:"total"`
	Available int64 `json:"available"`
}

// GetStats counts total and currently-available offers.
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := r.db.WithContext(ctx).Model(&models.Availability{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&models.Availability{}).Where("is_available = ?", true).Count(&stats.Available).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

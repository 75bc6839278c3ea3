package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/streamatlas/streamatlas-backend/pkg/enums"
)

// Availability is one (movie, platform, monetization type) offer. The triple
// is unique; re-observing the same offer refreshes the existing row, and the
// staleness sweep flips rows unavailable instead of deleting them so the
// availability history survives.
type Availability struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	MovieID    uuid.UUID `gorm:"column:movie_id;type:uuid;not null;uniqueIndex:idx_availability_offer,priority:1;index" json:"movieId"`
	PlatformID uuid.UUID `gorm:"column:platform_id;type:uuid;not null;uniqueIndex:idx_availability_offer,priority:2;index" json:"platformId"`

	MonetizationType enums.MonetizationType `gorm:"column:monetization_type;type:monetization_type;not null;uniqueIndex:idx_availability_offer,priority:3" json:"monetizationType"`
	Quality          enums.Quality          `gorm:"column:quality;not null;default:'unknown'" json:"quality"`

	PriceAmount   *decimal.Decimal `gorm:"column:price_amount;type:numeric(10,2)" json:"priceAmount,omitempty"`
	PriceCurrency *string          `gorm:"column:price_currency" json:"priceCurrency,omitempty"`

	ExternalURL *string `gorm:"column:external_url" json:"externalUrl,omitempty"`

	IsAvailable       bool       `gorm:"column:is_available;not null;default:true;index" json:"isAvailable"`
	FirstSeenAt       time.Time  `gorm:"column:first_seen_at;not null" json:"firstSeenAt"`
	LastSeenAt        time.Time  `gorm:"column:last_seen_at;not null;index" json:"lastSeenAt"`
	LastUnavailableAt *time.Time `gorm:"column:last_unavailable_at" json:"lastUnavailableAt,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`

	Movie    *Movie    `gorm:"foreignKey:MovieID" json:"movie,omitempty"`
	Platform *Platform `gorm:"foreignKey:PlatformID" json:"platform,omitempty"`
}

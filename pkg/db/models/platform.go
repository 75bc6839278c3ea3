package models

import (
	"time"

	"github.com/google/uuid"
)

// Platform is a distribution service surfaced by the JustWatch feed. Rows are
// never hard-deleted; a platform that disappears upstream is deactivated.
type Platform struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	JustWatchID string    `gorm:"column:just_watch_id;not null;uniqueIndex" json:"justWatchId"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	Slug        string    `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	Icon        *string   `gorm:"column:icon" json:"icon,omitempty"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true" json:"isActive"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Genre is a canonical category sourced from TMDB.
type Genre struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TMDBID    int64     `gorm:"column:tmdb_id;not null;uniqueIndex" json:"tmdbId"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Slug      string    `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/streamatlas/streamatlas-backend/pkg/enums"
)

// Movie is the canonical title record. JustWatchID is the dedup key; TMDBID
// and IMDbID stay nil until the catalog feed or enrichment supplies them and
// are never overwritten once set.
type Movie struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	JustWatchID string    `gorm:"column:just_watch_id;not null;uniqueIndex" json:"justWatchId"`
	TMDBID      *int64    `gorm:"column:tmdb_id;uniqueIndex" json:"tmdbId,omitempty"`
	IMDbID      *string   `gorm:"column:imdb_id;index" json:"imdbId,omitempty"`

	Title         string  `gorm:"column:title;not null;index" json:"title"`
	OriginalTitle *string `gorm:"column:original_title" json:"originalTitle,omitempty"`
	Overview      *string `gorm:"column:overview" json:"overview,omitempty"`
	Tagline       *string `gorm:"column:tagline" json:"tagline,omitempty"`

	ReleaseDate *time.Time `gorm:"column:release_date;index" json:"releaseDate,omitempty"`
	ReleaseYear *int       `gorm:"column:release_year;index" json:"releaseYear,omitempty"`

	Runtime      *int    `gorm:"column:runtime" json:"runtime,omitempty"`
	PosterPath   *string `gorm:"column:poster_path" json:"posterPath,omitempty"`
	BackdropPath *string `gorm:"column:backdrop_path" json:"backdropPath,omitempty"`

	VoteAverage *float64 `gorm:"column:vote_average" json:"voteAverage,omitempty"`
	VoteCount   int      `gorm:"column:vote_count;not null;default:0" json:"voteCount"`
	Popularity  float64  `gorm:"column:popularity;not null;default:0" json:"popularity"`

	Genres []Genre `gorm:"many2many:movie_genres" json:"genres,omitempty"`

	Status           enums.MovieStatus `gorm:"column:status;type:movie_status;not null;default:'released'" json:"status"`
	OriginalLanguage *string           `gorm:"column:original_language" json:"originalLanguage,omitempty"`
	SpokenLanguages  pq.StringArray    `gorm:"column:spoken_languages;type:text[]" json:"spokenLanguages,omitempty"`

	IsEnriched     bool       `gorm:"column:is_enriched;not null;default:false;index" json:"isEnriched"`
	LastEnrichedAt *time.Time `gorm:"column:last_enriched_at" json:"lastEnrichedAt,omitempty"`

	FirstSeenAt time.Time `gorm:"column:first_seen_at;autoCreateTime" json:"firstSeenAt"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

const posterBaseURL = "https://image.tmdb.org/t/p/w500"
const backdropBaseURL = "https://image.tmdb.org/t/p/original"

// PosterURL resolves the stored poster path against the TMDB image CDN.
func (m *Movie) PosterURL() *string {
	if m.PosterPath == nil || *m.PosterPath == "" {
		return nil
	}
	url := posterBaseURL + *m.PosterPath
	return &url
}

// BackdropURL resolves the stored backdrop path against the TMDB image CDN.
func (m *Movie) BackdropURL() *string {
	if m.BackdropPath == nil || *m.BackdropPath == "" {
		return nil
	}
	url := backdropBaseURL + *m.BackdropPath
	return &url
}

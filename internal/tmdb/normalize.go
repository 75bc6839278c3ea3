package tmdb

import (
	"time"

	"github.com/streamatlas/streamatlas-backend/pkg/enums"
)

type movieDetailsPayload struct {
	ID               int64   `json:"id"`
	IMDbID           string  `json:"imdb_id"`
	Title            string  `json:"title"`
	OriginalTitle    string  `json:"original_title"`
	Overview         string  `json:"overview"`
	Tagline          string  `json:"tagline"`
	ReleaseDate      string  `json:"release_date"`
	Runtime          int     `json:"runtime"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	Popularity       float64 `json:"popularity"`
	Status           string  `json:"status"`
	OriginalLanguage string  `json:"original_language"`
	Genres           []Genre `json:"genres"`
	SpokenLanguages  []struct {
		ISO  string `json:"iso_639_1"`
		Name string `json:"name"`
	} `json:"spoken_languages"`
	ExternalIDs struct {
		IMDbID string `json:"imdb_id"`
	} `json:"external_ids"`
}

// MovieDetails is the provider-neutral detail record handed to enrichment.
type MovieDetails struct {
	TMDBID           int64
	IMDbID           *string
	Title            string
	OriginalTitle    string
	Overview         *string
	Tagline          *string
	ReleaseDate      *time.Time
	ReleaseYear      *int
	Runtime          *int
	PosterPath       *string
	BackdropPath     *string
	VoteAverage      float64
	VoteCount        int
	Popularity       float64
	Status           enums.MovieStatus
	OriginalLanguage *string
	SpokenLanguages  []string
	Genres           []Genre
}

// normalizeDetails maps the raw payload onto MovieDetails. Pure and total:
// malformed or missing optional fields become nil, never an error.
func normalizeDetails(raw movieDetailsPayload) MovieDetails {
	details := MovieDetails{
		TMDBID:        raw.ID,
		Title:         raw.Title,
		OriginalTitle: raw.OriginalTitle,
		VoteAverage:   raw.VoteAverage,
		VoteCount:     raw.VoteCount,
		Popularity:    raw.Popularity,
		Status:        MapStatus(raw.Status),
		Genres:        raw.Genres,
	}

	imdbID := raw.IMDbID
	if imdbID == "" {
		imdbID = raw.ExternalIDs.IMDbID
	}
	if imdbID != "" {
		details.IMDbID = &imdbID
	}

	if raw.Overview != "" {
		overview := raw.Overview
		details.Overview = &overview
	}
	if raw.Tagline != "" {
		tagline := raw.Tagline
		details.Tagline = &tagline
	}
	if raw.ReleaseDate != "" {
		if parsed, err := time.Parse("2006-01-02", raw.ReleaseDate); err == nil {
			details.ReleaseDate = &parsed
			year := parsed.Year()
			details.ReleaseYear = &year
		}
	}
	if raw.Runtime > 0 {
		runtime := raw.Runtime
		details.Runtime = &runtime
	}
	if raw.PosterPath != "" {
		poster := raw.PosterPath
		details.PosterPath = &poster
	}
	if raw.BackdropPath != "" {
		backdrop := raw.BackdropPath
		details.BackdropPath = &backdrop
	}
	if raw.OriginalLanguage != "" {
		lang := raw.OriginalLanguage
		details.OriginalLanguage = &lang
	}
	for _, l := range raw.SpokenLanguages {
		if l.ISO != "" {
			details.SpokenLanguages = append(details.SpokenLanguages, l.ISO)
		}
	}

	return details
}

// MapStatus maps the provider's free-text production status onto the
// canonical enum. Unknown values default to released.
func MapStatus(value string) enums.MovieStatus {
	switch value {
	case "Rumored":
		return enums.MovieStatusRumored
	case "Planned":
		return enums.MovieStatusPlanned
	case "In Production":
		return enums.MovieStatusInProduction
	case "Post Production":
		return enums.MovieStatusPostProduction
	case "Released":
		return enums.MovieStatusReleased
	case "Canceled":
		return enums.MovieStatusCanceled
	default:
		return enums.MovieStatusReleased
	}
}

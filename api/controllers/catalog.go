package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/streamatlas/streamatlas-backend/api/responses"
	"github.com/streamatlas/streamatlas-backend/api/validators"
	"github.com/streamatlas/streamatlas-backend/internal/movies"
	"github.com/streamatlas/streamatlas-backend/pkg/enums"
	pkgerrors "github.com/streamatlas/streamatlas-backend/pkg/errors"
	"github.com/streamatlas/streamatlas-backend/pkg/logger"
	"github.com/streamatlas/streamatlas-backend/pkg/pagination"
)

// MovieList serves the filtered, paginated movie catalog.
func MovieList(svc movies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		query, err := parseMovieListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.Search(r.Context(), *query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func parseMovieListQuery(r *http.Request) (*movies.ListQuery, error) {
	pageNum, err := validators.ParseQueryInt(r, "page", 1, 1, 100000)
	if err != nil {
		return nil, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return nil, err
	}

	query := &movies.ListQuery{
		Search:       strings.TrimSpace(r.URL.Query().Get("search")),
		GenreSlug:    strings.TrimSpace(r.URL.Query().Get("genre")),
		PlatformSlug: strings.TrimSpace(r.URL.Query().Get("platform")),
		SortBy:       strings.TrimSpace(r.URL.Query().Get("sortBy")),
		SortOrder:    strings.TrimSpace(r.URL.Query().Get("sortOrder")),
		Page:         pagination.Params{Page: pageNum, Limit: limit},
	}

	currentYear := time.Now().Year()
	if year, err := validators.ParseQueryInt(r, "year", 0, 1888, currentYear+5); err != nil {
		return nil, err
	} else if year != 0 {
		query.ReleaseYear = &year
	}

	minRating, err := validators.ParseQueryFloat(r, "minRating", 0, 10)
	if err != nil {
		return nil, err
	}
	query.MinRating = minRating

	for _, raw := range validators.ParseQueryCSV(r, "monetization") {
		parsed, err := enums.ParseMonetizationType(raw)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid monetization type").WithDetails(map[string]any{"value": raw})
		}
		query.MonetizationTypes = append(query.MonetizationTypes, string(parsed))
	}

	return query, nil
}

// MovieDetail serves one movie with its availability rows.
func MovieDetail(svc movies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		raw := chi.URLParam(r, "movieId")
		id, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid movie id"))
			return
		}

		detail, err := svc.GetMovie(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// MovieAvailability serves only the offer rows for one movie.
func MovieAvailability(svc movies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		raw := chi.URLParam(r, "movieId")
		id, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid movie id"))
			return
		}

		detail, err := svc.GetMovie(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail.Availabilities)
	}
}

// GenreList serves the catalog's genre taxonomy.
func GenreList(svc movies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		rows, err := svc.ListGenres(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// PlatformList serves the active distribution platforms.
func PlatformList(svc movies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		rows, err := svc.ListPlatforms(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// CatalogStats serves aggregate catalog counts.
func CatalogStats(svc movies.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		stats, err := svc.CatalogStats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

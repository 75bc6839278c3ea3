package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/streamatlas/streamatlas-backend/internal/availability"
	"github.com/streamatlas/streamatlas-backend/internal/justwatch"
	"github.com/streamatlas/streamatlas-backend/pkg/config"
	"github.com/streamatlas/streamatlas-backend/pkg/db/models"
	pkgerrors "github.com/streamatlas/streamatlas-backend/pkg/errors"
	"github.com/streamatlas/streamatlas-backend/pkg/logger"
	"github.com/streamatlas/streamatlas-backend/pkg/metrics"
)

// CatalogClient is the slice of the catalog provider consumed by ingestion.
type CatalogClient interface {
	FetchProviders(ctx context.Context) []justwatch.Provider
	FetchTitlesForProvider(ctx context.Context, providerID, cursor string) (*justwatch.TitlesPage, error)
}

// PlatformStore is the platform persistence surface used by the pipeline.
type PlatformStore interface {
	FindByJustWatchID(ctx context.Context, justWatchID string) (*models.Platform, error)
	FindOrCreate(ctx context.Context, justWatchID, name string, icon *string) (*models.Platform, error)
	ListActive(ctx context.Context) ([]models.Platform, error)
}

// MovieStore is the movie persistence surface used by catalog sync.
type MovieStore interface {
	FindByJustWatchID(ctx context.Context, justWatchID string) (*models.Movie, error)
	CreateOrFind(ctx context.Context, movie *models.Movie) (*models.Movie, bool, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
}

// OfferStore is the availability persistence surface used by catalog sync.
type OfferStore interface {
	Upsert(ctx context.Context, offer availability.Offer) (bool, error)
	MarkStaleAsUnavailable(ctx context.Context, platformID uuid.UUID, cutoff time.Time) (int64, error)
}

// CatalogService drives the catalog provider feed into the canonical store.
// Platforms are processed one at a time; the single rate limiter inside the
// client keeps the aggregate request rate bounded without cross-task
// coordination.
type CatalogService struct {
	client    CatalogClient
	platforms PlatformStore
	movies    MovieStore
	offers    OfferStore
	logg      *logger.Logger
	metrics   *metrics.IngestionMetrics

	pageDelay     time.Duration
	platformDelay time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// CatalogServiceParams wires the catalog service dependencies.
type CatalogServiceParams struct {
	Client    CatalogClient
	Platforms PlatformStore
	Movies    MovieStore
	Offers    OfferStore
	Logger    *logger.Logger
	Metrics   *metrics.IngestionMetrics
	Config    config.IngestionConfig
}

// NewCatalogService validates dependencies and builds the catalog service.
func NewCatalogService(params CatalogServiceParams) (*CatalogService, error) {
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog client required")
	}
	if params.Platforms == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "platform store required")
	}
	if params.Movies == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "movie store required")
	}
	if params.Offers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "offer store required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &CatalogService{
		client:        params.Client,
		platforms:     params.Platforms,
		movies:        params.Movies,
		offers:        params.Offers,
		logg:          params.Logger,
		metrics:       params.Metrics,
		pageDelay:     params.Config.PageDelay,
		platformDelay: params.Config.PlatformDelay,
		now:           time.Now,
		sleep:         sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SyncPlatforms pulls the provider list and find-or-creates a platform per
// entry. Individual failures are skipped; the count of synced platforms is
// returned.
func (s *CatalogService) SyncPlatforms(ctx context.Context) (int, error) {
	s.logg.Info(ctx, "syncing platforms from catalog feed")

	providers := s.client.FetchProviders(ctx)
	if len(providers) == 0 {
		s.logg.Warn(ctx, "no providers returned by catalog feed")
		return 0, nil
	}

	synced := 0
	for _, provider := range providers {
		externalID := provider.ID
		if provider.PackageID != 0 {
			externalID = fmt.Sprintf("%d", provider.PackageID)
		}
		name := provider.ClearName
		if name == "" {
			name = provider.ShortName
		}
		if name == "" {
			name = provider.TechnicalName
		}
		if externalID == "" || name == "" {
			continue
		}

		var icon *string
		if provider.Icon != "" {
			iconVal := provider.Icon
			icon = &iconVal
		}

		if _, err := s.platforms.FindOrCreate(ctx, externalID, name, icon); err != nil {
			s.logg.Warn(s.logg.WithPlatform(ctx, name), "skipping platform that failed to sync")
			continue
		}
		synced++
	}

	s.logg.Info(s.logg.WithField(ctx, "count", synced), "platform sync complete")
	return synced, nil
}

// PlatformResult reports one platform's ingestion outcome.
type PlatformResult struct {
	PlatformID     string `json:"platformId"`
	Movies         int    `json:"movies"`
	Availabilities int    `json:"availabilities"`
	StaleFlipped   int64  `json:"staleFlipped"`
	Error          string `json:"error,omitempty"`
}

// Summary aggregates ingestion outcomes across platforms.
type Summary struct {
	Results             []PlatformResult `json:"results"`
	TotalMovies         int              `json:"totalMovies"`
	TotalAvailabilities int              `json:"totalAvailabilities"`
	Errors              int              `json:"errors"`
}

// IngestPlatform pages the catalog feed up to maxPages on behalf of one
// platform, keeping only titles that carry an offer on it. Every kept title
// and its offers are upserted, then offers on the platform that were not
// refreshed during this pass are swept. The cutoff is captured before the
// first page so a slow run cannot sweep its own writes.
func (s *CatalogService) IngestPlatform(ctx context.Context, justWatchID string, maxPages int) (*PlatformResult, error) {
	platform, err := s.platforms.FindByJustWatchID(ctx, justWatchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load platform")
	}
	if platform == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "platform not found").WithDetails(map[string]any{"justWatchId": justWatchID})
	}

	ctx = s.logg.WithPlatform(ctx, platform.Slug)
	s.logg.Info(ctx, "ingesting movies for platform")

	runStart := s.now()
	result := &PlatformResult{PlatformID: justWatchID}

	cursor := ""
	for page := 1; page <= maxPages; page++ {
		titlesPage, err := s.client.FetchTitlesForProvider(ctx, justWatchID, cursor)
		if err != nil {
			// Mid-pagination failures abort this platform's loop only; the
			// pages already processed stay ingested.
			s.logg.Error(s.logg.WithField(ctx, "page", page), "fetching titles page failed", err)
			s.metrics.IncProviderError("catalog")
			result.Error = err.Error()
			break
		}

		for _, title := range titlesPage.Items {
			availabilities, err := s.processTitle(ctx, title, platform)
			if err != nil {
				s.logg.Error(s.logg.WithField(ctx, "title_id", title.ID), "processing title failed", err)
				continue
			}
			result.Movies++
			result.Availabilities += availabilities
		}

		// A page can filter down to nothing for this platform and still have
		// feed behind it, so only the cursor ends the loop.
		if !titlesPage.HasMore {
			break
		}
		cursor = titlesPage.NextCursor

		if err := s.sleep(ctx, s.pageDelay); err != nil {
			result.Error = err.Error()
			break
		}
	}

	flipped, err := s.offers.MarkStaleAsUnavailable(ctx, platform.ID, runStart)
	if err != nil {
		s.logg.Error(ctx, "staleness sweep failed", err)
		if result.Error == "" {
			result.Error = err.Error()
		}
	}
	result.StaleFlipped = flipped

	s.metrics.AddMoviesUpserted(platform.Slug, result.Movies)
	s.metrics.AddOffersUpserted(platform.Slug, result.Availabilities)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"movies":         result.Movies,
		"availabilities": result.Availabilities,
		"stale_flipped":  flipped,
	}), "platform ingestion complete")

	return result, nil
}

// processTitle upserts one feed title and its offers. The movie row is keyed
// by the catalog id; an existing row only has its display fields refreshed,
// and cross-reference ids are backfilled only while nil so enrichment output
// survives catalog refreshes.
func (s *CatalogService) processTitle(ctx context.Context, title justwatch.Title, platform *models.Platform) (int, error) {
	normalized := justwatch.NormalizeMovie(title)
	if normalized.JustWatchID == "" || normalized.Title == "" {
		return 0, nil
	}

	movie, err := s.movies.FindByJustWatchID(ctx, normalized.JustWatchID)
	if err != nil {
		return 0, err
	}

	if movie != nil {
		updates := map[string]any{
			"title":          normalized.Title,
			"original_title": normalized.OriginalTitle,
			"release_year":   normalized.ReleaseYear,
		}
		if movie.TMDBID == nil && normalized.TMDBID != nil {
			updates["tmdb_id"] = *normalized.TMDBID
		}
		if movie.IMDbID == nil && normalized.IMDbID != nil {
			updates["imdb_id"] = *normalized.IMDbID
		}
		if err := s.movies.UpdateFields(ctx, movie.ID, updates); err != nil {
			return 0, err
		}
	} else {
		originalTitle := normalized.OriginalTitle
		row := &models.Movie{
			JustWatchID:   normalized.JustWatchID,
			TMDBID:        normalized.TMDBID,
			IMDbID:        normalized.IMDbID,
			Title:         normalized.Title,
			OriginalTitle: &originalTitle,
			Overview:      normalized.Overview,
			ReleaseYear:   normalized.ReleaseYear,
			PosterPath:    normalized.PosterPath,
			BackdropPath:  normalized.BackdropPath,
		}
		movie, _, err = s.movies.CreateOrFind(ctx, row)
		if err != nil {
			return 0, err
		}
	}

	count := 0
	for _, offer := range justwatch.ExtractOffers(title) {
		offerPlatform := platform
		// Feeds cross-list offers fulfilled by other providers; resolve or
		// create those platforms on the fly.
		if offer.ProviderID != "" && offer.ProviderID != platform.JustWatchID {
			other, err := s.platforms.FindByJustWatchID(ctx, offer.ProviderID)
			if err != nil {
				return count, err
			}
			if other == nil && offer.ProviderName != "" {
				other, err = s.platforms.FindOrCreate(ctx, offer.ProviderID, offer.ProviderName, nil)
				if err != nil {
					return count, err
				}
			}
			offerPlatform = other
		}
		if offerPlatform == nil {
			continue
		}

		if _, err := s.offers.Upsert(ctx, availability.Offer{
			MovieID:          movie.ID,
			PlatformID:       offerPlatform.ID,
			MonetizationType: offer.MonetizationType,
			Quality:          offer.Quality,
			PriceAmount:      offer.PriceAmount,
			PriceCurrency:    offer.PriceCurrency,
			ExternalURL:      offer.URL,
		}); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

// IngestPlatforms runs IngestPlatform for each id in turn. A platform failure
// is recorded and skipped; siblings still run.
func (s *CatalogService) IngestPlatforms(ctx context.Context, justWatchIDs []string, maxPages int) *Summary {
	s.logg.Info(s.logg.WithField(ctx, "platforms", len(justWatchIDs)), "starting multi-platform ingestion")

	summary := &Summary{}
	for i, id := range justWatchIDs {
		result, err := s.IngestPlatform(ctx, id, maxPages)
		if err != nil {
			s.logg.Error(s.logg.WithField(ctx, "platform_id", id), "platform ingestion failed", err)
			summary.Results = append(summary.Results, PlatformResult{PlatformID: id, Error: err.Error()})
			summary.Errors++
		} else {
			summary.Results = append(summary.Results, *result)
			summary.TotalMovies += result.Movies
			summary.TotalAvailabilities += result.Availabilities
			if result.Error != "" {
				summary.Errors++
			}
		}

		if i < len(justWatchIDs)-1 {
			if err := s.sleep(ctx, s.platformDelay); err != nil {
				break
			}
		}
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"total_movies":         summary.TotalMovies,
		"total_availabilities": summary.TotalAvailabilities,
		"errors":               summary.Errors,
	}), "multi-platform ingestion complete")

	return summary
}

// IngestAllActive ingests every active platform.
func (s *CatalogService) IngestAllActive(ctx context.Context, maxPages int) (*Summary, error) {
	platforms, err := s.platforms.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active platforms")
	}
	if len(platforms) == 0 {
		s.logg.Warn(ctx, "no active platforms to ingest")
		return &Summary{}, nil
	}

	ids := make([]string, 0, len(platforms))
	for _, p := range platforms {
		ids = append(ids, p.JustWatchID)
	}
	return s.IngestPlatforms(ctx, ids, maxPages), nil
}

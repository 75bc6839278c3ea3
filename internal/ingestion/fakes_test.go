package ingestion

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/streamatlas/streamatlas-backend/internal/availability"
	"github.com/streamatlas/streamatlas-backend/internal/justwatch"
	"github.com/streamatlas/streamatlas-backend/internal/platforms"
	"github.com/streamatlas/streamatlas-backend/internal/tmdb"
	"github.com/streamatlas/streamatlas-backend/pkg/config"
	"github.com/streamatlas/streamatlas-backend/pkg/db/models"
	"github.com/streamatlas/streamatlas-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "ingestion-test",
		Level:       zerolog.Disabled,
		Output:      io.Discard,
	})
}

func noSleep(context.Context, time.Duration) error { return nil }

type fakeCatalogClient struct {
	mu        sync.Mutex
	providers []justwatch.Provider
	pages     map[string]*justwatch.TitlesPage
	pageErrs  map[string]error
	fetched   []string

	// blockOn, when set, parks FetchTitlesForProvider on this channel so
	// tests can hold a pipeline run in flight.
	blockOn chan struct{}
}

func (f *fakeCatalogClient) FetchProviders(context.Context) []justwatch.Provider {
	return f.providers
}

// FetchTitlesForProvider mirrors the real client: the page is served as-is
// and then narrowed to titles offering on the provider.
func (f *fakeCatalogClient) FetchTitlesForProvider(ctx context.Context, providerID, cursor string) (*justwatch.TitlesPage, error) {
	if f.blockOn != nil {
		select {
		case <-f.blockOn:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	f.fetched = append(f.fetched, cursor)
	f.mu.Unlock()

	if err, ok := f.pageErrs[cursor]; ok {
		return nil, err
	}
	page, ok := f.pages[cursor]
	if !ok {
		return &justwatch.TitlesPage{}, nil
	}

	filtered := make([]justwatch.Title, 0, len(page.Items))
	for _, item := range page.Items {
		if justwatch.HasOfferFromProvider(item, providerID) {
			filtered = append(filtered, item)
		}
	}
	return &justwatch.TitlesPage{
		Items:      filtered,
		HasMore:    page.HasMore,
		NextCursor: page.NextCursor,
		TotalCount: page.TotalCount,
	}, nil
}

type fakePlatformStore struct {
	mu      sync.Mutex
	byJWID  map[string]*models.Platform
	created []string
}

func newFakePlatformStore() *fakePlatformStore {
	return &fakePlatformStore{byJWID: map[string]*models.Platform{}}
}

func (f *fakePlatformStore) add(justWatchID, name string, active bool) *models.Platform {
	platform := &models.Platform{
		ID:          uuid.New(),
		JustWatchID: justWatchID,
		Name:        name,
		Slug:        platforms.Slugify(name),
		IsActive:    active,
	}
	f.byJWID[justWatchID] = platform
	return platform
}

func (f *fakePlatformStore) FindByJustWatchID(_ context.Context, justWatchID string) (*models.Platform, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byJWID[justWatchID], nil
}

func (f *fakePlatformStore) FindOrCreate(_ context.Context, justWatchID, name string, icon *string) (*models.Platform, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.byJWID[justWatchID]; ok {
		return existing, nil
	}
	platform := &models.Platform{
		ID:          uuid.New(),
		JustWatchID: justWatchID,
		Name:        name,
		Slug:        platforms.Slugify(name),
		Icon:        icon,
		IsActive:    true,
	}
	f.byJWID[justWatchID] = platform
	f.created = append(f.created, justWatchID)
	return platform, nil
}

func (f *fakePlatformStore) ListActive(context.Context) ([]models.Platform, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []models.Platform
	for _, p := range f.byJWID {
		if p.IsActive {
			rows = append(rows, *p)
		}
	}
	return rows, nil
}

type fakeMovieStore struct {
	mu      sync.Mutex
	byJWID  map[string]*models.Movie
	updates map[string][]map[string]any
}

func newFakeMovieStore() *fakeMovieStore {
	return &fakeMovieStore{
		byJWID:  map[string]*models.Movie{},
		updates: map[string][]map[string]any{},
	}
}

func (f *fakeMovieStore) add(movie *models.Movie) *models.Movie {
	if movie.ID == uuid.Nil {
		movie.ID = uuid.New()
	}
	f.byJWID[movie.JustWatchID] = movie
	return movie
}

func (f *fakeMovieStore) FindByJustWatchID(_ context.Context, justWatchID string) (*models.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byJWID[justWatchID], nil
}

func (f *fakeMovieStore) CreateOrFind(_ context.Context, movie *models.Movie) (*models.Movie, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.byJWID[movie.JustWatchID]; ok {
		return existing, false, nil
	}
	movie.ID = uuid.New()
	f.byJWID[movie.JustWatchID] = movie
	return movie, true, nil
}

func (f *fakeMovieStore) UpdateFields(_ context.Context, id uuid.UUID, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, movie := range f.byJWID {
		if movie.ID != id {
			continue
		}
		f.updates[movie.JustWatchID] = append(f.updates[movie.JustWatchID], fields)
		if title, ok := fields["title"].(string); ok {
			movie.Title = title
		}
		if tmdbID, ok := fields["tmdb_id"].(int64); ok {
			movie.TMDBID = &tmdbID
		}
		if imdbID, ok := fields["imdb_id"].(string); ok {
			movie.IMDbID = &imdbID
		}
		return nil
	}
	return nil
}

type offerKey struct {
	movieID    uuid.UUID
	platformID uuid.UUID
	monetize   string
}

type fakeOfferStore struct {
	mu       sync.Mutex
	offers   map[offerKey]availability.Offer
	lastSeen map[offerKey]time.Time
	swept    []uuid.UUID
	now      func() time.Time
}

func newFakeOfferStore() *fakeOfferStore {
	return &fakeOfferStore{
		offers:   map[offerKey]availability.Offer{},
		lastSeen: map[offerKey]time.Time{},
		now:      time.Now,
	}
}

func (f *fakeOfferStore) Upsert(_ context.Context, offer availability.Offer) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := offerKey{offer.MovieID, offer.PlatformID, string(offer.MonetizationType)}
	_, existed := f.offers[key]
	f.offers[key] = offer
	f.lastSeen[key] = f.now()
	return !existed, nil
}

func (f *fakeOfferStore) MarkStaleAsUnavailable(_ context.Context, platformID uuid.UUID, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swept = append(f.swept, platformID)
	var flipped int64
	for key, seen := range f.lastSeen {
		if key.platformID == platformID && seen.Before(cutoff) {
			flipped++
		}
	}
	return flipped, nil
}

type fakeMetadataClient struct {
	mu       sync.Mutex
	genres   []tmdb.Genre
	details  map[int64]*tmdb.MovieDetails
	byIMDb   map[string]*tmdb.SearchResult
	searches map[string][]tmdb.SearchResult

	detailErr  map[int64]error
	detailGets []int64
	searched   []string
}

func (f *fakeMetadataClient) GetGenres(context.Context) []tmdb.Genre {
	return f.genres
}

func (f *fakeMetadataClient) GetMovieDetails(_ context.Context, tmdbID int64) (*tmdb.MovieDetails, error) {
	f.mu.Lock()
	f.detailGets = append(f.detailGets, tmdbID)
	f.mu.Unlock()
	if err, ok := f.detailErr[tmdbID]; ok {
		return nil, err
	}
	return f.details[tmdbID], nil
}

func (f *fakeMetadataClient) FindByIMDbID(_ context.Context, imdbID string) (*tmdb.SearchResult, error) {
	return f.byIMDb[imdbID], nil
}

func (f *fakeMetadataClient) SearchMovie(_ context.Context, title string, _ *int) []tmdb.SearchResult {
	f.mu.Lock()
	f.searched = append(f.searched, title)
	f.mu.Unlock()
	return f.searches[title]
}

type fakeGenreStore struct {
	mu       sync.Mutex
	byTMDBID map[int64]*models.Genre
	upserted []models.Genre
}

func newFakeGenreStore() *fakeGenreStore {
	return &fakeGenreStore{byTMDBID: map[int64]*models.Genre{}}
}

func (f *fakeGenreStore) BulkUpsert(_ context.Context, rows []models.Genre) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range rows {
		copied := row
		copied.ID = uuid.New()
		f.byTMDBID[row.TMDBID] = &copied
		f.upserted = append(f.upserted, row)
	}
	return nil
}

func (f *fakeGenreStore) FindOrCreate(_ context.Context, tmdbID int64, name, slug string) (*models.Genre, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.byTMDBID[tmdbID]; ok {
		return existing, nil
	}
	genre := &models.Genre{ID: uuid.New(), TMDBID: tmdbID, Name: name, Slug: slug}
	f.byTMDBID[tmdbID] = genre
	return genre, nil
}

type enrichedRecord struct {
	fields map[string]any
	genres []models.Genre
}

type fakeEnrichMovieStore struct {
	mu       sync.Mutex
	pending  []models.Movie
	enriched map[uuid.UUID]enrichedRecord
	findErr  error
}

func newFakeEnrichMovieStore(pending ...models.Movie) *fakeEnrichMovieStore {
	return &fakeEnrichMovieStore{
		pending:  pending,
		enriched: map[uuid.UUID]enrichedRecord{},
	}
}

func (f *fakeEnrichMovieStore) FindNeedingEnrichment(_ context.Context, limit int) ([]models.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var rows []models.Movie
	for _, movie := range f.pending {
		if len(rows) == limit {
			break
		}
		if _, done := f.enriched[movie.ID]; !done {
			rows = append(rows, movie)
		}
	}
	return rows, nil
}

func (f *fakeEnrichMovieStore) SetEnriched(_ context.Context, movie *models.Movie, fields map[string]any, genres []models.Genre) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enriched[movie.ID] = enrichedRecord{fields: fields, genres: genres}
	return nil
}

func newTestCatalogService(client *fakeCatalogClient, platformStore *fakePlatformStore, movieStore *fakeMovieStore, offerStore *fakeOfferStore) *CatalogService {
	svc, err := NewCatalogService(CatalogServiceParams{
		Client:    client,
		Platforms: platformStore,
		Movies:    movieStore,
		Offers:    offerStore,
		Logger:    testLogger(),
		Config:    config.IngestionConfig{},
	})
	if err != nil {
		panic(err)
	}
	svc.sleep = noSleep
	return svc
}

func newTestEnrichmentService(client *fakeMetadataClient, genreStore *fakeGenreStore, movieStore *fakeEnrichMovieStore) *EnrichmentService {
	svc, err := NewEnrichmentService(EnrichmentServiceParams{
		Client: client,
		Genres: genreStore,
		Movies: movieStore,
		Logger: testLogger(),
		Config: config.IngestionConfig{EnrichBatchSize: 2},
	})
	if err != nil {
		panic(err)
	}
	svc.sleep = noSleep
	return svc
}

package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/streamatlas/streamatlas-backend/internal/tmdb"
	"github.com/streamatlas/streamatlas-backend/pkg/db/models"
)

func metadataDetails(tmdbID int64, title string, genres ...tmdb.Genre) *tmdb.MovieDetails {
	overview := "About " + title
	return &tmdb.MovieDetails{
		TMDBID:   tmdbID,
		Title:    title,
		Overview: &overview,
		Genres:   genres,
	}
}

func TestSyncGenres(t *testing.T) {
	client := &fakeMetadataClient{
		genres: []tmdb.Genre{
			{ID: 28, Name: "Action"},
			{ID: 878, Name: "Science Fiction"},
			{ID: 0, Name: "Bogus"}, // no id, skipped
		},
	}
	store := newFakeGenreStore()
	svc := newTestEnrichmentService(client, store, newFakeEnrichMovieStore())

	count, err := svc.SyncGenres(context.Background())
	if err != nil {
		t.Fatalf("sync genres: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 genres synced, got %d", count)
	}

	scifi := store.byTMDBID[878]
	if scifi == nil || scifi.Slug != "science-fiction" {
		t.Fatalf("expected slug derived from name, got %+v", scifi)
	}
}

func TestEnrichMovieByMetadataID(t *testing.T) {
	tmdbID := int64(550)
	movie := &models.Movie{ID: uuid.New(), JustWatchID: "100", Title: "Alpha", TMDBID: &tmdbID}

	client := &fakeMetadataClient{
		details: map[int64]*tmdb.MovieDetails{550: metadataDetails(550, "Alpha", tmdb.Genre{ID: 28, Name: "Action"})},
	}
	genreStore := newFakeGenreStore()
	movieStore := newFakeEnrichMovieStore()
	svc := newTestEnrichmentService(client, genreStore, movieStore)

	resolution, err := svc.EnrichMovie(context.Background(), movie)
	if err != nil {
		t.Fatalf("enrich movie: %v", err)
	}
	if resolution != resolutionID {
		t.Fatalf("expected id resolution, got %q", resolution)
	}
	if len(client.searched) != 0 {
		t.Fatal("a known metadata id must not fall through to search")
	}

	record, ok := movieStore.enriched[movie.ID]
	if !ok {
		t.Fatal("expected enrichment persisted")
	}
	if record.fields["is_enriched"] != true {
		t.Fatal("expected the enrichment flag set")
	}
	if _, ok := record.fields["tmdb_id"]; ok {
		t.Fatal("an already-populated metadata id must not be rewritten")
	}
	if len(record.genres) != 1 || record.genres[0].Slug != "action" {
		t.Fatalf("expected resolved genre rows, got %+v", record.genres)
	}
}

func TestEnrichMovieFallsBackToIMDbID(t *testing.T) {
	imdbID := "tt0137523"
	movie := &models.Movie{ID: uuid.New(), JustWatchID: "100", Title: "Alpha", IMDbID: &imdbID}

	client := &fakeMetadataClient{
		byIMDb:  map[string]*tmdb.SearchResult{imdbID: {ID: 550, Title: "Alpha"}},
		details: map[int64]*tmdb.MovieDetails{550: metadataDetails(550, "Alpha")},
	}
	movieStore := newFakeEnrichMovieStore()
	svc := newTestEnrichmentService(client, newFakeGenreStore(), movieStore)

	resolution, err := svc.EnrichMovie(context.Background(), movie)
	if err != nil {
		t.Fatalf("enrich movie: %v", err)
	}
	if resolution != resolutionIMDb {
		t.Fatalf("expected imdb resolution, got %q", resolution)
	}

	// The resolved id is backfilled onto the row.
	record := movieStore.enriched[movie.ID]
	if record.fields["tmdb_id"] != int64(550) {
		t.Fatalf("expected metadata id backfilled, got %v", record.fields["tmdb_id"])
	}
}

func TestEnrichMovieFallsBackToSearch(t *testing.T) {
	year := 1999
	movie := &models.Movie{ID: uuid.New(), JustWatchID: "100", Title: "Alpha", ReleaseYear: &year}

	client := &fakeMetadataClient{
		searches: map[string][]tmdb.SearchResult{"Alpha": {{ID: 550, Title: "Alpha"}, {ID: 551, Title: "Alpha II"}}},
		details:  map[int64]*tmdb.MovieDetails{550: metadataDetails(550, "Alpha")},
	}
	svc := newTestEnrichmentService(client, newFakeGenreStore(), newFakeEnrichMovieStore())

	resolution, err := svc.EnrichMovie(context.Background(), movie)
	if err != nil {
		t.Fatalf("enrich movie: %v", err)
	}
	if resolution != resolutionSearch {
		t.Fatalf("expected search resolution, got %q", resolution)
	}
	if len(client.detailGets) != 1 || client.detailGets[0] != 550 {
		t.Fatalf("expected details fetched for the first search hit only, got %v", client.detailGets)
	}
}

func TestEnrichMovieNoMatch(t *testing.T) {
	movie := &models.Movie{ID: uuid.New(), JustWatchID: "100", Title: "Obscure"}
	movieStore := newFakeEnrichMovieStore()
	svc := newTestEnrichmentService(&fakeMetadataClient{}, newFakeGenreStore(), movieStore)

	resolution, err := svc.EnrichMovie(context.Background(), movie)
	if err != nil {
		t.Fatalf("an unmatched movie is not an error: %v", err)
	}
	if resolution != "" {
		t.Fatalf("expected empty resolution, got %q", resolution)
	}
	if len(movieStore.enriched) != 0 {
		t.Fatal("an unmatched movie must not be marked enriched")
	}
}

func TestEnrichPendingHonorsLimit(t *testing.T) {
	first := models.Movie{ID: uuid.New(), JustWatchID: "100", Title: "Alpha"}
	second := models.Movie{ID: uuid.New(), JustWatchID: "200", Title: "Beta"}

	client := &fakeMetadataClient{
		searches: map[string][]tmdb.SearchResult{
			"Alpha": {{ID: 1}},
			"Beta":  {{ID: 2}},
		},
		details: map[int64]*tmdb.MovieDetails{
			1: metadataDetails(1, "Alpha"),
			2: metadataDetails(2, "Beta"),
		},
	}
	movieStore := newFakeEnrichMovieStore(first, second)
	svc := newTestEnrichmentService(client, newFakeGenreStore(), movieStore)

	result, err := svc.EnrichPending(context.Background(), 1)
	if err != nil {
		t.Fatalf("enrich pending: %v", err)
	}
	if result.Enriched != 1 {
		t.Fatalf("expected the limit to bound the pass, got %d", result.Enriched)
	}

	// The next pass picks up where the first left off.
	result, err = svc.EnrichPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if result.Enriched != 1 {
		t.Fatalf("expected only the remaining movie, got %d", result.Enriched)
	}
	if len(movieStore.enriched) != 2 {
		t.Fatalf("expected both movies enriched across passes, got %d", len(movieStore.enriched))
	}
}

func TestEnrichPendingIsolatesFailures(t *testing.T) {
	tmdbA, tmdbB := int64(1), int64(2)
	broken := models.Movie{ID: uuid.New(), JustWatchID: "100", Title: "Broken", TMDBID: &tmdbA}
	healthy := models.Movie{ID: uuid.New(), JustWatchID: "200", Title: "Healthy", TMDBID: &tmdbB}

	client := &fakeMetadataClient{
		details:   map[int64]*tmdb.MovieDetails{2: metadataDetails(2, "Healthy")},
		detailErr: map[int64]error{1: errors.New("boom")},
	}
	movieStore := newFakeEnrichMovieStore(broken, healthy)
	svc := newTestEnrichmentService(client, newFakeGenreStore(), movieStore)

	result, err := svc.EnrichPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("a per-movie failure must not fail the pass: %v", err)
	}
	if result.Failed != 1 || result.Enriched != 1 {
		t.Fatalf("expected one failure and one success, got %+v", result)
	}
	if _, ok := movieStore.enriched[healthy.ID]; !ok {
		t.Fatal("the healthy movie must still be enriched")
	}
}

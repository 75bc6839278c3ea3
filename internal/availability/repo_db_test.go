package availability

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/streamatlas/streamatlas-backend/pkg/db/models"
	"github.com/streamatlas/streamatlas-backend/pkg/enums"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("STREAMATLAS_DB_DSN")
	if dsn == "" {
		t.Skip("STREAMATLAS_DB_DSN is not set")
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	return conn
}

func beginTestTx(t *testing.T) *gorm.DB {
	t.Helper()
	tx := openTestDB(t).Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
	})
	return tx
}

func mustCreateTestPlatform(t *testing.T, tx *gorm.DB) *models.Platform {
	t.Helper()
	platform := &models.Platform{
		JustWatchID: fmt.Sprintf("sa_test_%s", uuid.NewString()),
		Name:        "Acme+",
		Slug:        fmt.Sprintf("acme-%s", uuid.NewString()[:8]),
		IsActive:    true,
	}
	if err := tx.Create(platform).Error; err != nil {
		t.Fatalf("create platform: %v", err)
	}
	return platform
}

func mustCreateTestMovie(t *testing.T, tx *gorm.DB, title string) *models.Movie {
	t.Helper()
	movie := &models.Movie{
		JustWatchID: fmt.Sprintf("sa_test_%s", uuid.NewString()),
		Title:       title,
	}
	if err := tx.Create(movie).Error; err != nil {
		t.Fatalf("create movie: %v", err)
	}
	return movie
}

func TestRepositoryUpsertNaturalKey(t *testing.T) {
	tx := beginTestTx(t)
	repo := NewRepository(tx)
	ctx := context.Background()

	platform := mustCreateTestPlatform(t, tx)
	movie := mustCreateTestMovie(t, tx, "Alpha")

	offer := Offer{
		MovieID:          movie.ID,
		PlatformID:       platform.ID,
		MonetizationType: enums.MonetizationFlatrate,
		Quality:          enums.QualityHD,
	}

	created, err := repo.Upsert(ctx, offer)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !created {
		t.Fatal("first upsert must insert")
	}

	var firstRow models.Availability
	if err := tx.Where("movie_id = ?", movie.ID).First(&firstRow).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}

	offer.Quality = enums.Quality4K
	created, err = repo.Upsert(ctx, offer)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created {
		t.Fatal("re-observing the same triple must not insert")
	}

	var count int64
	if err := tx.Model(&models.Availability{}).Where("movie_id = ?", movie.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one row for the triple, got %d", count)
	}

	var refreshed models.Availability
	if err := tx.Where("id = ?", firstRow.ID).First(&refreshed).Error; err != nil {
		t.Fatalf("reload row: %v", err)
	}
	if refreshed.Quality != enums.Quality4K {
		t.Fatalf("expected refreshed quality, got %s", refreshed.Quality)
	}
	if refreshed.LastSeenAt.Before(firstRow.LastSeenAt) {
		t.Fatal("lastSeenAt must advance on refresh")
	}

	// A different monetization type for the same movie/platform is a new row.
	offer.MonetizationType = enums.MonetizationRent
	created, err = repo.Upsert(ctx, offer)
	if err != nil {
		t.Fatalf("third upsert: %v", err)
	}
	if !created {
		t.Fatal("different monetization type must insert")
	}
	if err := tx.Model(&models.Availability{}).Where("movie_id = ?", movie.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected two rows, got %d", count)
	}
}

func TestRepositoryMarkStaleAsUnavailable(t *testing.T) {
	tx := beginTestTx(t)
	repo := NewRepository(tx)
	ctx := context.Background()

	platform := mustCreateTestPlatform(t, tx)
	staleMovie := mustCreateTestMovie(t, tx, "Stale")
	freshMovie := mustCreateTestMovie(t, tx, "Fresh")

	past := time.Now().Add(-2 * time.Hour)
	repo.now = func() time.Time { return past }
	if _, err := repo.Upsert(ctx, Offer{
		MovieID:          staleMovie.ID,
		PlatformID:       platform.ID,
		MonetizationType: enums.MonetizationFlatrate,
		Quality:          enums.QualityHD,
	}); err != nil {
		t.Fatalf("seed stale offer: %v", err)
	}

	repo.now = time.Now
	if _, err := repo.Upsert(ctx, Offer{
		MovieID:          freshMovie.ID,
		PlatformID:       platform.ID,
		MonetizationType: enums.MonetizationFlatrate,
		Quality:          enums.QualityHD,
	}); err != nil {
		t.Fatalf("seed fresh offer: %v", err)
	}

	cutoff := time.Now().Add(-time.Hour)
	flipped, err := repo.MarkStaleAsUnavailable(ctx, platform.ID, cutoff)
	if err != nil {
		t.Fatalf("mark stale: %v", err)
	}
	if flipped != 1 {
		t.Fatalf("expected exactly one row flipped, got %d", flipped)
	}

	var stale models.Availability
	if err := tx.Where("movie_id = ?", staleMovie.ID).First(&stale).Error; err != nil {
		t.Fatalf("load stale: %v", err)
	}
	if stale.IsAvailable {
		t.Fatal("stale offer must be flipped unavailable")
	}
	if stale.LastUnavailableAt == nil {
		t.Fatal("lastUnavailableAt must be stamped")
	}

	var fresh models.Availability
	if err := tx.Where("movie_id = ?", freshMovie.ID).First(&fresh).Error; err != nil {
		t.Fatalf("load fresh: %v", err)
	}
	if !fresh.IsAvailable {
		t.Fatal("fresh offer must be untouched")
	}
}

func TestRepositoryFindByMovie(t *testing.T) {
	tx := beginTestTx(t)
	repo := NewRepository(tx)
	ctx := context.Background()

	platform := mustCreateTestPlatform(t, tx)
	movie := mustCreateTestMovie(t, tx, "Alpha")

	if _, err := repo.Upsert(ctx, Offer{
		MovieID:          movie.ID,
		PlatformID:       platform.ID,
		MonetizationType: enums.MonetizationFlatrate,
		Quality:          enums.QualityHD,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rows, err := repo.FindByMovie(ctx, movie.ID)
	if err != nil {
		t.Fatalf("find by movie: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one offer, got %d", len(rows))
	}
	if rows[0].Platform == nil || rows[0].Platform.ID != platform.ID {
		t.Fatalf("expected platform preloaded, got %+v", rows[0].Platform)
	}
}

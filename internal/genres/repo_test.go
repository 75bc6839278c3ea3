package genres

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/streamatlas/streamatlas-backend/pkg/db/models"
)

func setupGenresTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS genres (
  id TEXT PRIMARY KEY,
  tmdb_id INTEGER NOT NULL UNIQUE,
  name TEXT NOT NULL,
  slug TEXT NOT NULL UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func TestFindOrCreateIsIdempotent(t *testing.T) {
	repo := NewRepository(setupGenresTestDB(t))
	ctx := context.Background()

	created, err := repo.FindOrCreate(ctx, 28, "Action", "action")
	require.NoError(t, err)
	require.NotNil(t, created)

	again, err := repo.FindOrCreate(ctx, 28, "Action", "action")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, created.ID, again.ID)

	rows, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFindByTMDBIDMissingReturnsNil(t *testing.T) {
	repo := NewRepository(setupGenresTestDB(t))

	genre, err := repo.FindByTMDBID(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, genre)
}

func TestBulkUpsertRefreshesNames(t *testing.T) {
	repo := NewRepository(setupGenresTestDB(t))
	ctx := context.Background()

	initial := []models.Genre{
		{ID: uuid.New(), TMDBID: 28, Name: "Action", Slug: "action"},
		{ID: uuid.New(), TMDBID: 878, Name: "Sci-Fi", Slug: "science-fiction"},
	}
	require.NoError(t, repo.BulkUpsert(ctx, initial))

	refreshed := []models.Genre{
		{ID: uuid.New(), TMDBID: 878, Name: "Science Fiction", Slug: "science-fiction"},
	}
	require.NoError(t, repo.BulkUpsert(ctx, refreshed))

	rows, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byTMDBID := map[int64]models.Genre{}
	for _, row := range rows {
		byTMDBID[row.TMDBID] = row
	}
	assert.Equal(t, "Science Fiction", byTMDBID[878].Name)
	assert.Equal(t, initial[1].ID, byTMDBID[878].ID)
}

func TestListOrdersByName(t *testing.T) {
	repo := NewRepository(setupGenresTestDB(t))
	ctx := context.Background()

	seed := []models.Genre{
		{ID: uuid.New(), TMDBID: 37, Name: "Western", Slug: "western"},
		{ID: uuid.New(), TMDBID: 16, Name: "Animation", Slug: "animation"},
		{ID: uuid.New(), TMDBID: 80, Name: "Crime", Slug: "crime"},
	}
	require.NoError(t, repo.BulkUpsert(ctx, seed))

	rows, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Animation", rows[0].Name)
	assert.Equal(t, "Crime", rows[1].Name)
	assert.Equal(t, "Western", rows[2].Name)
}

package settings

import (
	"context"
	"testing"

	"miniature_creator/databases/sqlite"
	"miniature_creator/entities"
	"miniature_creator/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) Repository {
	t.Helper()

	db, err := sqlite.New(context.Background(), sqlite.Config{Path: sqlite.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := NewRepository(&Config{DB: db})
	require.NoError(t, err)

	return repo
}

func TestGetMissingKey(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get(context.Background(), "api_key")
	assert.True(t, repositories.IsNotFound(err))
}

func TestUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.Upsert(ctx, &entities.Setting{Key: "api_key", Value: "AIzaOld"})
	require.NoError(t, err)

	_, err = repo.Upsert(ctx, &entities.Setting{Key: "api_key", Value: "AIzaNew"})
	require.NoError(t, err)

	got, err := repo.Get(ctx, "api_key")
	require.NoError(t, err)
	assert.Equal(t, "AIzaNew", got.Value)
}

func TestUpsertRequiresKey(t *testing.T) {
	_, err := newTestRepo(t).Upsert(context.Background(), &entities.Setting{Value: "x"})
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.Upsert(ctx, &entities.Setting{Key: "k", Value: "v"})
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, "k"))

	_, err = repo.Get(ctx, "k")
	assert.True(t, repositories.IsNotFound(err))
}

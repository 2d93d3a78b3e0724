package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"miniature_creator/clock"
	"miniature_creator/databases/sqlite"
	"miniature_creator/entities"
	"miniature_creator/identifiers"
	"miniature_creator/names"
	"miniature_creator/repositories/collections"
	"miniature_creator/repositories/miniatures"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingSaves fails every Save after the first okSaves, inside or outside a
// transaction.
type failingSaves struct {
	miniatures.Repository
	okSaves *int
}

func (r *failingSaves) Save(ctx context.Context, m *entities.Miniature) (*entities.Miniature, error) {
	if *r.okSaves == 0 {
		return nil, errors.New("process killed")
	}

	*r.okSaves--

	return r.Repository.Save(ctx, m)
}

func (r *failingSaves) WithTx(tx *sql.Tx) miniatures.Repository {
	return &failingSaves{Repository: r.Repository.WithTx(tx), okSaves: r.okSaves}
}

type fixture struct {
	db          *sql.DB
	collections collections.Repository
	miniatures  miniatures.Repository
	clock       *clock.ManualClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.New(context.Background(), sqlite.Config{Path: filepath.Join(t.TempDir(), "boot.sqlite")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clk := clock.NewManualClock(time.UnixMilli(1_700_000_000_000))

	collectionRepo, err := collections.NewRepository(&collections.Config{DB: db, Clock: clk})
	require.NoError(t, err)

	miniatureRepo, err := miniatures.NewRepository(&miniatures.Config{DB: db, Clock: clk})
	require.NoError(t, err)

	return &fixture{db: db, collections: collectionRepo, miniatures: miniatureRepo, clock: clk}
}

func (f *fixture) bootstrapper(t *testing.T) *Bootstrapper {
	t.Helper()

	return f.bootstrapperWith(t, f.miniatures)
}

func (f *fixture) bootstrapperWith(t *testing.T, miniatureRepo miniatures.Repository) *Bootstrapper {
	t.Helper()

	gen := names.NewGenerator(7)

	b, err := New(Config{
		DB:          f.db,
		Collections: f.collections,
		Miniatures:  miniatureRepo,
		NewName:     gen.Next,
		Clock:       f.clock,
	})
	require.NoError(t, err)

	return b
}

func (f *fixture) seedLegacyMiniature(t *testing.T, name string) identifiers.MiniatureID {
	t.Helper()

	id := identifiers.NewMiniatureID()

	_, err := f.miniatures.Save(context.Background(), &entities.Miniature{ID: id, Name: name})
	require.NoError(t, err)

	f.clock.Advance(time.Second)

	return id
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestRunCreatesDefaultCollectionAndReassigns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	untitled := f.seedLegacyMiniature(t, names.LegacyPlaceholder)
	named := f.seedLegacyMiniature(t, "Goblin Boss")

	report, err := f.bootstrapper(t).Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.DefaultCollectionCreated)
	assert.Equal(t, 2, report.MiniaturesReassigned)
	assert.Equal(t, 1, report.MiniaturesRenamed)

	all, err := f.collections.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, DefaultCollectionName, all[0].Name)

	got, err := f.miniatures.Get(ctx, untitled)
	require.NoError(t, err)
	assert.Equal(t, all[0].ID, got.CollectionID)
	assert.NotEqual(t, names.LegacyPlaceholder, got.Name)

	got, err = f.miniatures.Get(ctx, named)
	require.NoError(t, err)
	assert.Equal(t, all[0].ID, got.CollectionID)
	assert.Equal(t, "Goblin Boss", got.Name)
}

func TestRunBackfillsDescriptions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Rows written before the description column existed carry NULL.
	_, err := f.db.Exec(`INSERT INTO collections (id, name, created_at, updated_at) VALUES ('c1', 'Old', 1, 1);`)
	require.NoError(t, err)

	report, err := f.bootstrapper(t).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.DescriptionsBackfilled)
	assert.False(t, report.DefaultCollectionCreated)

	missing, err := f.collections.ListMissingDescription(ctx)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.seedLegacyMiniature(t, names.LegacyPlaceholder)
	f.seedLegacyMiniature(t, names.LegacyPlaceholder)

	_, err := f.bootstrapper(t).Run(ctx)
	require.NoError(t, err)

	collectionsAfterFirst, err := f.collections.List(ctx)
	require.NoError(t, err)
	miniaturesAfterFirst, err := f.miniatures.List(ctx)
	require.NoError(t, err)

	// A fresh load gets a fresh Bootstrapper, so the second pass really runs.
	report, err := f.bootstrapper(t).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)

	collectionsAfterSecond, err := f.collections.List(ctx)
	require.NoError(t, err)
	miniaturesAfterSecond, err := f.miniatures.List(ctx)
	require.NoError(t, err)

	assert.Equal(t, collectionsAfterFirst, collectionsAfterSecond)
	assert.Equal(t, miniaturesAfterFirst, miniaturesAfterSecond)
}

func TestRunOncePerBootstrapper(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.bootstrapper(t)

	first, err := b.Run(ctx)
	require.NoError(t, err)
	assert.True(t, first.DefaultCollectionCreated)

	_, err = f.collections.Save(ctx, &entities.Collection{ID: "other", Name: "Other"})
	require.NoError(t, err)
	_, err = f.db.Exec(`UPDATE collections SET description = NULL;`)
	require.NoError(t, err)

	second, err := b.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Report{}, second)

	missing, err := f.collections.ListMissingDescription(ctx)
	require.NoError(t, err)
	assert.Len(t, missing, 2)
}

func TestInterruptedRunResumes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first := f.seedLegacyMiniature(t, names.LegacyPlaceholder)
	second := f.seedLegacyMiniature(t, names.LegacyPlaceholder)

	okSaves := 1

	_, err := f.bootstrapperWith(t, &failingSaves{Repository: f.miniatures, okSaves: &okSaves}).Run(ctx)
	require.Error(t, err)

	all, err := f.collections.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	got, err := f.miniatures.Get(ctx, first)
	require.NoError(t, err)
	assert.True(t, got.CollectionID.IsZero())
	assert.Equal(t, names.LegacyPlaceholder, got.Name)

	report, err := f.bootstrapper(t).Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.DefaultCollectionCreated)
	assert.Equal(t, 2, report.MiniaturesReassigned)
	assert.Equal(t, 2, report.MiniaturesRenamed)

	all, err = f.collections.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	for _, id := range []identifiers.MiniatureID{first, second} {
		got, err := f.miniatures.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, all[0].ID, got.CollectionID)
		assert.NotEqual(t, names.LegacyPlaceholder, got.Name)
	}
}

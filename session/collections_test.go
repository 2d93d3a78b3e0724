package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"miniature_creator/entities"
	"miniature_creator/identifiers"
	"miniature_creator/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCollection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.clock.Advance(time.Minute)

	created, err := f.session.CreateCollection(ctx, CollectionInput{Name: "  Undead  ", Description: "pale, ragged"})
	require.NoError(t, err)
	assert.Equal(t, "Undead", created.Name)

	st := f.session.State()
	require.Len(t, st.Collections, 2)
	assert.Equal(t, created.ID, st.Collections[1].ID)
	assert.Equal(t, "pale, ragged", st.Collections[1].Description)
}

func TestCollectionInputValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name  string
		input CollectionInput
		field string
	}{
		{name: "empty name", input: CollectionInput{Name: "  "}, field: "name"},
		{name: "long name", input: CollectionInput{Name: strings.Repeat("x", 101)}, field: "name"},
		{name: "long description", input: CollectionInput{Name: "ok", Description: strings.Repeat("y", 4001)}, field: "description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.session.CreateCollection(ctx, tt.input)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	assert.Len(t, f.session.State().Collections, 1)
}

func TestUpdateCollection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id := f.session.State().Collections[0].ID

	require.NoError(t, f.session.UpdateCollection(ctx, id, CollectionInput{Name: "Orcs", Description: "green"}))

	st := f.session.State()
	assert.Equal(t, "Orcs", st.Collections[0].Name)
	assert.Equal(t, "green", st.Collections[0].Description)

	assert.NoError(t, f.session.UpdateCollection(ctx, "missing", CollectionInput{Name: "x"}))
	assert.ErrorIs(t, f.session.UpdateCollection(ctx, id, CollectionInput{}), ErrValidation)
}

func TestDeleteCollectionRefusesWhenNotEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id := f.session.State().Collections[0].ID

	miniID, err := f.session.NewMiniature(ctx, id)
	require.NoError(t, err)

	before, err := f.store.Miniatures.Get(ctx, miniID)
	require.NoError(t, err)

	deleted, err := f.session.DeleteCollection(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = f.store.Collections.Get(ctx, id)
	require.NoError(t, err)

	after, err := f.store.Miniatures.Get(ctx, miniID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, f.session.State().Collections, 1)
}

func TestDeleteEmptyCollection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.session.CreateCollection(ctx, CollectionInput{Name: "Temp"})
	require.NoError(t, err)

	deleted, err := f.session.DeleteCollection(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = f.store.Collections.Get(ctx, created.ID)
	assert.True(t, repositories.IsNotFound(err))
	assert.Len(t, f.session.State().Collections, 1)
}

func TestDeleteUnknownCollection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	before, err := f.store.Collections.List(ctx)
	require.NoError(t, err)

	deleted, err := f.session.DeleteCollection(ctx, identifiers.NewCollectionID())
	require.NoError(t, err)
	assert.False(t, deleted)

	after, err := f.store.Collections.List(ctx)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestNewMiniatureInCollection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.session

	collectionID := s.State().Collections[0].ID

	id, err := s.NewMiniature(ctx, collectionID)
	require.NoError(t, err)

	st := s.State()
	assert.Equal(t, id, st.CurrentMiniatureID)
	assert.Equal(t, collectionID, st.CurrentCollectionID)

	meta, ok := st.CurrentMiniature()
	require.True(t, ok)
	assert.NotEmpty(t, meta.Name)
	assert.Empty(t, meta.FrontalThumbDataURL)

	// A lazily recomputed record keeps the collection it was filed in.
	_, err = s.AddImage(entities.ViewFrontal, entities.GeneratedImage{DataURI: pngURI(t, red), Prompt: "p"})
	require.NoError(t, err)
	s.Flush()

	m, err := f.store.Miniatures.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, collectionID, m.CollectionID)
	assert.Equal(t, meta.Name, m.Name)

	_, err = s.NewMiniature(ctx, "no-such-collection")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, id, s.State().CurrentMiniatureID)
}

func TestMoveMiniToCollection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.session

	from := s.State().Collections[0].ID

	to, err := s.CreateCollection(ctx, CollectionInput{Name: "Elsewhere"})
	require.NoError(t, err)

	id, err := s.NewMiniature(ctx, from)
	require.NoError(t, err)

	require.NoError(t, s.MoveMiniToCollection(ctx, id, to.ID))

	m, err := f.store.Miniatures.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, to.ID, m.CollectionID)
	assert.Equal(t, to.ID, s.State().CurrentCollectionID)

	count, err := f.store.Miniatures.CountByCollection(ctx, from)
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.NoError(t, s.MoveMiniToCollection(ctx, id, "missing"))
	assert.NoError(t, s.MoveMiniToCollection(ctx, "missing", to.ID))

	m, err = f.store.Miniatures.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, to.ID, m.CollectionID)
}

func TestRenameAndDeleteMiniature(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.session

	_, err := s.AddImage(entities.ViewFrontal, entities.GeneratedImage{DataURI: pngURI(t, red), Prompt: "p"})
	require.NoError(t, err)
	s.Flush()

	id := s.State().CurrentMiniatureID

	assert.ErrorIs(t, s.RenameMiniature(ctx, id, "  "), ErrValidation)
	assert.NoError(t, s.RenameMiniature(ctx, "missing", "x"))

	require.NoError(t, s.RenameMiniature(ctx, id, "Bog Witch"))

	st := s.State()
	meta, ok := st.CurrentMiniature()
	require.True(t, ok)
	assert.Equal(t, "Bog Witch", meta.Name)

	require.NoError(t, s.DeleteMiniature(ctx, id))

	st = s.State()
	assert.True(t, st.CurrentMiniatureID.IsZero())
	assert.Empty(t, st.Frontal.Images)
	assert.Empty(t, st.Miniatures)

	imgs, err := f.store.Images.ListByMiniature(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, imgs)
}

func TestLoadUnknownMiniatureChangesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.session

	_, err := s.AddImage(entities.ViewFrontal, entities.GeneratedImage{DataURI: pngURI(t, red), Prompt: "p"})
	require.NoError(t, err)
	s.Flush()

	before := s.State()

	require.NoError(t, s.LoadMiniature(ctx, "missing"))
	assert.Equal(t, before, s.State())
}

func TestLoadFallsBackToFirstImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.session

	a, err := s.AddImage(entities.ViewBase, entities.GeneratedImage{DataURI: pngURI(t, red), Prompt: "A"})
	require.NoError(t, err)
	_, err = s.AddImage(entities.ViewBase, entities.GeneratedImage{DataURI: pngURI(t, blue), Prompt: "B"})
	require.NoError(t, err)
	s.Flush()

	id := s.State().CurrentMiniatureID

	// A record that lost its selection.
	m, err := f.store.Miniatures.Get(ctx, id)
	require.NoError(t, err)
	m.SelectedImages = entities.SelectedImages{}
	_, err = f.store.Miniatures.Save(ctx, m)
	require.NoError(t, err)

	require.NoError(t, s.LoadMiniature(ctx, id))
	assert.Equal(t, a, s.State().Base.SelectedImageID)
}

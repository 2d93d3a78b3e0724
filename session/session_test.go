package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"miniature_creator/blob_codec"
	"miniature_creator/clock"
	"miniature_creator/entities"
	"miniature_creator/gemini_api"
	"miniature_creator/names"
	"miniature_creator/persist_queue"
	"miniature_creator/storage"
	"miniature_creator/thumbnail_renderer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateImage(ctx context.Context, req *gemini_api.Request) gemini_api.Result {
	args := m.Called(ctx, req)

	return args.Get(0).(gemini_api.Result)
}

// flakyStore fails every Open while fail is set.
type flakyStore struct {
	inner StoreOpener
	fail  atomic.Bool
}

func (f *flakyStore) Open(ctx context.Context) (*storage.Store, error) {
	if f.fail.Load() {
		return nil, errors.New("store unavailable")
	}

	return f.inner.Open(ctx)
}

type failingRenderer struct{}

func (failingRenderer) Thumbnail(string) (string, error) {
	return "", thumbnail_renderer.ErrThumbnail
}

type fixture struct {
	session   *Session
	store     *storage.Store
	flaky     *flakyStore
	generator *mockGenerator
	queue     persist_queue.Queue
	renderer  thumbnail_renderer.Renderer
	clock     *clock.ManualClock
}

type fixtureOptions struct {
	workers  int
	renderer thumbnail_renderer.Renderer
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, fixtureOptions{})
}

func newFixtureWith(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()

	ctx := context.Background()
	clk := clock.NewManualClock(time.UnixMilli(1_700_000_000_000))

	provider := storage.NewProvider(storage.Config{
		Path:    filepath.Join(t.TempDir(), "session.sqlite"),
		Clock:   clk,
		NewName: names.NewGenerator(1).Next,
	})

	if opts.workers == 0 {
		opts.workers = 4
	}

	queue, err := persist_queue.New(persist_queue.Config{Workers: opts.workers})
	require.NoError(t, err)

	renderer := opts.renderer
	if renderer == nil {
		renderer, err = thumbnail_renderer.New(thumbnail_renderer.Config{})
		require.NoError(t, err)
	}

	flaky := &flakyStore{inner: provider}
	generator := &mockGenerator{}

	s, err := New(Config{
		Store:      flaky,
		Generator:  generator,
		Thumbnails: renderer,
		Queue:      queue,
		Clock:      clk,
		NewName:    names.NewGenerator(2).Next,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
		_ = provider.Close()
	})

	require.NoError(t, s.Init(ctx))

	store, err := provider.Open(ctx)
	require.NoError(t, err)

	return &fixture{
		session:   s,
		store:     store,
		flaky:     flaky,
		generator: generator,
		queue:     queue,
		renderer:  renderer,
		clock:     clk,
	}
}

func pngURI(t *testing.T, c color.RGBA) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 16, 24))
	for x := 0; x < 16; x++ {
		for y := 0; y < 24; y++ {
			img.Set(x, y, c)
		}
	}

	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))

	uri, err := blob_codec.ToDataURI(&blob_codec.Blob{MimeType: "image/png", Data: buf.Bytes()})
	require.NoError(t, err)

	return uri
}

var (
	red   = color.RGBA{R: 220, A: 255}
	green = color.RGBA{G: 220, A: 255}
	blue  = color.RGBA{B: 220, A: 255}
)

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestInitLoadsLists(t *testing.T) {
	f := newFixture(t)

	st := f.session.State()
	require.Len(t, st.Collections, 1)
	assert.Equal(t, "Example collection", st.Collections[0].Name)
	assert.Empty(t, st.Miniatures)
	assert.Equal(t, entities.ViewFrontal, st.ActiveTab)
	assert.Equal(t, entities.DefaultGeminiModel, st.GeminiModel)
	assert.True(t, st.CurrentMiniatureID.IsZero())
}

func TestInitUsesDefaultAPIKeyUntilOneIsSaved(t *testing.T) {
	f := newFixture(t)

	fresh, err := New(Config{
		Store:         f.flaky,
		Generator:     f.generator,
		Thumbnails:    f.renderer,
		Queue:         f.queue,
		DefaultAPIKey: " AIzaFromConfig ",
	})
	require.NoError(t, err)
	require.NoError(t, fresh.Init(context.Background()))
	assert.Equal(t, "AIzaFromConfig", fresh.State().APIKey)

	require.NoError(t, fresh.SetAPIKey(context.Background(), "AIzaSaved"))
	require.NoError(t, f.session.Init(context.Background()))
	assert.Equal(t, "AIzaSaved", f.session.State().APIKey)
}

func TestSetAPIKeyValidates(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		key  string
	}{
		{name: "empty", key: ""},
		{name: "blank", key: "   "},
		{name: "wrong prefix", key: "sk-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.session.SetAPIKey(context.Background(), tt.key)

			require.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "key", verr.Field)
		})
	}

	assert.Empty(t, f.session.State().APIKey)
}

func TestSetAPIKeyPersistenceFailureIsNotReturned(t *testing.T) {
	f := newFixture(t)
	f.flaky.fail.Store(true)

	require.NoError(t, f.session.SetAPIKey(context.Background(), "AIzaKey"))
	assert.Equal(t, "AIzaKey", f.session.State().APIKey)
}

func TestNavigationGating(t *testing.T) {
	f := newFixture(t)
	s := f.session

	assert.True(t, s.CanNavigateToTab(entities.ViewFrontal))
	assert.False(t, s.CanNavigateToTab(entities.ViewBack))
	assert.False(t, s.CanNavigateToTab(entities.ViewBase))
	assert.False(t, s.SetActiveTab(entities.ViewBack))

	_, err := s.AddImage(entities.ViewFrontal, entities.GeneratedImage{DataURI: pngURI(t, red), Prompt: "f"})
	require.NoError(t, err)

	assert.True(t, s.CanNavigateToTab(entities.ViewBack))
	assert.False(t, s.CanNavigateToTab(entities.ViewBase))

	_, err = s.AddImage(entities.ViewBack, entities.GeneratedImage{DataURI: pngURI(t, green), Prompt: "b"})
	require.NoError(t, err)

	assert.True(t, s.CanNavigateToTab(entities.ViewBase))
	assert.True(t, s.SetActiveTab(entities.ViewBase))
	assert.Equal(t, entities.ViewBase, s.State().ActiveTab)

	s.Flush()
}

func TestSubscribeDeliversLatestState(t *testing.T) {
	f := newFixture(t)

	ch, cancel := f.session.Subscribe()

	initial := <-ch
	assert.False(t, initial.Back.IsGenerating)

	require.NoError(t, f.session.SetGenerating(entities.ViewBack, true))
	require.NoError(t, f.session.SetGenerating(entities.ViewBase, true))

	latest := <-ch
	assert.True(t, latest.Back.IsGenerating)
	assert.True(t, latest.Base.IsGenerating)

	select {
	case st := <-ch:
		t.Fatalf("unexpected extra snapshot: %+v", st)
	default:
	}

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
}

func TestSetModel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.session

	assert.ErrorIs(t, s.SetModel("gpt-image"), ErrValidation)

	collection := f.session.State().Collections[0]

	id, err := s.NewMiniature(ctx, collection.ID)
	require.NoError(t, err)

	require.NoError(t, s.SetModel(entities.GeminiModelProImage))
	s.Flush()

	m, err := f.store.Miniatures.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entities.GeminiModelProImage, m.GeminiModel)
}

func TestSetModelOnScratchMiniatureWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.session.NewMiniature(ctx, "")
	require.NoError(t, err)

	require.NoError(t, f.session.SetModel(entities.GeminiModelProImage))
	f.session.Flush()

	_, err = f.store.Miniatures.Get(ctx, id)
	assert.Error(t, err)
	assert.Empty(t, f.session.State().Miniatures)
}

func newGateTask(gate <-chan struct{}) persist_queue.Task {
	return persist_queue.Task{
		Name: "gate",
		Run: func(context.Context) error {
			<-gate

			return nil
		},
	}
}

func mustBinary(t *testing.T, uri string) []byte {
	t.Helper()

	blob, err := blob_codec.ToBinary(uri)
	require.NoError(t, err)

	return blob.Data
}

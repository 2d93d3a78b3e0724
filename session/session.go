// Package session holds the in-memory working state of the editor and keeps
// it consistent with the store.
//
// Mutations update memory synchronously under one lock, then persist. Image
// additions and selection changes persist on a background queue and never
// report failure to the caller; deletions and collection edits are awaited.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"miniature_creator/clock"
	"miniature_creator/entities"
	"miniature_creator/gemini_api"
	"miniature_creator/names"
	"miniature_creator/persist_queue"
	"miniature_creator/repositories"
	"miniature_creator/storage"
	"miniature_creator/thumbnail_renderer"

	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"
)

const apiKeySetting = "api_key"

const (
	thumbnailCacheTTL     = 30 * time.Minute
	thumbnailCacheCleanup = time.Hour
)

// StoreOpener hands out the shared store. *storage.Provider implements it.
type StoreOpener interface {
	Open(ctx context.Context) (*storage.Store, error)
}

type Config struct {
	Store      StoreOpener
	Generator  gemini_api.Generator
	Thumbnails thumbnail_renderer.Renderer
	Queue      persist_queue.Queue
	Clock      clock.Clock
	Logger     *slog.Logger
	// NewName names miniatures created without one; defaults to names.Random.
	NewName func() string
	// DefaultAPIKey is used until a credential has been saved.
	DefaultAPIKey string
}

type Session struct {
	store         StoreOpener
	generator     gemini_api.Generator
	thumbnails    thumbnail_renderer.Renderer
	queue         persist_queue.Queue
	clock         clock.Clock
	log           *slog.Logger
	newName       func() string
	defaultAPIKey string
	validate      *validator.Validate
	thumbCache    *cache.Cache

	mu    sync.Mutex
	state State
	// lastSeq is the last append sequence handed out.
	lastSeq int64

	subs *broadcaster
}

func New(cfg Config) (*Session, error) {
	if cfg.Store == nil {
		return nil, errors.New("missing store")
	}

	if cfg.Generator == nil {
		return nil, errors.New("missing generator")
	}

	if cfg.Thumbnails == nil {
		return nil, errors.New("missing thumbnail renderer")
	}

	if cfg.Queue == nil {
		return nil, errors.New("missing persist queue")
	}

	s := &Session{
		store:         cfg.Store,
		generator:     cfg.Generator,
		thumbnails:    cfg.Thumbnails,
		queue:         cfg.Queue,
		clock:         cfg.Clock,
		log:           cfg.Logger,
		newName:       cfg.NewName,
		defaultAPIKey: strings.TrimSpace(cfg.DefaultAPIKey),
		validate:      validator.New(),
		thumbCache:    cache.New(thumbnailCacheTTL, thumbnailCacheCleanup),
		state:         emptyState(),
		subs:          newBroadcaster(),
	}

	if s.clock == nil {
		s.clock = clock.NewClock()
	}

	if s.log == nil {
		s.log = slog.Default()
	}

	if s.newName == nil {
		s.newName = names.Random
	}

	return s, nil
}

// Init loads the saved credential and the navigation lists.
func (s *Session) Init(ctx context.Context) error {
	const op = "session.Session.Init"

	log := s.log.With(slog.String("op", op))

	store, err := s.store.Open(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	apiKey := s.defaultAPIKey

	setting, err := store.Settings.Get(ctx, apiKeySetting)
	switch {
	case err == nil:
		apiKey = setting.Value
	case !repositories.IsNotFound(err):
		log.Warn("failed to read saved API key", slog.Any("err", err))
	}

	collections, err := listCollections(ctx, store)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	miniatures, err := listMiniatures(ctx, store)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.APIKey = apiKey
	s.state.Collections = collections
	s.state.Miniatures = miniatures
	s.publishLocked()

	return nil
}

// State returns a snapshot of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.clone()
}

// Subscribe streams state snapshots, starting with the current one. A slow
// reader only ever sees the newest snapshot. cancel closes the channel.
func (s *Session) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.subs.subscribe(s.state.clone())
}

// Failures exposes background persistence failures for diagnostics.
func (s *Session) Failures() <-chan persist_queue.Failure {
	return s.queue.Failures()
}

// Flush blocks until every background persistence chain started so far has
// finished.
func (s *Session) Flush() {
	s.queue.Wait()
}

// Close stops the background queue after draining it and closes every
// subscription.
func (s *Session) Close() {
	s.queue.Stop()
	s.subs.closeAll()
}

func (s *Session) publishLocked() {
	s.subs.publish(s.state.clone())
}

func (s *Session) update(fn func(st *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.state)
	s.publishLocked()
}

func (s *Session) enqueue(task persist_queue.Task) {
	err := s.queue.Enqueue(task)
	if err != nil {
		s.log.Warn("background persistence not scheduled",
			slog.String("task", task.Name),
			slog.String("miniature_id", task.MiniatureID.String()),
			slog.Any("err", err))
	}
}

type apiKeyInput struct {
	Key string `validate:"required,startswith=AIza"`
}

// SetAPIKey validates and stores the credential. Only validation failures
// are returned; a failed write is logged and the key is kept in memory.
func (s *Session) SetAPIKey(ctx context.Context, key string) error {
	const op = "session.Session.SetAPIKey"

	log := s.log.With(slog.String("op", op))

	input := apiKeyInput{Key: strings.TrimSpace(key)}

	err := s.validate.Struct(input)
	if err != nil {
		return validationFromValidator(err)
	}

	s.update(func(st *State) { st.APIKey = input.Key })

	store, err := s.store.Open(ctx)
	if err == nil {
		_, err = store.Settings.Upsert(ctx, &entities.Setting{Key: apiKeySetting, Value: input.Key})
	}

	if err != nil {
		log.Warn("failed to persist API key", slog.Any("err", err))
	}

	return nil
}

func (s *Session) CanNavigateToTab(view entities.View) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.CanNavigateToTab(view)
}

// SetActiveTab switches tabs when the workflow allows it and reports whether
// it did.
func (s *Session) SetActiveTab(view entities.View) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.CanNavigateToTab(view) {
		return false
	}

	s.state.ActiveTab = view
	s.publishLocked()

	return true
}

// SetModel changes the generation model of the open miniature. An existing
// record is updated in the background; a scratch miniature stays unwritten.
func (s *Session) SetModel(model entities.GeminiModel) error {
	if !model.Known() {
		return newValidationError("model", fmt.Sprintf("%q is not supported", model))
	}

	s.mu.Lock()
	s.state.GeminiModel = model
	target := s.captureLocked(false)
	s.publishLocked()
	s.mu.Unlock()

	if !target.id.IsZero() {
		s.enqueue(s.recomputeTask("set model", target))
	}

	return nil
}

func (s *Session) SetGenerating(view entities.View, generating bool) error {
	if err := checkView(view); err != nil {
		return err
	}

	s.update(func(st *State) { st.View(view).IsGenerating = generating })

	return nil
}

// SelectedImage returns the selected image of a view, if any.
func (s *Session) SelectedImage(view entities.View) (entities.GeneratedImage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.View(view).Selected()
}

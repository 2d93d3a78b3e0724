package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"miniature_creator/blob_codec"
	"miniature_creator/entities"
	"miniature_creator/identifiers"
	"miniature_creator/persist_queue"
	"miniature_creator/repositories"
	"miniature_creator/storage"
)

// target is the record a persistence chain writes to, fixed when the chain
// is launched so that switching miniatures cannot redirect it.
type target struct {
	id              identifiers.MiniatureID
	collectionID    identifiers.CollectionID
	createIfMissing bool
	// selectView and selectImage mark an image selected when the record has
	// to be rebuilt from the store.
	selectView  entities.View
	selectImage identifiers.ImageID
}

func (s *Session) captureLocked(createIfMissing bool) target {
	return target{
		id:              s.state.CurrentMiniatureID,
		collectionID:    s.state.CurrentCollectionID,
		createIfMissing: createIfMissing,
	}
}

// workingCopy is the part of a miniature record derived from its images.
type workingCopy struct {
	selected   entities.SelectedImages
	frontal    entities.GeneratedImage
	hasFrontal bool
	model      entities.GeminiModel
}

func (s *Session) workingCopyFromMemory(id identifiers.MiniatureID) (workingCopy, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.CurrentMiniatureID != id {
		return workingCopy{}, false
	}

	wc := workingCopy{model: s.state.GeminiModel}

	for _, view := range entities.Views {
		wc.selected.Set(view, s.state.View(view).SelectedImageID)
	}

	wc.frontal, wc.hasFrontal = s.state.Frontal.SelectedOrFirst()

	return wc, true
}

func (s *Session) workingCopyFromStore(ctx context.Context, store *storage.Store, t target, existing *entities.Miniature) (workingCopy, error) {
	imgs, err := store.Images.ListByMiniature(ctx, t.id)
	if err != nil {
		return workingCopy{}, err
	}

	wc := workingCopy{model: entities.DefaultGeminiModel}

	var persisted entities.SelectedImages

	if existing != nil {
		persisted = existing.SelectedImages

		if existing.GeminiModel.Known() {
			wc.model = existing.GeminiModel
		}
	}

	if !t.selectImage.IsZero() {
		persisted.Set(t.selectView, t.selectImage)
	}

	byView := partition(imgs)

	var frontal *entities.Image

	for _, view := range entities.Views {
		chosen := pickSelection(byView[view], persisted.Get(view))
		if chosen == nil {
			continue
		}

		wc.selected.Set(view, chosen.ID)

		if view == entities.ViewFrontal {
			frontal = chosen
		}
	}

	if frontal != nil {
		uri, err := blob_codec.ToDataURI(&frontal.Content)
		if err != nil {
			return workingCopy{}, err
		}

		wc.frontal = entities.GeneratedImage{ID: frontal.ID, DataURI: uri, Prompt: frontal.Prompt, Timestamp: frontal.Timestamp}
		wc.hasFrontal = true
	}

	return wc, nil
}

// pickSelection returns the image with the wanted id, else the first one.
func pickSelection(imgs []*entities.Image, want identifiers.ImageID) *entities.Image {
	for _, img := range imgs {
		if img.ID == want {
			return img
		}
	}

	if len(imgs) == 0 {
		return nil
	}

	return imgs[0]
}

func partition(imgs []*entities.Image) map[entities.View][]*entities.Image {
	byView := make(map[entities.View][]*entities.Image, len(entities.Views))

	for _, img := range imgs {
		byView[img.View] = append(byView[img.View], img)
	}

	return byView
}

// persistMiniature recomputes the record for t.id and saves it. While t.id
// is the open miniature the record follows the in-memory views; otherwise
// it is rebuilt from the stored images.
func (s *Session) persistMiniature(ctx context.Context, store *storage.Store, t target) error {
	existing, err := store.Miniatures.Get(ctx, t.id)
	if err != nil && !repositories.IsNotFound(err) {
		return err
	}

	if existing == nil && !t.createIfMissing {
		return nil
	}

	wc, open := s.workingCopyFromMemory(t.id)
	if !open {
		wc, err = s.workingCopyFromStore(ctx, store, t, existing)
		if err != nil {
			return err
		}
	}

	now := s.clock.Now()

	record := &entities.Miniature{
		ID:             t.id,
		CollectionID:   t.collectionID,
		CreatedAt:      now,
		UpdatedAt:      now,
		SelectedImages: wc.selected,
		GeminiModel:    wc.model,
	}

	previousThumb := ""

	if existing != nil {
		record.CollectionID = existing.CollectionID
		record.Name = existing.Name
		record.CreatedAt = existing.CreatedAt
		previousThumb = existing.FrontalThumbDataURL
	} else {
		record.Name = s.newName()
	}

	if wc.hasFrontal {
		record.FrontalThumbDataURL = s.thumbnail(wc.frontal, previousThumb)
	}

	_, err = store.Miniatures.Save(ctx, record)

	return err
}

// thumbnail renders, or reuses, the thumbnail of img. A render failure
// keeps previous.
func (s *Session) thumbnail(img entities.GeneratedImage, previous string) string {
	if cached, ok := s.thumbCache.Get(img.ID.String()); ok {
		return cached.(string)
	}

	thumb, err := s.thumbnails.Thumbnail(img.DataURI)
	if err != nil {
		s.log.Warn("thumbnail failed, keeping previous",
			slog.String("image_id", img.ID.String()),
			slog.Any("err", err))

		return previous
	}

	s.thumbCache.SetDefault(img.ID.String(), thumb)

	return thumb
}

func (s *Session) recomputeTask(name string, t target) persist_queue.Task {
	return persist_queue.Task{
		Name:        name,
		MiniatureID: t.id,
		Run: func(ctx context.Context) error {
			store, err := s.store.Open(ctx)
			if err != nil {
				return err
			}

			err = s.persistMiniature(ctx, store, t)
			if err != nil {
				return fmt.Errorf("saving miniature: %w", err)
			}

			return s.refreshMiniatures(ctx, store)
		},
	}
}

func listMiniatures(ctx context.Context, store *storage.Store) ([]entities.MiniatureMeta, error) {
	all, err := store.Miniatures.List(ctx)
	if err != nil {
		return nil, err
	}

	metas := make([]entities.MiniatureMeta, 0, len(all))
	for _, m := range all {
		metas = append(metas, m.Meta())
	}

	return metas, nil
}

func (s *Session) refreshMiniatures(ctx context.Context, store *storage.Store) error {
	metas, err := listMiniatures(ctx, store)
	if err != nil {
		return fmt.Errorf("listing miniatures: %w", err)
	}

	s.update(func(st *State) { st.Miniatures = metas })

	return nil
}

// resetLocked replaces the working copy with an empty miniature.
func (s *Session) resetLocked(id identifiers.MiniatureID, collectionID identifiers.CollectionID) {
	s.state.CurrentMiniatureID = id
	s.state.CurrentCollectionID = collectionID
	s.state.ActiveTab = entities.ViewFrontal
	s.state.GeminiModel = entities.DefaultGeminiModel
	s.state.Frontal = entities.ViewState{}
	s.state.Back = entities.ViewState{}
	s.state.Base = entities.ViewState{}
}

// LoadMiniature opens a stored miniature. An unknown id changes nothing.
func (s *Session) LoadMiniature(ctx context.Context, id identifiers.MiniatureID) error {
	const op = "session.Session.LoadMiniature"

	log := s.log.With(slog.String("op", op))

	store, err := s.store.Open(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m, err := store.Miniatures.Get(ctx, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	imgs, err := store.Images.ListByMiniature(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	byView := partition(imgs)
	views := make(map[entities.View]entities.ViewState, len(entities.Views))

	for _, view := range entities.Views {
		var vs entities.ViewState

		for _, img := range byView[view] {
			uri, err := blob_codec.ToDataURI(&img.Content)
			if err != nil {
				log.Warn("skipping unreadable image", slog.String("image_id", img.ID.String()), slog.Any("err", err))

				continue
			}

			vs.Images = append(vs.Images, entities.GeneratedImage{
				ID:        img.ID,
				DataURI:   uri,
				Prompt:    img.Prompt,
				Timestamp: img.Timestamp,
				Seq:       img.Seq,
			})
		}

		vs.SelectedImageID = m.SelectedImages.Get(view)
		if _, ok := vs.Selected(); !ok {
			vs.SelectedImageID = ""

			if len(vs.Images) > 0 {
				vs.SelectedImageID = vs.Images[0].ID
			}
		}

		views[view] = vs
	}

	model := m.GeminiModel
	if !model.Known() {
		model = entities.DefaultGeminiModel
	}

	s.update(func(st *State) {
		st.CurrentMiniatureID = m.ID
		st.CurrentCollectionID = m.CollectionID
		st.ActiveTab = entities.ViewFrontal
		st.GeminiModel = model
		st.Frontal = views[entities.ViewFrontal]
		st.Back = views[entities.ViewBack]
		st.Base = views[entities.ViewBase]
	})

	return nil
}

// NewMiniature opens an empty miniature. With a collection id the record is
// written at once so the miniature shows up in navigation; without one it
// stays a scratch miniature until its first image is stored.
func (s *Session) NewMiniature(ctx context.Context, collectionID identifiers.CollectionID) (identifiers.MiniatureID, error) {
	const op = "session.Session.NewMiniature"

	var store *storage.Store

	if !collectionID.IsZero() {
		var err error

		store, err = s.store.Open(ctx)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}

		_, err = store.Collections.Get(ctx, collectionID)
		if err != nil {
			if repositories.IsNotFound(err) {
				return "", newValidationError("collection", "does not exist")
			}

			return "", fmt.Errorf("%s: %w", op, err)
		}
	}

	id := identifiers.NewMiniatureID()

	s.mu.Lock()
	s.resetLocked(id, collectionID)
	s.publishLocked()
	s.mu.Unlock()

	if store == nil {
		return id, nil
	}

	now := s.clock.Now()

	_, err := store.Miniatures.Save(ctx, &entities.Miniature{
		ID:           id,
		CollectionID: collectionID,
		Name:         s.newName(),
		CreatedAt:    now,
		UpdatedAt:    now,
		GeminiModel:  entities.DefaultGeminiModel,
	})
	if err != nil {
		return id, fmt.Errorf("%s: %w", op, err)
	}

	err = s.refreshMiniatures(ctx, store)
	if err != nil {
		return id, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// DeleteMiniature removes a miniature and all of its images. Deleting the
// open miniature leaves an empty scratch miniature in its place.
func (s *Session) DeleteMiniature(ctx context.Context, id identifiers.MiniatureID) error {
	const op = "session.Session.DeleteMiniature"

	store, err := s.store.Open(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = store.Miniatures.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	if s.state.CurrentMiniatureID == id {
		s.resetLocked("", s.state.CurrentCollectionID)
		s.publishLocked()
	}
	s.mu.Unlock()

	err = s.refreshMiniatures(ctx, store)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RenameMiniature sets a user-chosen name. An unknown id changes nothing.
func (s *Session) RenameMiniature(ctx context.Context, id identifiers.MiniatureID, name string) error {
	const op = "session.Session.RenameMiniature"

	name = strings.TrimSpace(name)
	if name == "" {
		return newValidationError("name", "must not be empty")
	}

	store, err := s.store.Open(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m, err := store.Miniatures.Get(ctx, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	m.Name = name
	m.UpdatedAt = s.clock.Now()

	_, err = store.Miniatures.Save(ctx, m)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = s.refreshMiniatures(ctx, store)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

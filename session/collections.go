package session

import (
	"context"
	"fmt"
	"strings"

	"miniature_creator/entities"
	"miniature_creator/identifiers"
	"miniature_creator/repositories"
	"miniature_creator/storage"
)

type CollectionInput struct {
	Name        string `validate:"required,max=100"`
	Description string `validate:"max=4000"`
}

func (s *Session) checkCollectionInput(input *CollectionInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)

	err := s.validate.Struct(input)
	if err != nil {
		return validationFromValidator(err)
	}

	return nil
}

func listCollections(ctx context.Context, store *storage.Store) ([]entities.Collection, error) {
	all, err := store.Collections.List(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]entities.Collection, 0, len(all))
	for _, c := range all {
		result = append(result, *c)
	}

	return result, nil
}

func (s *Session) refreshCollections(ctx context.Context, store *storage.Store) error {
	collections, err := listCollections(ctx, store)
	if err != nil {
		return fmt.Errorf("listing collections: %w", err)
	}

	s.update(func(st *State) { st.Collections = collections })

	return nil
}

func (s *Session) CreateCollection(ctx context.Context, input CollectionInput) (*entities.Collection, error) {
	const op = "session.Session.CreateCollection"

	if err := s.checkCollectionInput(&input); err != nil {
		return nil, err
	}

	store, err := s.store.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.clock.Now()

	collection, err := store.Collections.Save(ctx, &entities.Collection{
		ID:          identifiers.NewCollectionID(),
		Name:        input.Name,
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = s.refreshCollections(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return collection, nil
}

// UpdateCollection replaces name and description. An unknown id changes
// nothing.
func (s *Session) UpdateCollection(ctx context.Context, id identifiers.CollectionID, input CollectionInput) error {
	const op = "session.Session.UpdateCollection"

	if err := s.checkCollectionInput(&input); err != nil {
		return err
	}

	store, err := s.store.Open(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	collection, err := store.Collections.Get(ctx, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	collection.Name = input.Name
	collection.Description = input.Description
	collection.UpdatedAt = s.clock.Now()

	_, err = store.Collections.Save(ctx, collection)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = s.refreshCollections(ctx, store)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteCollection deletes an empty collection and reports whether it did.
// A collection that still holds miniatures, or does not exist, is left alone
// without error.
func (s *Session) DeleteCollection(ctx context.Context, id identifiers.CollectionID) (bool, error) {
	const op = "session.Session.DeleteCollection"

	store, err := s.store.Open(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	_, err = store.Collections.Get(ctx, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return false, nil
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	count, err := store.Miniatures.CountByCollection(ctx, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if count > 0 {
		return false, nil
	}

	err = store.Collections.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	if s.state.CurrentCollectionID == id {
		s.state.CurrentCollectionID = ""
	}
	s.mu.Unlock()

	err = s.refreshCollections(ctx, store)
	if err != nil {
		return true, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}

// MoveMiniToCollection refiles a miniature. Unknown miniature or collection
// ids change nothing.
func (s *Session) MoveMiniToCollection(ctx context.Context, miniatureID identifiers.MiniatureID, collectionID identifiers.CollectionID) error {
	const op = "session.Session.MoveMiniToCollection"

	store, err := s.store.Open(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = store.Collections.Get(ctx, collectionID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	m, err := store.Miniatures.Get(ctx, miniatureID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	m.CollectionID = collectionID
	m.UpdatedAt = s.clock.Now()

	_, err = store.Miniatures.Save(ctx, m)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	if s.state.CurrentMiniatureID == miniatureID {
		s.state.CurrentCollectionID = collectionID
	}
	s.mu.Unlock()

	err = s.refreshMiniatures(ctx, store)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

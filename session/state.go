package session

import (
	"sync"

	"miniature_creator/entities"
	"miniature_creator/identifiers"
)

// State is a read-only snapshot of everything the UI renders.
type State struct {
	APIKey    string
	ActiveTab entities.View
	Frontal   entities.ViewState
	Back      entities.ViewState
	Base      entities.ViewState
	// CurrentMiniatureID is zero when no miniature is open.
	CurrentMiniatureID identifiers.MiniatureID
	// CurrentCollectionID is where a lazily created miniature is filed;
	// zero leaves it unfiled.
	CurrentCollectionID identifiers.CollectionID
	GeminiModel         entities.GeminiModel
	Miniatures          []entities.MiniatureMeta
	Collections         []entities.Collection
}

func emptyState() State {
	return State{
		ActiveTab:   entities.ViewFrontal,
		GeminiModel: entities.DefaultGeminiModel,
	}
}

func (s *State) View(view entities.View) *entities.ViewState {
	switch view {
	case entities.ViewBack:
		return &s.Back
	case entities.ViewBase:
		return &s.Base
	default:
		return &s.Frontal
	}
}

// CanNavigateToTab gates the workflow: back needs a frontal image, base
// needs both a frontal and a back image.
func (s *State) CanNavigateToTab(view entities.View) bool {
	switch view {
	case entities.ViewFrontal:
		return true
	case entities.ViewBack:
		return len(s.Frontal.Images) > 0
	case entities.ViewBase:
		return len(s.Frontal.Images) > 0 && len(s.Back.Images) > 0
	}

	return false
}

// CurrentMiniature returns the navigation entry of the open miniature once
// its record exists.
func (s *State) CurrentMiniature() (entities.MiniatureMeta, bool) {
	if s.CurrentMiniatureID.IsZero() {
		return entities.MiniatureMeta{}, false
	}

	for _, m := range s.Miniatures {
		if m.ID == s.CurrentMiniatureID {
			return m, true
		}
	}

	return entities.MiniatureMeta{}, false
}

func (s *State) clone() State {
	c := *s
	c.Frontal = s.Frontal.Clone()
	c.Back = s.Back.Clone()
	c.Base = s.Base.Clone()
	c.Miniatures = append([]entities.MiniatureMeta(nil), s.Miniatures...)
	c.Collections = append([]entities.Collection(nil), s.Collections...)

	return c
}

// broadcaster delivers the latest State to every subscriber. Each
// subscriber channel holds one snapshot; an unread snapshot is replaced by
// a newer one.
type broadcaster struct {
	mu   sync.Mutex
	subs map[uint64]chan State
	next uint64
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[uint64]chan State)}
}

func (b *broadcaster) subscribe(initial State) (<-chan State, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++

	ch := make(chan State, 1)
	ch <- initial
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}

	return ch, cancel
}

func (b *broadcaster) publish(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- s:
			continue
		default:
		}

		select {
		case <-ch:
		default:
		}

		select {
		case ch <- s:
		default:
		}
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

package entities

import (
	"time"

	"miniature_creator/identifiers"
)

// SelectedImages holds the chosen image per view. A zero id means nothing is
// selected for that view.
type SelectedImages struct {
	Frontal identifiers.ImageID `json:"frontal"`
	Back    identifiers.ImageID `json:"back"`
	Base    identifiers.ImageID `json:"base"`
}

func (s SelectedImages) Get(view View) identifiers.ImageID {
	switch view {
	case ViewFrontal:
		return s.Frontal
	case ViewBack:
		return s.Back
	case ViewBase:
		return s.Base
	}

	return ""
}

func (s *SelectedImages) Set(view View, id identifiers.ImageID) {
	switch view {
	case ViewFrontal:
		s.Frontal = id
	case ViewBack:
		s.Back = id
	case ViewBase:
		s.Base = id
	}
}

type Miniature struct {
	ID                  identifiers.MiniatureID  `json:"id"`
	CollectionID        identifiers.CollectionID `json:"collection_id"`
	Name                string                   `json:"name"`
	CreatedAt           time.Time                `json:"created_at"`
	UpdatedAt           time.Time                `json:"updated_at"`
	FrontalThumbDataURL string                   `json:"frontal_thumb_data_url"`
	SelectedImages      SelectedImages           `json:"selected_images"`
	GeminiModel         GeminiModel              `json:"gemini_model"`
}

// MiniatureMeta is the payload-free projection used for navigation lists.
type MiniatureMeta struct {
	ID                  identifiers.MiniatureID  `json:"id"`
	CollectionID        identifiers.CollectionID `json:"collection_id"`
	Name                string                   `json:"name"`
	CreatedAt           time.Time                `json:"created_at"`
	UpdatedAt           time.Time                `json:"updated_at"`
	FrontalThumbDataURL string                   `json:"frontal_thumb_data_url"`
}

func (m *Miniature) Meta() MiniatureMeta {
	return MiniatureMeta{
		ID:                  m.ID,
		CollectionID:        m.CollectionID,
		Name:                m.Name,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
		FrontalThumbDataURL: m.FrontalThumbDataURL,
	}
}

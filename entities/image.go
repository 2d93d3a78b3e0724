package entities

import (
	"time"

	"miniature_creator/blob_codec"
	"miniature_creator/identifiers"
)

// Image is a persisted generated or uploaded artifact. Images are never
// modified after creation.
type Image struct {
	ID          identifiers.ImageID     `json:"id"`
	MiniatureID identifiers.MiniatureID `json:"miniature_id"`
	View        View                    `json:"view"`
	Content     blob_codec.Blob         `json:"-"`
	Prompt      string                  `json:"prompt"`
	Timestamp   time.Time               `json:"timestamp"`
	// Seq orders the images of a miniature by when they were appended.
	Seq int64 `json:"seq"`
}

// GeneratedImage is the in-memory form of an Image, decoded to a data URI.
type GeneratedImage struct {
	ID        identifiers.ImageID `json:"id"`
	DataURI   string              `json:"data_uri"`
	Prompt    string              `json:"prompt"`
	Timestamp time.Time           `json:"timestamp"`
	Seq       int64               `json:"seq"`
}

// ViewState is the working copy of one view of the open miniature.
type ViewState struct {
	Images          []GeneratedImage    `json:"images"`
	SelectedImageID identifiers.ImageID `json:"selected_image_id"`
	IsGenerating    bool                `json:"is_generating"`
}

// Selected returns the selected image, if any.
func (v *ViewState) Selected() (GeneratedImage, bool) {
	if v.SelectedImageID.IsZero() {
		return GeneratedImage{}, false
	}

	for _, img := range v.Images {
		if img.ID == v.SelectedImageID {
			return img, true
		}
	}

	return GeneratedImage{}, false
}

// SelectedOrFirst falls back to the first image when nothing valid is selected.
func (v *ViewState) SelectedOrFirst() (GeneratedImage, bool) {
	if img, ok := v.Selected(); ok {
		return img, true
	}

	if len(v.Images) > 0 {
		return v.Images[0], true
	}

	return GeneratedImage{}, false
}

func (v *ViewState) Clone() ViewState {
	return ViewState{
		Images:          append([]GeneratedImage(nil), v.Images...),
		SelectedImageID: v.SelectedImageID,
		IsGenerating:    v.IsGenerating,
	}
}

package images

import (
	"context"

	"miniature_creator/entities"
	"miniature_creator/identifiers"
)

type Repository interface {
	Save(ctx context.Context, image *entities.Image) (*entities.Image, error)
	Get(ctx context.Context, id identifiers.ImageID) (*entities.Image, error)
	// ListByMiniature returns a miniature's images by append sequence. Rows
	// written before the sequence existed come first, by timestamp.
	ListByMiniature(ctx context.Context, miniatureID identifiers.MiniatureID) ([]*entities.Image, error)
	Delete(ctx context.Context, id identifiers.ImageID) error
}

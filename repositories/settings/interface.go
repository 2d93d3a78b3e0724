package settings

import (
	"context"

	"miniature_creator/entities"
)

type Repository interface {
	Upsert(ctx context.Context, setting *entities.Setting) (*entities.Setting, error)
	Get(ctx context.Context, key string) (*entities.Setting, error)
	Delete(ctx context.Context, key string) error
}

package miniatures

import (
	"context"
	"database/sql"

	"miniature_creator/entities"
	"miniature_creator/identifiers"
)

type Repository interface {
	// List returns every miniature, oldest first.
	List(ctx context.Context) ([]*entities.Miniature, error)
	// ListByCollection returns a collection's miniatures, newest first.
	ListByCollection(ctx context.Context, collectionID identifiers.CollectionID) ([]*entities.Miniature, error)
	CountByCollection(ctx context.Context, collectionID identifiers.CollectionID) (int, error)
	Get(ctx context.Context, id identifiers.MiniatureID) (*entities.Miniature, error)
	Save(ctx context.Context, miniature *entities.Miniature) (*entities.Miniature, error)
	// Delete removes the miniature and every image it owns in one transaction.
	Delete(ctx context.Context, id identifiers.MiniatureID) error
	// WithTx returns a repository that runs every statement inside tx.
	WithTx(tx *sql.Tx) Repository
}

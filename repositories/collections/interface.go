package collections

import (
	"context"
	"database/sql"

	"miniature_creator/entities"
	"miniature_creator/identifiers"
)

type Repository interface {
	// List returns every collection, oldest first.
	List(ctx context.Context) ([]*entities.Collection, error)
	Get(ctx context.Context, id identifiers.CollectionID) (*entities.Collection, error)
	// Save inserts or replaces the collection with the same id.
	Save(ctx context.Context, collection *entities.Collection) (*entities.Collection, error)
	// Delete removes the collection unconditionally; callers decide whether
	// it is safe to do so.
	Delete(ctx context.Context, id identifiers.CollectionID) error
	// ListMissingDescription returns collections written before descriptions existed.
	ListMissingDescription(ctx context.Context) ([]*entities.Collection, error)
	// WithTx returns a repository that runs every statement inside tx.
	WithTx(tx *sql.Tx) Repository
}

package collections

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"miniature_creator/clock"
	"miniature_creator/entities"
	"miniature_creator/identifiers"
	"miniature_creator/repositories"
)

const upsertCollection string = `
INSERT OR REPLACE INTO collections (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?);
`

const listCollections string = `
SELECT id, name, description, created_at, updated_at FROM collections ORDER BY created_at ASC, id ASC;
`

const getCollectionByID string = `
SELECT id, name, description, created_at, updated_at FROM collections WHERE id = ?;
`

const listCollectionsMissingDescription string = `
SELECT id, name, description, created_at, updated_at FROM collections WHERE description IS NULL ORDER BY created_at ASC;
`

const deleteCollectionByID string = `
DELETE FROM collections WHERE id = ?;
`

type sqliteRepo struct {
	dbConn repositories.DBTX
	clock  clock.Clock
}

type Config struct {
	DB    *sql.DB
	Clock clock.Clock
}

func NewRepository(cfg *Config) (Repository, error) {
	if cfg.DB == nil {
		return nil, errors.New("missing DB parameter")
	}

	newRepo := &sqliteRepo{
		dbConn: cfg.DB,
		clock:  cfg.Clock,
	}

	if newRepo.clock == nil {
		newRepo.clock = clock.NewClock()
	}

	return newRepo, nil
}

func (repo *sqliteRepo) WithTx(tx *sql.Tx) Repository {
	return &sqliteRepo{dbConn: tx, clock: repo.clock}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (*entities.Collection, error) {
	var (
		collection  entities.Collection
		description sql.NullString
		createdAt   int64
		updatedAt   int64
	)

	err := row.Scan(&collection.ID, &collection.Name, &description, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	collection.Description = description.String
	collection.CreatedAt = clock.FromMillis(createdAt)
	collection.UpdatedAt = clock.FromMillis(updatedAt)

	return &collection, nil
}

func (repo *sqliteRepo) query(ctx context.Context, query string, args ...any) ([]*entities.Collection, error) {
	rows, err := repo.dbConn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*entities.Collection

	for rows.Next() {
		collection, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}

		result = append(result, collection)
	}

	return result, rows.Err()
}

func (repo *sqliteRepo) List(ctx context.Context) ([]*entities.Collection, error) {
	return repo.query(ctx, listCollections)
}

func (repo *sqliteRepo) ListMissingDescription(ctx context.Context) ([]*entities.Collection, error) {
	return repo.query(ctx, listCollectionsMissingDescription)
}

func (repo *sqliteRepo) Get(ctx context.Context, id identifiers.CollectionID) (*entities.Collection, error) {
	collection, err := scanCollection(repo.dbConn.QueryRowContext(ctx, getCollectionByID, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.NewNotFoundError("collection", id.String())
		}

		return nil, err
	}

	return collection, nil
}

func (repo *sqliteRepo) Save(ctx context.Context, collection *entities.Collection) (*entities.Collection, error) {
	if collection.ID.IsZero() {
		return nil, errors.New("collection id is required")
	}

	now := repo.clock.Now()

	if collection.CreatedAt.IsZero() {
		collection.CreatedAt = now
	}

	if collection.UpdatedAt.IsZero() {
		collection.UpdatedAt = now
	}

	_, err := repo.dbConn.ExecContext(ctx, upsertCollection,
		collection.ID.String(), collection.Name, collection.Description,
		collection.CreatedAt.UnixMilli(), collection.UpdatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("saving collection %s: %w", collection.ID, err)
	}

	return collection, nil
}

func (repo *sqliteRepo) Delete(ctx context.Context, id identifiers.CollectionID) error {
	_, err := repo.dbConn.ExecContext(ctx, deleteCollectionByID, id.String())
	if err != nil {
		return fmt.Errorf("deleting collection %s: %w", id, err)
	}

	return nil
}

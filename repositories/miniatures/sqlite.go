package miniatures

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"miniature_creator/clock"
	"miniature_creator/entities"
	"miniature_creator/identifiers"
	"miniature_creator/repositories"

	sq "github.com/Masterminds/squirrel"
)

const (
	miniaturesTable = "miniatures"
	imagesTable     = "images"
)

var miniatureColumns = []string{
	"id",
	"collection_id",
	"name",
	"created_at",
	"updated_at",
	"frontal_thumb_data_url",
	"selected_frontal",
	"selected_back",
	"selected_base",
	"gemini_model",
}

type sqliteRepo struct {
	db *sql.DB
	// tx is set on repositories returned by WithTx.
	tx     *sql.Tx
	dbConn repositories.DBTX
	clock  clock.Clock
	sb     sq.StatementBuilderType
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
		db:     cfg.DB,
		dbConn: cfg.DB,
		clock:  cfg.Clock,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}

	if newRepo.clock == nil {
		newRepo.clock = clock.NewClock()
	}

	return newRepo, nil
}

func (repo *sqliteRepo) WithTx(tx *sql.Tx) Repository {
	return &sqliteRepo{
		db:     repo.db,
		tx:     tx,
		dbConn: tx,
		clock:  repo.clock,
		sb:     repo.sb,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMiniature(row rowScanner) (*entities.Miniature, error) {
	var (
		m                            entities.Miniature
		createdAt, updatedAt         int64
		thumb                        sql.NullString
		selFrontal, selBack, selBase sql.NullString
	)

	err := row.Scan(&m.ID, &m.CollectionID, &m.Name, &createdAt, &updatedAt, &thumb,
		&selFrontal, &selBack, &selBase, &m.GeminiModel)
	if err != nil {
		return nil, err
	}

	m.CreatedAt = clock.FromMillis(createdAt)
	m.UpdatedAt = clock.FromMillis(updatedAt)
	m.FrontalThumbDataURL = thumb.String
	m.SelectedImages = entities.SelectedImages{
		Frontal: identifiers.ImageID(selFrontal.String),
		Back:    identifiers.ImageID(selBack.String),
		Base:    identifiers.ImageID(selBase.String),
	}

	return &m, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (repo *sqliteRepo) selectMiniatures(ctx context.Context, builder sq.SelectBuilder) ([]*entities.Miniature, error) {
	const op = "repositories.miniatures.selectMiniatures"

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	rows, err := repo.dbConn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*entities.Miniature

	for rows.Next() {
		m, err := scanMiniature(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		result = append(result, m)
	}

	return result, rows.Err()
}

func (repo *sqliteRepo) List(ctx context.Context) ([]*entities.Miniature, error) {
	return repo.selectMiniatures(ctx, repo.sb.
		Select(miniatureColumns...).
		From(miniaturesTable).
		OrderBy("created_at ASC", "id ASC"))
}

func (repo *sqliteRepo) ListByCollection(ctx context.Context, collectionID identifiers.CollectionID) ([]*entities.Miniature, error) {
	return repo.selectMiniatures(ctx, repo.sb.
		Select(miniatureColumns...).
		From(miniaturesTable).
		Where(sq.Eq{"collection_id": collectionID.String()}).
		OrderBy("created_at DESC", "id DESC"))
}

func (repo *sqliteRepo) CountByCollection(ctx context.Context, collectionID identifiers.CollectionID) (int, error) {
	const op = "repositories.miniatures.CountByCollection"

	query, args, err := repo.sb.
		Select("COUNT(*)").
		From(miniaturesTable).
		Where(sq.Eq{"collection_id": collectionID.String()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var count int

	err = repo.dbConn.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

func (repo *sqliteRepo) Get(ctx context.Context, id identifiers.MiniatureID) (*entities.Miniature, error) {
	const op = "repositories.miniatures.Get"

	query, args, err := repo.sb.
		Select(miniatureColumns...).
		From(miniaturesTable).
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	m, err := scanMiniature(repo.dbConn.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.NewNotFoundError("miniature", id.String())
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return m, nil
}

func (repo *sqliteRepo) Save(ctx context.Context, m *entities.Miniature) (*entities.Miniature, error) {
	const op = "repositories.miniatures.Save"

	if m.ID.IsZero() {
		return nil, fmt.Errorf("%s: miniature id is required", op)
	}

	now := repo.clock.Now()

	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}

	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}

	if m.GeminiModel == "" {
		m.GeminiModel = entities.DefaultGeminiModel
	}

	query, args, err := repo.sb.
		Replace(miniaturesTable).
		Columns(miniatureColumns...).
		Values(
			m.ID.String(),
			m.CollectionID.String(),
			m.Name,
			m.CreatedAt.UnixMilli(),
			m.UpdatedAt.UnixMilli(),
			nullable(m.FrontalThumbDataURL),
			nullable(m.SelectedImages.Frontal.String()),
			nullable(m.SelectedImages.Back.String()),
			nullable(m.SelectedImages.Base.String()),
			string(m.GeminiModel),
		).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	_, err = repo.dbConn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return m, nil
}

func (repo *sqliteRepo) Delete(ctx context.Context, id identifiers.MiniatureID) error {
	const op = "repositories.miniatures.Delete"

	err := repo.inTx(ctx, func(tx *sql.Tx) error {
		query, args, err := repo.sb.Delete(imagesTable).Where(sq.Eq{"miniature_id": id.String()}).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build query: %w", err)
		}

		_, err = tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to delete images: %w", err)
		}

		query, args, err = repo.sb.Delete(miniaturesTable).Where(sq.Eq{"id": id.String()}).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build query: %w", err)
		}

		_, err = tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to delete miniature: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// inTx runs fn in the caller's transaction, or in a new one committed when
// fn succeeds.
func (repo *sqliteRepo) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if repo.tx != nil {
		return fn(repo.tx)
	}

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	//nolint
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

package images

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

const imagesTable = "images"

var imageColumns = []string{
	"id",
	"miniature_id",
	"view",
	"mime_type",
	"content",
	"prompt",
	"timestamp",
	"seq",
}

type sqliteRepo struct {
	dbConn *sql.DB
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
		dbConn: cfg.DB,
		clock:  cfg.Clock,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}

	if newRepo.clock == nil {
		newRepo.clock = clock.NewClock()
	}

	return newRepo, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (*entities.Image, error) {
	var (
		img       entities.Image
		timestamp int64
	)

	err := row.Scan(&img.ID, &img.MiniatureID, &img.View, &img.Content.MimeType, &img.Content.Data,
		&img.Prompt, &timestamp, &img.Seq)
	if err != nil {
		return nil, err
	}

	img.Timestamp = clock.FromMillis(timestamp)

	return &img, nil
}

func (repo *sqliteRepo) Save(ctx context.Context, img *entities.Image) (*entities.Image, error) {
	const op = "repositories.images.Save"

	if img.ID.IsZero() || img.MiniatureID.IsZero() {
		return nil, fmt.Errorf("%s: image and miniature ids are required", op)
	}

	if _, err := entities.ParseView(string(img.View)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if img.Timestamp.IsZero() {
		img.Timestamp = repo.clock.Now()
	}

	if img.Seq == 0 {
		img.Seq = img.Timestamp.UnixMicro()
	}

	data := img.Content.Data
	if data == nil {
		data = []byte{}
	}

	query, args, err := repo.sb.
		Replace(imagesTable).
		Columns(imageColumns...).
		Values(
			img.ID.String(),
			img.MiniatureID.String(),
			string(img.View),
			img.Content.MimeType,
			data,
			img.Prompt,
			img.Timestamp.UnixMilli(),
			img.Seq,
		).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	_, err = repo.dbConn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return img, nil
}

func (repo *sqliteRepo) Get(ctx context.Context, id identifiers.ImageID) (*entities.Image, error) {
	const op = "repositories.images.Get"

	query, args, err := repo.sb.
		Select(imageColumns...).
		From(imagesTable).
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	img, err := scanImage(repo.dbConn.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.NewNotFoundError("image", id.String())
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return img, nil
}

func (repo *sqliteRepo) ListByMiniature(ctx context.Context, miniatureID identifiers.MiniatureID) ([]*entities.Image, error) {
	const op = "repositories.images.ListByMiniature"

	query, args, err := repo.sb.
		Select(imageColumns...).
		From(imagesTable).
		Where(sq.Eq{"miniature_id": miniatureID.String()}).
		OrderBy("seq ASC", "timestamp ASC", "rowid ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	rows, err := repo.dbConn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*entities.Image

	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		result = append(result, img)
	}

	return result, rows.Err()
}

func (repo *sqliteRepo) Delete(ctx context.Context, id identifiers.ImageID) error {
	const op = "repositories.images.Delete"

	query, args, err := repo.sb.Delete(imagesTable).Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	_, err = repo.dbConn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

package settings

import (
	"context"
	"database/sql"
	"errors"

	"miniature_creator/entities"
	"miniature_creator/repositories"
)

const upsertSetting string = `
INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?);
`

const getSettingByKey string = `
SELECT key, value FROM settings WHERE key = ?;
`

const deleteSettingByKey string = `
DELETE FROM settings WHERE key = ?;
`

type sqliteRepo struct {
	dbConn *sql.DB
}

type Config struct {
	DB *sql.DB
}

func NewRepository(cfg *Config) (Repository, error) {
	if cfg.DB == nil {
		return nil, errors.New("missing DB parameter")
	}

	return &sqliteRepo{dbConn: cfg.DB}, nil
}

func (repo *sqliteRepo) Upsert(ctx context.Context, setting *entities.Setting) (*entities.Setting, error) {
	if setting.Key == "" {
		return nil, errors.New("setting key is required")
	}

	_, err := repo.dbConn.ExecContext(ctx, upsertSetting, setting.Key, setting.Value)
	if err != nil {
		return nil, err
	}

	return setting, nil
}

func (repo *sqliteRepo) Get(ctx context.Context, key string) (*entities.Setting, error) {
	var setting entities.Setting

	err := repo.dbConn.QueryRowContext(ctx, getSettingByKey, key).Scan(&setting.Key, &setting.Value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.NewNotFoundError("setting", key)
		}

		return nil, err
	}

	return &setting, nil
}

func (repo *sqliteRepo) Delete(ctx context.Context, key string) error {
	_, err := repo.dbConn.ExecContext(ctx, deleteSettingByKey, key)

	return err
}

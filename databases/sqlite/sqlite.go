package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const DefaultDBFile string = "miniatures.sqlite"

// MemoryPath opens a private in-memory database.
const MemoryPath string = ":memory:"

const getCurrentMigration string = `PRAGMA user_version;`
const setCurrentMigration string = `PRAGMA user_version = %d;`

const createMiniatureTableIfNotExistsQuery string = `
CREATE TABLE IF NOT EXISTS miniatures (
id TEXT NOT NULL PRIMARY KEY,
name TEXT NOT NULL,
created_at INTEGER NOT NULL,
updated_at INTEGER NOT NULL,
frontal_thumb_data_url TEXT,
selected_frontal TEXT,
selected_back TEXT,
selected_base TEXT,
gemini_model TEXT NOT NULL DEFAULT 'gemini-2.5-flash-image'
);`

const createImageTableIfNotExistsQuery string = `
CREATE TABLE IF NOT EXISTS images (
id TEXT NOT NULL PRIMARY KEY,
miniature_id TEXT NOT NULL,
view TEXT NOT NULL,
mime_type TEXT NOT NULL,
content BLOB NOT NULL,
prompt TEXT NOT NULL,
timestamp INTEGER NOT NULL
);`

const createImageMiniatureIndexIfNotExistsQuery string = `
CREATE INDEX IF NOT EXISTS images_by_miniature_index
ON images(miniature_id);
`

const createCollectionTableIfNotExistsQuery string = `
CREATE TABLE IF NOT EXISTS collections (
id TEXT NOT NULL PRIMARY KEY,
name TEXT NOT NULL,
created_at INTEGER NOT NULL,
updated_at INTEGER NOT NULL
);`

const addMiniatureCollectionColumnQuery string = `
ALTER TABLE miniatures ADD COLUMN collection_id TEXT NOT NULL DEFAULT '';
`

const createMiniatureCollectionIndexIfNotExistsQuery string = `
CREATE INDEX IF NOT EXISTS miniatures_by_collection_index
ON miniatures(collection_id);
`

// Left nullable: existing rows are backfilled by the bootstrap pass, which
// treats NULL as "field missing".
const addCollectionDescriptionColumnQuery string = `
ALTER TABLE collections ADD COLUMN description TEXT;
`

const createSettingsTableIfNotExistsQuery string = `
CREATE TABLE IF NOT EXISTS settings (
key TEXT NOT NULL PRIMARY KEY,
value TEXT NOT NULL
);`

const addImageSeqColumnQuery string = `
ALTER TABLE images ADD COLUMN seq INTEGER NOT NULL DEFAULT 0;
`

type migration struct {
	migrationName  string
	migrationQuery string
	// deferredBackfill names record-level work this step needs but cannot
	// express as schema; the bootstrap pass performs it.
	deferredBackfill string
}

var migrations = []migration{
	{migrationName: "create miniature table", migrationQuery: createMiniatureTableIfNotExistsQuery},
	{migrationName: "create image table", migrationQuery: createImageTableIfNotExistsQuery},
	{migrationName: "add image miniature index", migrationQuery: createImageMiniatureIndexIfNotExistsQuery},
	{migrationName: "create collection table", migrationQuery: createCollectionTableIfNotExistsQuery},
	{
		migrationName:    "add miniature collection column",
		migrationQuery:   addMiniatureCollectionColumnQuery,
		deferredBackfill: "assign legacy miniatures to a default collection",
	},
	{migrationName: "add miniature collection index", migrationQuery: createMiniatureCollectionIndexIfNotExistsQuery},
	{
		migrationName:    "add collection description column",
		migrationQuery:   addCollectionDescriptionColumnQuery,
		deferredBackfill: "default missing collection descriptions",
	},
	{migrationName: "create settings table", migrationQuery: createSettingsTableIfNotExistsQuery},
	{migrationName: "add image append sequence", migrationQuery: addImageSeqColumnQuery},
}

type Config struct {
	// Path of the database file. Empty means DefaultDBFile in the working
	// directory; MemoryPath opens an in-memory database.
	Path   string
	Logger *slog.Logger
}

func New(ctx context.Context, cfg Config) (*sql.DB, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	filename := cfg.Path
	if filename == "" {
		var err error

		filename, err = DBFilename()
		if err != nil {
			return nil, err
		}
	}

	if filename != MemoryPath {
		err := touchDBFile(filename)
		if err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, err
	}

	// One connection: every caller shares the same handle, and transactions
	// never race a second writer on the file.
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	err = migrate(ctx, db, logger)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return db, nil
}

// RequiredVersion is the schema version this build expects.
func RequiredVersion() int {
	return len(migrations)
}

func CurrentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var currentMigration int

	err := db.QueryRowContext(ctx, getCurrentMigration).Scan(&currentMigration)
	if err != nil {
		return 0, err
	}

	return currentMigration, nil
}

func migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	currentMigration, err := CurrentVersion(ctx, db)
	if err != nil {
		return err
	}

	requiredMigration := RequiredVersion()

	logger.Info("checking database version",
		slog.Int("current", currentMigration),
		slog.Int("required", requiredMigration))

	if currentMigration > requiredMigration {
		return fmt.Errorf("database version %d is newer than supported version %d", currentMigration, requiredMigration)
	}

	for migrationNum := currentMigration + 1; migrationNum <= requiredMigration; migrationNum++ {
		err = execMigration(ctx, db, migrationNum, logger)
		if err != nil {
			logger.Error("error running migration",
				slog.Int("version", migrationNum),
				slog.String("name", migrations[migrationNum-1].migrationName),
				slog.Any("err", err))

			return fmt.Errorf("migration %d %q: %w", migrationNum, migrations[migrationNum-1].migrationName, err)
		}
	}

	return nil
}

// execMigration applies one step and bumps user_version in the same
// transaction, so an interrupted step leaves the previous version in place
// and is retried on the next open.
func execMigration(ctx context.Context, db *sql.DB, migrationNum int, logger *slog.Logger) error {
	m := migrations[migrationNum-1]

	logger.Info("running migration", slog.Int("version", migrationNum), slog.String("name", m.migrationName))

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	//nolint
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, m.migrationQuery)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(setCurrentMigration, migrationNum))
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return err
	}

	if m.deferredBackfill != "" {
		logger.Info("record backfill deferred to bootstrap",
			slog.Int("version", migrationNum),
			slog.String("backfill", m.deferredBackfill))
	}

	return nil
}

func DBFilename() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, DefaultDBFile), nil
}

func touchDBFile(filename string) error {
	dir := filepath.Dir(filename)
	if dir != "." && dir != "/" {
		err := os.MkdirAll(dir, 0o755)
		if err != nil {
			return err
		}
	}

	_, err := os.Stat(filename)
	if os.IsNotExist(err) {
		file, createErr := os.Create(filename)
		if createErr != nil {
			return createErr
		}

		closeErr := file.Close()
		if closeErr != nil {
			return closeErr
		}
	}

	return nil
}

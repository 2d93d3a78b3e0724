package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"miniature_creator/bootstrap"
	"miniature_creator/clock"
	"miniature_creator/databases/sqlite"
	"miniature_creator/repositories/collections"
	"miniature_creator/repositories/images"
	"miniature_creator/repositories/miniatures"
	"miniature_creator/repositories/settings"
)

var ErrClosed = errors.New("store is closed")

// Store bundles the repositories that share one database handle.
type Store struct {
	DB          *sql.DB
	Collections collections.Repository
	Miniatures  miniatures.Repository
	Images      images.Repository
	Settings    settings.Repository
	// Bootstrap is what the post-open bootstrap pass changed.
	Bootstrap bootstrap.Report
}

type Config struct {
	Path    string
	Clock   clock.Clock
	Logger  *slog.Logger
	NewName func() string
}

// Provider opens the store lazily, once per process, and hands the same
// Store to every caller.
type Provider struct {
	cfg    Config
	log    *slog.Logger
	mu     sync.Mutex
	store  *Store
	closed bool
}

func NewProvider(cfg Config) *Provider {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewClock()
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Provider{cfg: cfg, log: cfg.Logger}
}

// Open returns the cached Store, opening and bootstrapping it on first use.
// A failed open is not cached; the next call tries again.
func (p *Provider) Open(ctx context.Context) (*Store, error) {
	const op = "storage.Provider.Open"

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	if p.store != nil {
		return p.store, nil
	}

	log := p.log.With(slog.String("op", op))

	db, err := sqlite.New(ctx, sqlite.Config{Path: p.cfg.Path, Logger: p.log})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	store, err := p.build(db)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bootstrapper, err := bootstrap.New(bootstrap.Config{
		DB:          db,
		Collections: store.Collections,
		Miniatures:  store.Miniatures,
		NewName:     p.cfg.NewName,
		Clock:       p.cfg.Clock,
		Logger:      p.log,
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// The store stays usable when the backfill fails; it is re-evaluated on
	// the next process start.
	store.Bootstrap, err = bootstrapper.Run(ctx)
	if err != nil {
		log.Warn("bootstrap failed", slog.Any("err", err))
	}

	p.store = store

	return store, nil
}

func (p *Provider) build(db *sql.DB) (*Store, error) {
	collectionRepo, err := collections.NewRepository(&collections.Config{DB: db, Clock: p.cfg.Clock})
	if err != nil {
		return nil, err
	}

	miniatureRepo, err := miniatures.NewRepository(&miniatures.Config{DB: db, Clock: p.cfg.Clock})
	if err != nil {
		return nil, err
	}

	imageRepo, err := images.NewRepository(&images.Config{DB: db, Clock: p.cfg.Clock})
	if err != nil {
		return nil, err
	}

	settingsRepo, err := settings.NewRepository(&settings.Config{DB: db})
	if err != nil {
		return nil, err
	}

	return &Store{
		DB:          db,
		Collections: collectionRepo,
		Miniatures:  miniatureRepo,
		Images:      imageRepo,
		Settings:    settingsRepo,
	}, nil
}

// Close closes the database if it was opened. The Provider cannot be
// reopened afterwards.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	if p.store == nil {
		return nil
	}

	err := p.store.DB.Close()
	p.store = nil

	return err
}

package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"miniature_creator/clock"
	"miniature_creator/entities"
	"miniature_creator/identifiers"
	"miniature_creator/names"
	"miniature_creator/repositories/collections"
	"miniature_creator/repositories/miniatures"
)

const DefaultCollectionName = "Example collection"

// Report describes what a Run changed. A zero Report means nothing needed doing.
type Report struct {
	DescriptionsBackfilled   int
	DefaultCollectionCreated bool
	MiniaturesReassigned     int
	MiniaturesRenamed        int
}

type Config struct {
	// DB runs the default-collection step as one transaction.
	DB          *sql.DB
	Collections collections.Repository
	Miniatures  miniatures.Repository
	// NewName supplies replacements for legacy placeholder names; defaults to names.Random.
	NewName func() string
	Clock   clock.Clock
	Logger  *slog.Logger
}

// Bootstrapper backfills record-level data that schema migrations cannot
// express. Every step checks its own precondition, so running it against an
// already bootstrapped store changes nothing.
type Bootstrapper struct {
	db          *sql.DB
	collections collections.Repository
	miniatures  miniatures.Repository
	newName     func() string
	clock       clock.Clock
	log         *slog.Logger
	ran         atomic.Bool
}

func New(cfg Config) (*Bootstrapper, error) {
	if cfg.DB == nil {
		return nil, errors.New("missing DB parameter")
	}

	if cfg.Collections == nil {
		return nil, errors.New("missing collections repository")
	}

	if cfg.Miniatures == nil {
		return nil, errors.New("missing miniatures repository")
	}

	b := &Bootstrapper{
		db:          cfg.DB,
		collections: cfg.Collections,
		miniatures:  cfg.Miniatures,
		newName:     cfg.NewName,
		clock:       cfg.Clock,
		log:         cfg.Logger,
	}

	if b.newName == nil {
		b.newName = names.Random
	}

	if b.clock == nil {
		b.clock = clock.NewClock()
	}

	if b.log == nil {
		b.log = slog.Default()
	}

	return b, nil
}

// Run performs the bootstrap once per Bootstrapper; later calls return a zero
// Report without touching the store.
func (b *Bootstrapper) Run(ctx context.Context) (Report, error) {
	const op = "bootstrap.Bootstrapper.Run"

	log := b.log.With(slog.String("op", op))

	if !b.ran.CompareAndSwap(false, true) {
		return Report{}, nil
	}

	var report Report

	backfilled, err := b.backfillDescriptions(ctx)
	report.DescriptionsBackfilled = backfilled
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}

	err = b.ensureDefaultCollection(ctx, &report)
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}

	if report != (Report{}) {
		log.Info("bootstrap applied",
			slog.Int("descriptions_backfilled", report.DescriptionsBackfilled),
			slog.Bool("default_collection_created", report.DefaultCollectionCreated),
			slog.Int("miniatures_reassigned", report.MiniaturesReassigned),
			slog.Int("miniatures_renamed", report.MiniaturesRenamed))
	}

	return report, nil
}

func (b *Bootstrapper) backfillDescriptions(ctx context.Context) (int, error) {
	missing, err := b.collections.ListMissingDescription(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing collections without description: %w", err)
	}

	for i, collection := range missing {
		collection.Description = ""

		_, err = b.collections.Save(ctx, collection)
		if err != nil {
			return i, err
		}
	}

	return len(missing), nil
}

// ensureDefaultCollection files a legacy library into a new default
// collection. The collection and every reassignment commit together, so an
// interrupted pass leaves no collection behind and runs again next time.
func (b *Bootstrapper) ensureDefaultCollection(ctx context.Context, report *Report) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	//nolint
	defer tx.Rollback()

	collectionRepo := b.collections.WithTx(tx)
	miniatureRepo := b.miniatures.WithTx(tx)

	existing, err := collectionRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("listing collections: %w", err)
	}

	if len(existing) > 0 {
		return nil
	}

	now := b.clock.Now()

	defaultCollection, err := collectionRepo.Save(ctx, &entities.Collection{
		ID:        identifiers.NewCollectionID(),
		Name:      DefaultCollectionName,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("creating default collection: %w", err)
	}

	legacy, err := miniatureRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("listing miniatures: %w", err)
	}

	var reassigned, renamed int

	for _, miniature := range legacy {
		miniature.CollectionID = defaultCollection.ID

		if miniature.Name == names.LegacyPlaceholder {
			miniature.Name = b.newName()
			renamed++
		}

		_, err = miniatureRepo.Save(ctx, miniature)
		if err != nil {
			return fmt.Errorf("reassigning miniature %s: %w", miniature.ID, err)
		}

		reassigned++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	report.DefaultCollectionCreated = true
	report.MiniaturesReassigned = reassigned
	report.MiniaturesRenamed = renamed

	return nil
}

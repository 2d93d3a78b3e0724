package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"miniature_creator/blob_codec"
	"miniature_creator/clock"
	"miniature_creator/entities"
	"miniature_creator/identifiers"
	"miniature_creator/storage"

	"golang.org/x/sync/errgroup"
)

const defaultLoadConcurrency = 4

type StoreOpener interface {
	Open(ctx context.Context) (*storage.Store, error)
}

type Exporter struct {
	store       StoreOpener
	clock       clock.Clock
	log         *slog.Logger
	concurrency int
}

type Config struct {
	Store  StoreOpener
	Clock  clock.Clock
	Logger *slog.Logger
	// Concurrency bounds how many miniatures load their images at once.
	Concurrency int
}

func New(cfg Config) (*Exporter, error) {
	if cfg.Store == nil {
		return nil, errors.New("missing store")
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.NewClock()
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultLoadConcurrency
	}

	return &Exporter{
		store:       cfg.Store,
		clock:       cfg.Clock,
		log:         cfg.Logger,
		concurrency: cfg.Concurrency,
	}, nil
}

// ExportCollection writes every image of every miniature in the collection
// to w and returns the suggested archive file name.
func (e *Exporter) ExportCollection(ctx context.Context, id identifiers.CollectionID, w io.Writer) (string, error) {
	const op = "export.Exporter.ExportCollection"

	log := e.log.With(slog.String("op", op), slog.String("collection_id", id.String()))

	store, err := e.store.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	collection, err := store.Collections.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	minis, err := store.Miniatures.ListByCollection(ctx, id)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	folders := make([]MiniatureImages, len(minis))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, mini := range minis {
		g.Go(func() error {
			imgs, err := store.Images.ListByMiniature(gctx, mini.ID)
			if err != nil {
				return fmt.Errorf("miniature %s: %w", mini.ID, err)
			}

			folders[i] = MiniatureImages{Name: mini.Name, Images: groupByView(imgs)}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := WriteArchive(w, folders); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("collection exported", slog.Int("miniatures", len(folders)))

	return ArchiveName(collection.Name, e.clock.Now()), nil
}

func groupByView(imgs []*entities.Image) map[entities.View][]blob_codec.Blob {
	byView := make(map[entities.View][]blob_codec.Blob, len(entities.Views))

	for _, img := range imgs {
		byView[img.View] = append(byView[img.View], img.Content)
	}

	return byView
}

package app

import (
	"context"
	"fmt"
	"log/slog"

	"miniature_creator/clock"
	"miniature_creator/config"
	"miniature_creator/entities"
	"miniature_creator/export"
	"miniature_creator/gemini_api"
	"miniature_creator/names"
	"miniature_creator/persist_queue"
	"miniature_creator/session"
	"miniature_creator/storage"
	"miniature_creator/thumbnail_renderer"

	"github.com/prometheus/client_golang/prometheus"
)

// App is the process-wide instance: one store, one session.
type App struct {
	Log      *slog.Logger
	Store    *storage.Provider
	Session  *session.Session
	Exporter *export.Exporter
	Metrics  *prometheus.Registry
}

type Options struct {
	// Generator replaces the Gemini client, e.g. in tests.
	Generator gemini_api.Generator
	Clock     clock.Clock
}

func New(ctx context.Context, cfg *config.Config, log *slog.Logger, opts Options) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	if opts.Clock == nil {
		opts.Clock = clock.NewClock()
	}

	provider := storage.NewProvider(storage.Config{
		Path:    cfg.Database.Path,
		Clock:   opts.Clock,
		Logger:  log,
		NewName: names.Random,
	})

	renderer, err := thumbnail_renderer.New(thumbnail_renderer.Config{
		MaxSize: cfg.Thumbnail.MaxSize,
		Quality: cfg.Thumbnail.Quality,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create thumbnail renderer: %w", err)
	}

	generator := opts.Generator
	if generator == nil {
		generator, err = gemini_api.New(gemini_api.Config{
			DefaultModel: entities.GeminiModel(cfg.Gemini.DefaultModel),
			Timeout:      cfg.Gemini.Timeout,
			Logger:       log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
	}

	registry := prometheus.NewRegistry()

	queue, err := persist_queue.New(persist_queue.Config{
		Workers:       cfg.Queue.Workers,
		Capacity:      cfg.Queue.Capacity,
		FailureBuffer: cfg.Queue.FailureBuffer,
		Logger:        log,
		Registerer:    registry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create persist queue: %w", err)
	}

	sess, err := session.New(session.Config{
		Store:         provider,
		Generator:     generator,
		Thumbnails:    renderer,
		Queue:         queue,
		Clock:         opts.Clock,
		Logger:        log,
		DefaultAPIKey: cfg.Gemini.APIKey,
	})
	if err != nil {
		queue.Stop()

		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	exporter, err := export.New(export.Config{Store: provider, Clock: opts.Clock, Logger: log})
	if err != nil {
		sess.Close()

		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	if err := sess.Init(ctx); err != nil {
		sess.Close()
		_ = provider.Close()

		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}

	return &App{
		Log:      log,
		Store:    provider,
		Session:  sess,
		Exporter: exporter,
		Metrics:  registry,
	}, nil
}

// Close drains pending background writes, then closes the database.
func (a *App) Close() error {
	a.Session.Close()

	return a.Store.Close()
}

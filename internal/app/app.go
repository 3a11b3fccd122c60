package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/listing-scraper/internal/browser"
	"github.com/maltedev/listing-scraper/internal/config"
	"github.com/maltedev/listing-scraper/internal/events"
	"github.com/maltedev/listing-scraper/internal/metrics"
	"github.com/maltedev/listing-scraper/internal/parser"
	"github.com/maltedev/listing-scraper/internal/reconciler"
	"github.com/maltedev/listing-scraper/internal/scraper"
	"github.com/maltedev/listing-scraper/internal/storage"

	_ "github.com/maltedev/listing-scraper/internal/storage/postgres"
	_ "github.com/maltedev/listing-scraper/internal/storage/sqlite"
)

// App holds the long-lived pieces a run needs. Close releases all of them.
type App struct {
	Pipeline *scraper.Pipeline
	Store    storage.Store
	Metrics  *metrics.Recorder

	browser   *browser.Browser
	publisher *events.Publisher
	logger    *slog.Logger
}

// New opens the store, the event stream and the browser and assembles the
// pipeline from cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{
		Metrics: metrics.NewRecorder(),
		logger:  logger,
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Database.PersistenceEnabled() {
		a.Store, err = storage.Open(ctx, storage.Config{
			Driver:      cfg.Database.Driver,
			DSN:         cfg.Database.DSN(),
			MaxConns:    cfg.Database.MaxConns,
			MinConns:    cfg.Database.MinConns,
			MaxConnLife: cfg.Database.MaxConnLife,
			MaxConnIdle: cfg.Database.MaxConnIdle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		if err = a.Store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		logger.Info("store ready", "driver", cfg.Database.Driver)
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err = client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.publisher = events.NewPublisher(client, cfg.Redis.Stream, logger)
	}

	browserOpts := browser.DefaultOptions()
	browserOpts.Headless = cfg.Browser.Headless
	browserOpts.Timeout = cfg.Browser.Timeout
	browserOpts.ViewportWidth = cfg.Browser.ViewportWidth
	browserOpts.ViewportHeight = cfg.Browser.ViewportHeight
	browserOpts.Locale = cfg.Browser.Locale
	browserOpts.ProxyServer = cfg.Browser.ProxyServer
	if cfg.Browser.UserAgent != "" {
		browserOpts.UserAgent = cfg.Browser.UserAgent
	}

	a.browser, err = browser.New(browserOpts, logger)
	if err != nil {
		return nil, err
	}

	loader := scraper.NewLoader(scraper.LoaderOptions{
		ItemSelector:    cfg.Scraper.ItemSelector,
		ControlSelector: cfg.Scraper.ControlSelector,
		Timeout:         cfg.Scraper.WaitTimeout,
		PollInterval:    cfg.Scraper.PollInterval,
	}, logger)

	selectors := parser.DefaultSelectors()
	selectors.Container = cfg.Scraper.ItemSelector

	a.Pipeline = scraper.NewPipeline(
		scraper.PipelineConfig{URL: cfg.Scraper.URL, ExportPath: cfg.Scraper.ExportPath},
		a.browser,
		loader,
		parser.NewListingParser(selectors, logger),
		reconciler.New(a.Store, logger),
		logger,
	).WithObserver(a.Metrics)
	if a.publisher != nil {
		a.Pipeline.WithPublisher(a.publisher)
	}

	return a, nil
}

func (a *App) Close() error {
	var errs []error

	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}
	if a.Store != nil {
		a.Store.Close()
	}

	return errors.Join(errs...)
}

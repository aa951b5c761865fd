package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"

	"github.com/at-ishikawa/owl/internal/assets"
	"github.com/at-ishikawa/owl/internal/cache"
	"github.com/at-ishikawa/owl/internal/config"
	"github.com/at-ishikawa/owl/internal/database"
	"github.com/at-ishikawa/owl/internal/dictionary"
	"github.com/at-ishikawa/owl/internal/dictionary/owlbot"
	"github.com/at-ishikawa/owl/internal/favourites"
	"github.com/at-ishikawa/owl/internal/history"
	"github.com/at-ishikawa/owl/internal/lookup"
	"github.com/at-ishikawa/owl/internal/suggest"
	"github.com/at-ishikawa/owl/internal/term"
)

// Components holds everything a command needs to serve lookups.
type Components struct {
	DB      *sqlx.DB
	Cache   *cache.Cache
	Index   *suggest.Index
	Service *lookup.Service
}

type buildOptions struct {
	client dictionary.Client
	clock  clockwork.Clock
	logger *slog.Logger
}

type BuildOption func(*buildOptions)

// WithClient replaces the Owlbot client, typically with a fake in tests.
func WithClient(client dictionary.Client) BuildOption {
	return func(o *buildOptions) {
		o.client = client
	}
}

func WithClock(clock clockwork.Clock) BuildOption {
	return func(o *buildOptions) {
		o.clock = clock
	}
}

func WithLogger(logger *slog.Logger) BuildOption {
	return func(o *buildOptions) {
		o.logger = logger
	}
}

// Build opens storage, applies migrations and wires the lookup service from cfg.
// The caller must Close the returned components.
func Build(ctx context.Context, cfg *config.Config, opts ...BuildOption) (*Components, error) {
	options := buildOptions{
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	locale, err := term.ParseLocale(cfg.Normalizer.Locale)
	if err != nil {
		return nil, fmt.Errorf("term.ParseLocale > %w", err)
	}
	normalizer := term.NewNormalizer(locale, term.WithFoldDiacritics(cfg.Normalizer.FoldDiacritics))

	knownTerms, err := loadKnownTerms(cfg.Suggestions.KnownTermsFile, normalizer, options.logger)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("database.Open > %w", err)
	}
	closeOnError := func(err error) (*Components, error) {
		if closeErr := db.Close(); closeErr != nil {
			return nil, errors.Join(err, closeErr)
		}
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return closeOnError(fmt.Errorf("database.Migrate > %w", err))
	}

	cacheOptions := []cache.Option{cache.WithClock(options.clock), cache.WithLogger(options.logger)}
	if cfg.Cache.Directory != "" {
		store, err := cache.NewFileStore(cfg.Cache.Directory)
		if err != nil {
			return closeOnError(fmt.Errorf("cache.NewFileStore > %w", err))
		}
		cacheOptions = append(cacheOptions, cache.WithStore(store))
	}
	resultCache, err := cache.New(cache.Config{
		Capacity:       cfg.Cache.Capacity,
		TTL:            cfg.Cache.TTL,
		RefreshTimeout: cfg.Cache.RefreshTimeout,
	}, cacheOptions...)
	if err != nil {
		return closeOnError(fmt.Errorf("cache.New > %w", err))
	}

	index := suggest.NewIndex(
		cfg.Suggestions.MaxResults,
		suggest.WithHistory(history.NewDBRepository(db)),
		suggest.WithClock(options.clock),
		suggest.WithLogger(options.logger),
	)
	index.AddKnownTerms(knownTerms)
	if err := index.Load(ctx); err != nil {
		return closeOnError(fmt.Errorf("index.Load > %w", err))
	}

	favouriteStore := favourites.NewStore(
		favourites.NewDBRepository(db),
		favourites.WithClock(options.clock),
		favourites.WithLogger(options.logger),
	)

	client := options.client
	if client == nil {
		client = owlbot.NewClient(owlbot.Config{
			BaseURL:        cfg.Dictionary.BaseURL,
			Token:          cfg.Dictionary.Token,
			Timeout:        cfg.Dictionary.Timeout,
			MaxAttempts:    cfg.Dictionary.MaxAttempts,
			InitialBackoff: cfg.Dictionary.InitialBackoff,
			MaxBackoff:     cfg.Dictionary.MaxBackoff,
			RateLimit:      cfg.Dictionary.RateLimit,
		}, options.logger)
	}

	service := lookup.NewService(
		lookup.Config{Debounce: cfg.Search.Debounce},
		normalizer,
		client,
		resultCache,
		index,
		favouriteStore,
		lookup.WithClock(options.clock),
		lookup.WithLogger(options.logger),
		lookup.WithKnownTerms(knownTerms),
	)

	return &Components{
		DB:      db,
		Cache:   resultCache,
		Index:   index,
		Service: service,
	}, nil
}

func loadKnownTerms(path string, normalizer *term.Normalizer, logger *slog.Logger) ([]term.SearchTerm, error) {
	lines, err := assets.LoadKnownTerms(path)
	if err != nil {
		return nil, fmt.Errorf("assets.LoadKnownTerms > %w", err)
	}
	seen := make(map[term.SearchTerm]bool, len(lines))
	knownTerms := make([]term.SearchTerm, 0, len(lines))
	for _, line := range lines {
		searchTerm, err := normalizer.Normalize(line)
		if err != nil {
			logger.Warn("skipped a known term", "line", line, "error", err)
			continue
		}
		if seen[searchTerm] {
			continue
		}
		seen[searchTerm] = true
		knownTerms = append(knownTerms, searchTerm)
	}
	return knownTerms, nil
}

// Close waits for background cache refreshes and closes the database.
func (c *Components) Close(context.Context) error {
	c.Cache.Wait()
	if err := c.DB.Close(); err != nil {
		return fmt.Errorf("db.Close > %w", err)
	}
	return nil
}

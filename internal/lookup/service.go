// Package lookup wires normalization, caching, suggestions and favourites into the
// operations a user interface calls.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/at-ishikawa/owl/internal/cache"
	"github.com/at-ishikawa/owl/internal/dictionary"
	"github.com/at-ishikawa/owl/internal/favourites"
	"github.com/at-ishikawa/owl/internal/suggest"
	"github.com/at-ishikawa/owl/internal/term"
)

const (
	DefaultDebounce        = 300 * time.Millisecond
	DefaultWarmConcurrency = 4
)

var ErrNoKnownTerms = errors.New("no known terms to pick a word of the day from")

// Result is a resolved search.
type Result struct {
	Term      term.SearchTerm      `json:"term" yaml:"term"`
	Entry     dictionary.WordEntry `json:"entry" yaml:"entry"`
	FetchedAt time.Time            `json:"fetched_at" yaml:"fetched_at"`
	Stale     bool                 `json:"stale" yaml:"stale"`
	FromCache bool                 `json:"from_cache" yaml:"from_cache"`
	Favourite bool                 `json:"favourite" yaml:"favourite"`
}

type Config struct {
	Debounce        time.Duration
	WarmConcurrency int
}

type Option func(*Service)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithKnownTerms sets the terms the word of the day is picked from.
func WithKnownTerms(terms []term.SearchTerm) Option {
	return func(s *Service) {
		s.knownTerms = terms
	}
}

type Service struct {
	normalizer *term.Normalizer
	client     dictionary.Client
	cache      *cache.Cache
	index      *suggest.Index
	favourites *favourites.Store
	knownTerms []term.SearchTerm
	config     Config

	clock  clockwork.Clock
	logger *slog.Logger
}

func NewService(
	config Config,
	normalizer *term.Normalizer,
	client dictionary.Client,
	resultCache *cache.Cache,
	index *suggest.Index,
	favouriteStore *favourites.Store,
	opts ...Option,
) *Service {
	if config.Debounce < 0 {
		config.Debounce = 0
	}
	if config.WarmConcurrency <= 0 {
		config.WarmConcurrency = DefaultWarmConcurrency
	}
	s := &Service{
		normalizer: normalizer,
		client:     client,
		cache:      resultCache,
		index:      index,
		favourites: favouriteStore,
		config:     config,
		clock:      clockwork.NewRealClock(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "lookup")
	return s
}

func (s *Service) Normalize(raw string) (term.SearchTerm, error) {
	return s.normalizer.Normalize(raw)
}

// Search resolves raw from the cache or the dictionary and records the usage for suggestions.
func (s *Service) Search(ctx context.Context, raw string) (Result, error) {
	searchTerm, err := s.normalizer.Normalize(raw)
	if err != nil {
		return Result{}, err
	}
	return s.resolve(ctx, searchTerm, true)
}

func (s *Service) resolve(ctx context.Context, searchTerm term.SearchTerm, recordUsage bool) (Result, error) {
	cached, err := s.cache.GetOrFetch(ctx, searchTerm, s.client.Lookup)
	if err != nil {
		s.logFailure(ctx, searchTerm, err)
		return Result{Term: searchTerm}, err
	}

	result := Result{
		Term:      searchTerm,
		Entry:     cached.Entry,
		FetchedAt: cached.FetchedAt,
		Stale:     cached.Stale,
		FromCache: cached.FromCache,
	}
	if recordUsage {
		if err := s.index.RecordUsage(ctx, searchTerm); err != nil {
			s.logger.WarnContext(ctx, "failed to record the usage of a term", "term", searchTerm, "error", err)
		}
	}
	if s.favourites != nil {
		favourite, err := s.favourites.IsFavourite(ctx, searchTerm)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to check the favourite state", "term", searchTerm, "error", err)
		}
		result.Favourite = favourite
	}
	return result, nil
}

func (s *Service) logFailure(ctx context.Context, searchTerm term.SearchTerm, err error) {
	switch {
	case errors.Is(err, dictionary.ErrCancelled):
		s.logger.DebugContext(ctx, "lookup superseded", "term", searchTerm)
	case errors.Is(err, dictionary.ErrNotFound):
		s.logger.InfoContext(ctx, "no entry for the term", "term", searchTerm)
	default:
		s.logger.WarnContext(ctx, "lookup failed", "term", searchTerm, "error", err)
	}
}

// Suggest returns suggestions for the text typed so far. Empty input has no suggestions.
func (s *Service) Suggest(raw string) []suggest.Suggestion {
	prefix, err := s.normalizer.Normalize(raw)
	if err != nil {
		return []suggest.Suggestion{}
	}
	return s.index.SuggestionsFor(prefix)
}

// Recent returns cached entries, most recently used first.
func (s *Service) Recent() []cache.Entry {
	return s.cache.Entries()
}

func (s *Service) AddFavourite(ctx context.Context, raw string) (bool, error) {
	searchTerm, err := s.normalizer.Normalize(raw)
	if err != nil {
		return false, err
	}
	return s.favourites.Add(ctx, searchTerm)
}

func (s *Service) RemoveFavourite(ctx context.Context, raw string) (bool, error) {
	searchTerm, err := s.normalizer.Normalize(raw)
	if err != nil {
		return false, err
	}
	return s.favourites.Remove(ctx, searchTerm)
}

// ToggleFavourite flips the favourite state and returns the new one.
func (s *Service) ToggleFavourite(ctx context.Context, raw string) (bool, error) {
	searchTerm, err := s.normalizer.Normalize(raw)
	if err != nil {
		return false, err
	}
	return s.favourites.Toggle(ctx, searchTerm)
}

func (s *Service) IsFavourite(ctx context.Context, raw string) (bool, error) {
	searchTerm, err := s.normalizer.Normalize(raw)
	if err != nil {
		return false, err
	}
	return s.favourites.IsFavourite(ctx, searchTerm)
}

func (s *Service) Favourites(ctx context.Context) ([]favourites.Record, error) {
	return s.favourites.List(ctx)
}

func (s *Service) ExportFavourites(ctx context.Context, w io.Writer) error {
	records, err := s.favourites.List(ctx)
	if err != nil {
		return err
	}
	if err := favourites.ExportYAML(w, records); err != nil {
		return fmt.Errorf("favourites.ExportYAML > %w", err)
	}
	return nil
}

// ImportFavourites adds the favourites of an export and returns how many were new.
func (s *Service) ImportFavourites(ctx context.Context, r io.Reader) (int, error) {
	records, err := favourites.ImportYAML(r)
	if err != nil {
		return 0, fmt.Errorf("favourites.ImportYAML > %w", err)
	}

	normalized := make([]favourites.Record, 0, len(records))
	for _, record := range records {
		searchTerm, err := s.normalizer.Normalize(string(record.Term))
		if err != nil {
			s.logger.WarnContext(ctx, "skipped an imported favourite", "term", record.Term, "error", err)
			continue
		}
		record.Term = searchTerm
		normalized = append(normalized, record)
	}
	return s.favourites.Import(ctx, normalized)
}

// WordOfTheDayTerm picks the same known term for every moment of day's calendar date.
func (s *Service) WordOfTheDayTerm(day time.Time) (term.SearchTerm, error) {
	if len(s.knownTerms) == 0 {
		return "", ErrNoKnownTerms
	}
	year, month, date := day.Date()
	days := uint64(time.Date(year, month, date, 0, 0, 0, 0, time.UTC).Unix() / int64(24*time.Hour/time.Second))
	// Knuth's multiplicative hash spreads consecutive days over the list.
	return s.knownTerms[(days*2654435761)%uint64(len(s.knownTerms))], nil
}

// WordOfTheDay resolves the word of the day without counting it as a search.
func (s *Service) WordOfTheDay(ctx context.Context, day time.Time) (Result, error) {
	searchTerm, err := s.WordOfTheDayTerm(day)
	if err != nil {
		return Result{}, err
	}
	return s.resolve(ctx, searchTerm, false)
}

// WarmResult is the outcome of prefetching one term.
type WarmResult struct {
	Term      term.SearchTerm
	FromCache bool
	Err       error
}

// Warm fetches raws into the cache concurrently without counting them as searches.
// Failures are reported per term; the returned error is only set when ctx ends.
func (s *Service) Warm(ctx context.Context, raws []string) ([]WarmResult, error) {
	results := make([]WarmResult, len(raws))

	var group errgroup.Group
	group.SetLimit(s.config.WarmConcurrency)
	for i, raw := range raws {
		searchTerm, err := s.normalizer.Normalize(raw)
		if err != nil {
			results[i] = WarmResult{Term: term.SearchTerm(raw), Err: err}
			continue
		}
		group.Go(func() error {
			if ctx.Err() != nil {
				results[i] = WarmResult{Term: searchTerm, Err: &dictionary.CancelledError{Term: string(searchTerm), Err: ctx.Err()}}
				return nil
			}
			result, err := s.resolve(ctx, searchTerm, false)
			results[i] = WarmResult{Term: searchTerm, FromCache: result.FromCache, Err: err}
			return nil
		})
	}
	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("warm cancelled > %w", err)
	}
	return results, nil
}

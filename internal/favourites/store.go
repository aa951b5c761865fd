// Package favourites keeps the set of terms a user marked as favourite.
package favourites

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/at-ishikawa/owl/internal/term"
)

// Record is a favourited term. A term appears at most once.
type Record struct {
	Term      term.SearchTerm `json:"term" yaml:"term"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
}

type Option func(*Store)

func WithClock(clock clockwork.Clock) Option {
	return func(store *Store) {
		store.clock = clock
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(store *Store) {
		store.logger = logger
	}
}

// Store serializes favourite mutations on top of a Repository.
type Store struct {
	mu         sync.Mutex
	repository Repository
	clock      clockwork.Clock
	logger     *slog.Logger
}

func NewStore(repository Repository, opts ...Option) *Store {
	store := &Store{
		repository: repository,
		clock:      clockwork.NewRealClock(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(store)
	}
	store.logger = store.logger.With("component", "favourites")
	return store
}

// Add favourites searchTerm. Adding a favourite twice keeps the original timestamp and returns false.
func (store *Store) Add(ctx context.Context, searchTerm term.SearchTerm) (bool, error) {
	if searchTerm == "" {
		return false, term.ErrEmptyTerm
	}
	store.mu.Lock()
	defer store.mu.Unlock()

	return store.addLocked(ctx, Record{Term: searchTerm, CreatedAt: store.clock.Now()})
}

func (store *Store) addLocked(ctx context.Context, record Record) (bool, error) {
	added, err := store.repository.Insert(ctx, record)
	if err != nil {
		return false, fmt.Errorf("repository.Insert > %w", err)
	}
	if added {
		store.logger.DebugContext(ctx, "added a favourite", "term", record.Term)
	}
	return added, nil
}

// Remove deletes searchTerm and reports whether it was a favourite.
func (store *Store) Remove(ctx context.Context, searchTerm term.SearchTerm) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	return store.removeLocked(ctx, searchTerm)
}

func (store *Store) removeLocked(ctx context.Context, searchTerm term.SearchTerm) (bool, error) {
	removed, err := store.repository.Delete(ctx, searchTerm)
	if err != nil {
		return false, fmt.Errorf("repository.Delete > %w", err)
	}
	if removed {
		store.logger.DebugContext(ctx, "removed a favourite", "term", searchTerm)
	}
	return removed, nil
}

func (store *Store) IsFavourite(ctx context.Context, searchTerm term.SearchTerm) (bool, error) {
	exists, err := store.repository.Exists(ctx, searchTerm)
	if err != nil {
		return false, fmt.Errorf("repository.Exists > %w", err)
	}
	return exists, nil
}

// List returns favourites, most recently added first.
func (store *Store) List(ctx context.Context) ([]Record, error) {
	records, err := store.repository.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository.List > %w", err)
	}
	return records, nil
}

// Toggle flips the favourite state of searchTerm and returns the new state.
func (store *Store) Toggle(ctx context.Context, searchTerm term.SearchTerm) (bool, error) {
	if searchTerm == "" {
		return false, term.ErrEmptyTerm
	}
	store.mu.Lock()
	defer store.mu.Unlock()

	exists, err := store.repository.Exists(ctx, searchTerm)
	if err != nil {
		return false, fmt.Errorf("repository.Exists > %w", err)
	}
	if exists {
		if _, err := store.removeLocked(ctx, searchTerm); err != nil {
			return false, err
		}
		return false, nil
	}
	if _, err := store.addLocked(ctx, Record{Term: searchTerm, CreatedAt: store.clock.Now()}); err != nil {
		return false, err
	}
	return true, nil
}

// Import adds records with their original timestamps, skipping terms that are already favourites.
func (store *Store) Import(ctx context.Context, records []Record) (int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	added := 0
	for _, record := range records {
		if record.Term == "" {
			continue
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = store.clock.Now()
		}
		ok, err := store.addLocked(ctx, record)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

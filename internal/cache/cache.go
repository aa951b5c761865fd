// Package cache memorizes successful dictionary lookups keyed by search term.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"

	"github.com/at-ishikawa/owl/internal/dictionary"
	"github.com/at-ishikawa/owl/internal/term"
)

const (
	DefaultCapacity       = 50
	DefaultTTL            = 24 * time.Hour
	DefaultRefreshTimeout = 30 * time.Second
)

// Entry is one cached lookup result.
type Entry struct {
	Term      term.SearchTerm      `json:"term"`
	Word      dictionary.WordEntry `json:"word"`
	FetchedAt time.Time            `json:"fetched_at"`
}

// Result is returned by GetOrFetch.
type Result struct {
	Entry     dictionary.WordEntry
	FetchedAt time.Time
	// Stale is set when the entry outlived the TTL. A refresh has been started in the background.
	Stale     bool
	FromCache bool
}

// Fetcher resolves a term on a cache miss, usually dictionary.Client.Lookup.
type Fetcher func(ctx context.Context, searchTerm term.SearchTerm) (dictionary.WordEntry, error)

// Store persists entries so that the cache survives restarts.
type Store interface {
	Load() ([]Entry, error)
	Save(entry Entry) error
	Delete(searchTerm term.SearchTerm) error
}

type Config struct {
	Capacity int
	// TTL of zero disables staleness.
	TTL            time.Duration
	RefreshTimeout time.Duration
}

type Option func(*Cache)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Cache) {
		c.clock = clock
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

func WithStore(store Store) Option {
	return func(c *Cache) {
		c.store = store
	}
}

type flight struct {
	done      chan struct{}
	entry     dictionary.WordEntry
	fetchedAt time.Time
	err       error

	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
	// refresh flights are not owned by any caller and run until the refresh timeout.
	refresh bool
	// superseded is set when Put or Remove touched the term after the flight started.
	superseded bool
}

// Cache is an LRU of word entries with an optional TTL and one in-flight fetch per term.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache[term.SearchTerm, Entry]
	flights map[term.SearchTerm]*flight
	config  Config

	clock  clockwork.Clock
	logger *slog.Logger
	store  Store

	refreshes sync.WaitGroup
}

func New(config Config, opts ...Option) (*Cache, error) {
	if config.Capacity <= 0 {
		config.Capacity = DefaultCapacity
	}
	if config.TTL < 0 {
		config.TTL = 0
	}
	if config.RefreshTimeout <= 0 {
		config.RefreshTimeout = DefaultRefreshTimeout
	}

	c := &Cache{
		flights: make(map[term.SearchTerm]*flight),
		config:  config,
		clock:   clockwork.NewRealClock(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "cache")

	entries, err := lru.NewWithEvict(config.Capacity, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("lru.NewWithEvict > %w", err)
	}
	c.entries = entries

	if c.store != nil {
		if err := c.restore(); err != nil {
			return nil, fmt.Errorf("c.restore > %w", err)
		}
	}
	return c, nil
}

func (c *Cache) restore() error {
	stored, err := c.store.Load()
	if err != nil {
		return fmt.Errorf("store.Load > %w", err)
	}
	// Oldest first, so the most recent entries win when there are more than capacity.
	slices.SortFunc(stored, func(a, b Entry) int {
		return a.FetchedAt.Compare(b.FetchedAt)
	})
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range stored {
		c.entries.Add(entry.Term, entry)
	}
	c.logger.Debug("restored cache entries", "count", c.entries.Len())
	return nil
}

// onEvict runs for capacity evictions and explicit removals.
func (c *Cache) onEvict(searchTerm term.SearchTerm, _ Entry) {
	if c.store == nil {
		return
	}
	if err := c.store.Delete(searchTerm); err != nil {
		c.logger.Warn("failed to delete a cache entry from the store", "term", searchTerm, "error", err)
	}
}

// Get returns a copy of the entry for searchTerm and marks it as recently used.
func (c *Cache) Get(searchTerm term.SearchTerm) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries.Get(searchTerm)
	if !ok {
		return Entry{}, false
	}
	return entry.clone(), true
}

// Put stores word for searchTerm, replacing any previous entry.
func (c *Cache) Put(searchTerm term.SearchTerm, word dictionary.WordEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.flights[searchTerm]; ok {
		f.superseded = true
	}
	c.putLocked(searchTerm, word.Clone(), c.clock.Now())
}

func (c *Cache) putLocked(searchTerm term.SearchTerm, word dictionary.WordEntry, fetchedAt time.Time) {
	entry := Entry{Term: searchTerm, Word: word, FetchedAt: fetchedAt}
	c.entries.Add(searchTerm, entry)
	if c.store == nil {
		return
	}
	if err := c.store.Save(entry); err != nil {
		c.logger.Warn("failed to persist a cache entry", "term", searchTerm, "error", err)
	}
}

// Remove deletes the entry for searchTerm and reports whether one existed.
func (c *Cache) Remove(searchTerm term.SearchTerm) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.flights[searchTerm]; ok {
		f.superseded = true
	}
	return c.entries.Remove(searchTerm)
}

func (c *Cache) Len() int {
	return c.entries.Len()
}

// Entries returns copies of all entries, most recently used first, without touching recency.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.entries.Keys()
	result := make([]Entry, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		if entry, ok := c.entries.Peek(keys[i]); ok {
			result = append(result, entry.clone())
		}
	}
	return result
}

func (c *Cache) IsStale(entry Entry) bool {
	if c.config.TTL == 0 {
		return false
	}
	return c.clock.Since(entry.FetchedAt) >= c.config.TTL
}

// GetOrFetch serves searchTerm from the cache, or fetches it once no matter how many
// callers ask concurrently. A caller whose ctx ends stops waiting with a CancelledError;
// the fetch is cancelled when no caller is waiting for it anymore.
func (c *Cache) GetOrFetch(ctx context.Context, searchTerm term.SearchTerm, fetch Fetcher) (Result, error) {
	c.mu.Lock()
	if entry, ok := c.entries.Get(searchTerm); ok {
		stale := c.IsStale(entry)
		if stale {
			c.refreshLocked(ctx, searchTerm, fetch)
		}
		c.mu.Unlock()
		return Result{
			Entry:     entry.Word.Clone(),
			FetchedAt: entry.FetchedAt,
			Stale:     stale,
			FromCache: true,
		}, nil
	}

	f, ok := c.flights[searchTerm]
	if !ok {
		flightCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = c.startLocked(flightCtx, cancel, searchTerm, fetch, false)
	}
	f.waiters++
	c.mu.Unlock()

	select {
	case <-f.done:
	case <-ctx.Done():
		if c.leave(searchTerm, f) {
			return Result{}, &dictionary.CancelledError{Term: string(searchTerm), Err: ctx.Err()}
		}
	}
	if f.err != nil {
		return Result{}, f.err
	}
	return Result{Entry: f.entry.Clone(), FetchedAt: f.fetchedAt}, nil
}

// leave reports true when the waiter left before the flight completed.
func (c *Cache) leave(searchTerm term.SearchTerm, f *flight) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-f.done:
		return false
	default:
	}
	f.waiters--
	if f.waiters == 0 && !f.refresh {
		if c.flights[searchTerm] == f {
			delete(c.flights, searchTerm)
		}
		f.cancel()
	}
	return true
}

func (c *Cache) refreshLocked(ctx context.Context, searchTerm term.SearchTerm, fetch Fetcher) {
	if _, ok := c.flights[searchTerm]; ok {
		return
	}
	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.RefreshTimeout)
	c.startLocked(refreshCtx, cancel, searchTerm, fetch, true)
	c.logger.DebugContext(ctx, "refreshing a stale entry", "term", searchTerm)
}

func (c *Cache) startLocked(ctx context.Context, cancel context.CancelFunc, searchTerm term.SearchTerm, fetch Fetcher, refresh bool) *flight {
	f := &flight{
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		refresh: refresh,
	}
	c.flights[searchTerm] = f
	if refresh {
		c.refreshes.Add(1)
	}
	go c.run(searchTerm, f, fetch)
	return f
}

func (c *Cache) run(searchTerm term.SearchTerm, f *flight, fetch Fetcher) {
	defer f.cancel()
	if f.refresh {
		defer c.refreshes.Done()
	}

	entry, err := fetch(f.ctx, searchTerm)

	c.mu.Lock()
	if c.flights[searchTerm] == f {
		delete(c.flights, searchTerm)
	}
	committed := false
	if f.ctx.Err() == nil && !f.superseded {
		switch {
		case err == nil:
			f.fetchedAt = c.clock.Now()
			c.putLocked(searchTerm, entry, f.fetchedAt)
			committed = true
		case f.refresh && errors.Is(err, dictionary.ErrNotFound):
			c.entries.Remove(searchTerm)
			committed = true
		}
	}
	if err == nil && f.fetchedAt.IsZero() {
		f.fetchedAt = c.clock.Now()
	}
	f.entry = entry
	f.err = err
	close(f.done)
	c.mu.Unlock()

	switch {
	case f.refresh && err != nil && !errors.Is(err, dictionary.ErrNotFound):
		c.logger.WarnContext(f.ctx, "background refresh failed, keeping the stale entry", "term", searchTerm, "error", err)
	case f.refresh && err != nil:
		c.logger.InfoContext(f.ctx, "stale entry no longer exists upstream", "term", searchTerm)
	case err == nil && !committed:
		c.logger.DebugContext(f.ctx, "discarded a superseded fetch result", "term", searchTerm)
	}
}

// Wait blocks until background refreshes have finished.
func (c *Cache) Wait() {
	c.refreshes.Wait()
}

func (e Entry) clone() Entry {
	e.Word = e.Word.Clone()
	return e
}

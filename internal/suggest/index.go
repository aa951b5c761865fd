// Package suggest produces autocomplete suggestions from search history and a list of known terms.
package suggest

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/tchap/go-patricia/v2/patricia"

	"github.com/at-ishikawa/owl/internal/history"
	"github.com/at-ishikawa/owl/internal/term"
)

const DefaultMaxResults = 10

// Suggestion is an autocomplete candidate. Weight is the number of past lookups.
type Suggestion struct {
	Term   term.SearchTerm `json:"term"`
	Weight int             `json:"weight"`
}

type Option func(*Index)

func WithHistory(repository history.Repository) Option {
	return func(index *Index) {
		index.history = repository
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(index *Index) {
		index.clock = clock
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(index *Index) {
		index.logger = logger
	}
}

// Index is a prefix trie of terms weighted by usage.
type Index struct {
	mu         sync.RWMutex
	trie       *patricia.Trie
	maxResults int

	history history.Repository
	clock   clockwork.Clock
	logger  *slog.Logger
}

func NewIndex(maxResults int, opts ...Option) *Index {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	index := &Index{
		trie:       patricia.NewTrie(),
		maxResults: maxResults,
		clock:      clockwork.NewRealClock(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(index)
	}
	index.logger = index.logger.With("component", "suggest")
	return index
}

// AddKnownTerms adds terms with no usage. Terms already in the index keep their weight.
func (index *Index) AddKnownTerms(terms []term.SearchTerm) {
	index.mu.Lock()
	defer index.mu.Unlock()

	for _, searchTerm := range terms {
		if searchTerm == "" {
			continue
		}
		index.trie.Insert(patricia.Prefix(searchTerm), 0)
	}
}

// Load rebuilds weights from the history repository.
func (index *Index) Load(ctx context.Context) error {
	if index.history == nil {
		return nil
	}
	usages, err := index.history.All(ctx)
	if err != nil {
		return fmt.Errorf("history.All > %w", err)
	}

	index.mu.Lock()
	defer index.mu.Unlock()
	for _, usage := range usages {
		index.trie.Set(patricia.Prefix(usage.Term), usage.Count)
	}
	index.logger.DebugContext(ctx, "loaded search history", "terms", len(usages))
	return nil
}

// RecordUsage increments the weight of searchTerm and writes it through to the history.
func (index *Index) RecordUsage(ctx context.Context, searchTerm term.SearchTerm) error {
	if searchTerm == "" {
		return term.ErrEmptyTerm
	}

	index.mu.Lock()
	key := patricia.Prefix(searchTerm)
	weight, _ := index.trie.Get(key).(int)
	index.trie.Set(key, weight+1)
	index.mu.Unlock()

	if index.history == nil {
		return nil
	}
	if err := index.history.RecordUsage(ctx, searchTerm, index.clock.Now()); err != nil {
		return fmt.Errorf("history.RecordUsage > %w", err)
	}
	return nil
}

// SuggestionsFor returns at most maxResults terms starting with prefix, heaviest first.
// Every call computes a new slice from the current state.
func (index *Index) SuggestionsFor(prefix term.SearchTerm) []Suggestion {
	suggestions := []Suggestion{}
	if prefix == "" {
		return suggestions
	}

	index.mu.RLock()
	err := index.trie.VisitSubtree(patricia.Prefix(prefix), func(p patricia.Prefix, item patricia.Item) error {
		weight, _ := item.(int)
		suggestions = append(suggestions, Suggestion{Term: term.SearchTerm(p), Weight: weight})
		return nil
	})
	index.mu.RUnlock()
	if err != nil {
		index.logger.Error("failed to visit the suggestion trie", "prefix", prefix, "error", err)
		return []Suggestion{}
	}

	slices.SortFunc(suggestions, func(a, b Suggestion) int {
		if a.Weight != b.Weight {
			return cmp.Compare(b.Weight, a.Weight)
		}
		return cmp.Compare(a.Term, b.Term)
	})
	if len(suggestions) > index.maxResults {
		suggestions = suggestions[:index.maxResults]
	}
	return suggestions
}

// Weight returns the usage count of searchTerm and whether the index knows it.
func (index *Index) Weight(searchTerm term.SearchTerm) (int, bool) {
	index.mu.RLock()
	defer index.mu.RUnlock()

	item := index.trie.Get(patricia.Prefix(searchTerm))
	if item == nil {
		return 0, false
	}
	weight, _ := item.(int)
	return weight, true
}

func (index *Index) Len() int {
	index.mu.RLock()
	defer index.mu.RUnlock()

	count := 0
	_ = index.trie.Visit(func(patricia.Prefix, patricia.Item) error {
		count++
		return nil
	})
	return count
}

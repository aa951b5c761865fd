// Package dictionary defines the word entry model, the lookup client contract and its error taxonomy.
package dictionary

import (
	"context"

	"github.com/at-ishikawa/owl/internal/term"
)

//go:generate mockgen -source=client.go -destination=../mocks/dictionary/mock_client.go -package=mock_dictionary

// Client looks a normalized term up in a remote dictionary.
// Implementations hold no shared state; populating caches is the caller's job.
type Client interface {
	Lookup(ctx context.Context, searchTerm term.SearchTerm) (WordEntry, error)
}

package lookup

import (
	"errors"
	"fmt"

	"github.com/at-ishikawa/owl/internal/dictionary"
	"github.com/at-ishikawa/owl/internal/term"
)

type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeInvalidInput
	OutcomeNotFound
	OutcomeRetry
	OutcomeCancelled
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeInvalidInput:
		return "invalid_input"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeRetry:
		return "retry"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailure:
		return "failure"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is what a user interface shows for the result of a search.
type Outcome struct {
	Kind    OutcomeKind
	Message string
	// Silent outcomes must not be shown at all.
	Silent bool
	// Retryable outcomes should offer the user a way to try again.
	Retryable bool
}

// Describe maps a search error to what the user sees.
func Describe(err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Kind: OutcomeOK}
	case errors.Is(err, dictionary.ErrCancelled):
		return Outcome{Kind: OutcomeCancelled, Silent: true}
	case errors.Is(err, term.ErrEmptyTerm):
		return Outcome{Kind: OutcomeInvalidInput, Message: "Type a word to search for."}
	case errors.Is(err, dictionary.ErrNotFound):
		var notFound *dictionary.NotFoundError
		if errors.As(err, &notFound) && notFound.Term != "" {
			return Outcome{Kind: OutcomeNotFound, Message: fmt.Sprintf("No definitions found for %q.", notFound.Term)}
		}
		return Outcome{Kind: OutcomeNotFound, Message: "No definitions found."}
	case errors.Is(err, dictionary.ErrTransient):
		return Outcome{Kind: OutcomeRetry, Message: "The dictionary is not reachable right now. Try again.", Retryable: true}
	case errors.Is(err, dictionary.ErrRejected):
		return Outcome{Kind: OutcomeFailure, Message: "The dictionary rejected the request. Check the API token."}
	default:
		return Outcome{Kind: OutcomeFailure, Message: "The dictionary returned an unexpected answer."}
	}
}

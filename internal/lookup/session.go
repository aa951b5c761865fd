package lookup

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/at-ishikawa/owl/internal/dictionary"
	"github.com/at-ishikawa/owl/internal/suggest"
	"github.com/at-ishikawa/owl/internal/term"
)

var ErrSessionClosed = errors.New("session closed")

// Session is one search slot of a user interface: typing updates suggestions and
// prefetches after a pause, and a submitted search supersedes the previous one.
type Session struct {
	service *Service
	clock   clockwork.Clock
	logger  *slog.Logger

	// ctx is cancelled by Close and is the parent of every lookup the session starts.
	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	closed         bool
	searchSeq      uint64
	searchCancel   context.CancelFunc
	pending        clockwork.Timer
	prefetchCancel context.CancelFunc
	wg             sync.WaitGroup
}

func (s *Service) NewSession() *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		service: s,
		clock:   s.clock,
		logger:  s.logger.With("component", "session"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// OnSearchTermChanged returns suggestions for text and schedules a prefetch once typing
// pauses for the configured debounce. Every call replaces the previously scheduled prefetch.
func (session *Session) OnSearchTermChanged(text string) []suggest.Suggestion {
	suggestions := session.service.Suggest(text)

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.closed {
		return suggestions
	}
	session.stopPrefetchLocked()

	searchTerm, err := session.service.Normalize(text)
	if err != nil || session.service.config.Debounce == 0 {
		return suggestions
	}

	ctx, cancel := context.WithCancel(session.ctx)
	session.prefetchCancel = cancel
	session.wg.Add(1)
	session.pending = session.clock.AfterFunc(session.service.config.Debounce, func() {
		defer session.wg.Done()
		defer cancel()
		session.prefetch(ctx, searchTerm)
	})
	return suggestions
}

func (session *Session) prefetch(ctx context.Context, searchTerm term.SearchTerm) {
	if ctx.Err() != nil {
		return
	}
	if _, err := session.service.resolve(ctx, searchTerm, false); err != nil {
		session.logger.DebugContext(ctx, "prefetch failed", "term", searchTerm, "error", err)
	}
}

// stopPrefetchLocked drops a scheduled prefetch. A prefetch that already started is cancelled.
func (session *Session) stopPrefetchLocked() {
	if session.pending != nil {
		if session.pending.Stop() {
			session.wg.Done()
		}
		session.pending = nil
	}
	if session.prefetchCancel != nil {
		session.prefetchCancel()
		session.prefetchCancel = nil
	}
}

// OnSearch runs an explicit search. It cancels the search this session started before,
// which then returns a CancelledError even if its result had already arrived.
func (session *Session) OnSearch(ctx context.Context, raw string) (Result, error) {
	session.mu.Lock()
	if session.closed {
		session.mu.Unlock()
		return Result{}, ErrSessionClosed
	}
	if session.searchCancel != nil {
		session.searchCancel()
	}
	session.stopPrefetchLocked()
	session.searchSeq++
	seq := session.searchSeq
	searchCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(session.ctx, cancel)
	session.searchCancel = cancel
	session.mu.Unlock()

	defer func() {
		stop()
		cancel()
	}()

	result, err := session.service.Search(searchCtx, raw)

	session.mu.Lock()
	defer session.mu.Unlock()
	if seq != session.searchSeq || session.closed {
		if err == nil || !errors.Is(err, dictionary.ErrCancelled) {
			err = &dictionary.CancelledError{Term: string(result.Term), Err: context.Canceled}
		}
		return Result{}, err
	}
	session.searchCancel = nil
	return result, err
}

// OnSuggestionClick searches the chosen suggestion.
func (session *Session) OnSuggestionClick(ctx context.Context, suggestion string) (Result, error) {
	return session.OnSearch(ctx, suggestion)
}

// Close cancels outstanding work and waits for scheduled prefetches to finish.
func (session *Session) Close() {
	session.mu.Lock()
	if session.closed {
		session.mu.Unlock()
		return
	}
	session.closed = true
	session.stopPrefetchLocked()
	if session.searchCancel != nil {
		session.searchCancel()
		session.searchCancel = nil
	}
	session.mu.Unlock()

	session.cancel()
	session.wg.Wait()
}

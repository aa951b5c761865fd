// Package server exposes the dictionary lookup over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"

	"github.com/at-ishikawa/owl/internal/cache"
	"github.com/at-ishikawa/owl/internal/favourites"
	"github.com/at-ishikawa/owl/internal/lookup"
	"github.com/at-ishikawa/owl/internal/suggest"
	"github.com/at-ishikawa/owl/internal/term"
)

// retryAfterSeconds is sent with 503 responses for transient dictionary failures.
const retryAfterSeconds = "5"

const dateLayout = "2006-01-02"

// Dictionary is the part of lookup.Service the handlers use.
type Dictionary interface {
	Normalize(raw string) (term.SearchTerm, error)
	Search(ctx context.Context, raw string) (lookup.Result, error)
	Suggest(raw string) []suggest.Suggestion
	Recent() []cache.Entry
	Favourites(ctx context.Context) ([]favourites.Record, error)
	IsFavourite(ctx context.Context, raw string) (bool, error)
	AddFavourite(ctx context.Context, raw string) (bool, error)
	RemoveFavourite(ctx context.Context, raw string) (bool, error)
	WordOfTheDay(ctx context.Context, day time.Time) (lookup.Result, error)
}

var _ Dictionary = (*lookup.Service)(nil)

type Handler struct {
	dictionary Dictionary
	clock      clockwork.Clock
	logger     *slog.Logger
}

type HandlerOption func(*Handler)

func WithClock(clock clockwork.Clock) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

func NewHandler(dictionary Dictionary, opts ...HandlerOption) *Handler {
	h := &Handler{
		dictionary: dictionary,
		clock:      clockwork.NewRealClock(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "server")
	return h
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type SuggestionsResponse struct {
	Suggestions []suggest.Suggestion `json:"suggestions"`
}

type RecentResponse struct {
	Entries []cache.Entry `json:"entries"`
}

type FavouritesResponse struct {
	Favourites []favourites.Record `json:"favourites"`
}

type FavouriteResponse struct {
	Term      term.SearchTerm `json:"term"`
	Favourite bool            `json:"favourite"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Kind: "failure"})
}

// writeLookupError maps the lookup error taxonomy to a status code.
// Cancelled lookups get no response body since nobody is waiting for it.
func (h *Handler) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	outcome := lookup.Describe(err)
	var status int
	switch outcome.Kind {
	case lookup.OutcomeCancelled:
		return
	case lookup.OutcomeInvalidInput:
		status = http.StatusBadRequest
	case lookup.OutcomeNotFound:
		status = http.StatusNotFound
	case lookup.OutcomeRetry:
		w.Header().Set("Retry-After", retryAfterSeconds)
		status = http.StatusServiceUnavailable
	default:
		if errors.Is(err, lookup.ErrNoKnownTerms) {
			status = http.StatusNotFound
			outcome.Message = err.Error()
			break
		}
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "lookup failed", "error", err, "status", status)
	}
	writeJSON(w, status, ErrorResponse{Error: outcome.Message, Kind: outcome.Kind.String()})
}

// writeStoreError reports a failure of the local stores.
func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, term.ErrEmptyTerm) {
		h.writeLookupError(w, r, err)
		return
	}
	h.logger.ErrorContext(r.Context(), "favourites store failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// termParam returns the decoded {term}. chi routes on RawPath when it is set,
// and then the parameter is still escaped.
func termParam(r *http.Request) string {
	param := chi.URLParam(r, "term")
	if r.URL.RawPath == "" {
		return param
	}
	if unescaped, err := url.PathUnescape(param); err == nil {
		return unescaped
	}
	return param
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetEntry handles GET /api/v1/entries/{term}
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	result, err := h.dictionary.Search(r.Context(), termParam(r))
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetSuggestions handles GET /api/v1/suggestions?q=
func (h *Handler) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SuggestionsResponse{
		Suggestions: h.dictionary.Suggest(r.URL.Query().Get("q")),
	})
}

// GetRecent handles GET /api/v1/recent?limit=
// Widgets use it to show cached entries without reaching the dictionary.
func (h *Handler) GetRecent(w http.ResponseWriter, r *http.Request) {
	entries := h.dictionary.Recent()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer", Kind: lookup.OutcomeInvalidInput.String()})
			return
		}
		if limit < len(entries) {
			entries = entries[:limit]
		}
	}
	if entries == nil {
		entries = []cache.Entry{}
	}
	writeJSON(w, http.StatusOK, RecentResponse{Entries: entries})
}

// ListFavourites handles GET /api/v1/favourites
func (h *Handler) ListFavourites(w http.ResponseWriter, r *http.Request) {
	records, err := h.dictionary.Favourites(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if records == nil {
		records = []favourites.Record{}
	}
	writeJSON(w, http.StatusOK, FavouritesResponse{Favourites: records})
}

// GetFavourite handles GET /api/v1/favourites/{term}
func (h *Handler) GetFavourite(w http.ResponseWriter, r *http.Request) {
	searchTerm, err := h.dictionary.Normalize(termParam(r))
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	favourite, err := h.dictionary.IsFavourite(r.Context(), string(searchTerm))
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if !favourite {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not a favourite", Kind: lookup.OutcomeNotFound.String()})
		return
	}
	writeJSON(w, http.StatusOK, FavouriteResponse{Term: searchTerm, Favourite: true})
}

// PutFavourite handles PUT /api/v1/favourites/{term}
func (h *Handler) PutFavourite(w http.ResponseWriter, r *http.Request) {
	searchTerm, err := h.dictionary.Normalize(termParam(r))
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	added, err := h.dictionary.AddFavourite(r.Context(), string(searchTerm))
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, FavouriteResponse{Term: searchTerm, Favourite: true})
}

// DeleteFavourite handles DELETE /api/v1/favourites/{term}
func (h *Handler) DeleteFavourite(w http.ResponseWriter, r *http.Request) {
	removed, err := h.dictionary.RemoveFavourite(r.Context(), termParam(r))
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not a favourite", Kind: lookup.OutcomeNotFound.String()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetWordOfTheDay handles GET /api/v1/word-of-the-day?date=YYYY-MM-DD
func (h *Handler) GetWordOfTheDay(w http.ResponseWriter, r *http.Request) {
	day := h.clock.Now()
	if date := r.URL.Query().Get("date"); date != "" {
		parsed, err := time.Parse(dateLayout, date)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "date must be formatted as YYYY-MM-DD", Kind: lookup.OutcomeInvalidInput.String()})
			return
		}
		day = parsed
	}

	result, err := h.dictionary.WordOfTheDay(r.Context(), day)
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

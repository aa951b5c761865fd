package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/text/language"

	"github.com/at-ishikawa/owl/internal/cache"
	"github.com/at-ishikawa/owl/internal/dictionary"
	"github.com/at-ishikawa/owl/internal/favourites"
	"github.com/at-ishikawa/owl/internal/history"
	"github.com/at-ishikawa/owl/internal/lookup"
	mock_dictionary "github.com/at-ishikawa/owl/internal/mocks/dictionary"
	"github.com/at-ishikawa/owl/internal/suggest"
	"github.com/at-ishikawa/owl/internal/term"
	"github.com/at-ishikawa/owl/internal/testutil"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func helloEntry() dictionary.WordEntry {
	return dictionary.WordEntry{
		Headword: "hello",
		Senses: []dictionary.Sense{
			{PartOfSpeech: "exclamation", Definition: "used as a greeting"},
			{PartOfSpeech: "noun", Definition: "an utterance of hello"},
		},
	}
}

func setupTestRouter(t *testing.T, knownTerms []term.SearchTerm) (http.Handler, *mock_dictionary.MockClient) {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mock_dictionary.NewMockClient(ctrl)
	clock := clockwork.NewFakeClockAt(testNow)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db := testutil.OpenTestDB(t)

	resultCache, err := cache.New(cache.Config{}, cache.WithClock(clock), cache.WithLogger(logger))
	require.NoError(t, err)
	index := suggest.NewIndex(10, suggest.WithHistory(history.NewDBRepository(db)), suggest.WithClock(clock))
	favouriteStore := favourites.NewStore(favourites.NewDBRepository(db), favourites.WithClock(clock))
	service := lookup.NewService(
		lookup.Config{},
		term.NewNormalizer(language.English),
		client,
		resultCache,
		index,
		favouriteStore,
		lookup.WithClock(clock),
		lookup.WithLogger(logger),
		lookup.WithKnownTerms(knownTerms),
	)

	handler := NewHandler(service, WithClock(clock), WithLogger(logger))
	return NewRouter(handler, []string{"http://localhost:3000"}, logger), client
}

func serve(t *testing.T, router http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_HealthCheck(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	rec := serve(t, router, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHandler_GetEntry(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		setup          func(client *mock_dictionary.MockClient)
		wantStatus     int
		wantRetryAfter string
		wantKind       string
	}{
		{
			name: "found",
			path: "/api/v1/entries/Hello",
			setup: func(client *mock_dictionary.MockClient) {
				client.EXPECT().Lookup(gomock.Any(), term.SearchTerm("hello")).Return(helloEntry(), nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "escaped phrase",
			path: "/api/v1/entries/break%20the%20ice",
			setup: func(client *mock_dictionary.MockClient) {
				client.EXPECT().Lookup(gomock.Any(), term.SearchTerm("break the ice")).
					Return(dictionary.WordEntry{Headword: "break the ice", Senses: []dictionary.Sense{{Definition: "start a conversation"}}}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "literal percent sign is decoded once",
			path: "/api/v1/entries/50%2541",
			setup: func(client *mock_dictionary.MockClient) {
				client.EXPECT().Lookup(gomock.Any(), term.SearchTerm("50%41")).
					Return(dictionary.WordEntry{Headword: "50%41", Senses: []dictionary.Sense{{Definition: "a literal term"}}}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "escaped slash",
			path: "/api/v1/entries/and%2For",
			setup: func(client *mock_dictionary.MockClient) {
				client.EXPECT().Lookup(gomock.Any(), term.SearchTerm("and/or")).
					Return(dictionary.WordEntry{Headword: "and/or", Senses: []dictionary.Sense{{Definition: "either or both"}}}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "not found",
			path: "/api/v1/entries/zzzzqqqq",
			setup: func(client *mock_dictionary.MockClient) {
				client.EXPECT().Lookup(gomock.Any(), term.SearchTerm("zzzzqqqq")).
					Return(dictionary.WordEntry{}, &dictionary.NotFoundError{Term: "zzzzqqqq"})
			},
			wantStatus: http.StatusNotFound,
			wantKind:   "not_found",
		},
		{
			name: "transient",
			path: "/api/v1/entries/flaky",
			setup: func(client *mock_dictionary.MockClient) {
				client.EXPECT().Lookup(gomock.Any(), term.SearchTerm("flaky")).
					Return(dictionary.WordEntry{}, &dictionary.TransientError{Term: "flaky", Attempts: 3})
			},
			wantStatus:     http.StatusServiceUnavailable,
			wantRetryAfter: "5",
			wantKind:       "retry",
		},
		{
			name: "malformed",
			path: "/api/v1/entries/broken",
			setup: func(client *mock_dictionary.MockClient) {
				client.EXPECT().Lookup(gomock.Any(), term.SearchTerm("broken")).
					Return(dictionary.WordEntry{}, &dictionary.MalformedResponseError{Term: "broken", Err: io.ErrUnexpectedEOF})
			},
			wantStatus: http.StatusBadGateway,
			wantKind:   "failure",
		},
		{
			name:       "blank term",
			path:       "/api/v1/entries/%20%20",
			setup:      func(client *mock_dictionary.MockClient) {},
			wantStatus: http.StatusBadRequest,
			wantKind:   "invalid_input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, client := setupTestRouter(t, nil)
			tt.setup(client)

			rec := serve(t, router, http.MethodGet, tt.path)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantRetryAfter, rec.Header().Get("Retry-After"))
			if tt.wantStatus != http.StatusOK {
				var got ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Equal(t, tt.wantKind, got.Kind)
				assert.NotEmpty(t, got.Error)
				return
			}

			var got lookup.Result
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.NotEmpty(t, got.Entry.Senses)
			assert.Equal(t, testNow, got.FetchedAt)
		})
	}
}

func TestHandler_GetEntry_Cancelled(t *testing.T) {
	router, client := setupTestRouter(t, nil)
	client.EXPECT().Lookup(gomock.Any(), term.SearchTerm("hello")).
		DoAndReturn(func(ctx context.Context, searchTerm term.SearchTerm) (dictionary.WordEntry, error) {
			<-ctx.Done()
			return dictionary.WordEntry{}, ctx.Err()
		}).AnyTimes()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/entries/hello", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Empty(t, rec.Body.String())
}

func TestHandler_GetSuggestions(t *testing.T) {
	router, client := setupTestRouter(t, nil)
	for _, word := range []string{"hello", "help", "world"} {
		client.EXPECT().Lookup(gomock.Any(), term.SearchTerm(word)).
			Return(dictionary.WordEntry{Headword: word, Senses: []dictionary.Sense{{Definition: word}}}, nil)
		require.Equal(t, http.StatusOK, serve(t, router, http.MethodGet, "/api/v1/entries/"+word).Code)
	}

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "prefix he",
			query: "?q=he",
			want:  `{"suggestions":[{"term":"hello","weight":1},{"term":"help","weight":1}]}`,
		},
		{
			name:  "no match",
			query: "?q=xyz",
			want:  `{"suggestions":[]}`,
		},
		{
			name:  "missing query",
			query: "",
			want:  `{"suggestions":[]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, router, http.MethodGet, "/api/v1/suggestions"+tt.query)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}

func TestHandler_GetRecent(t *testing.T) {
	router, client := setupTestRouter(t, nil)

	rec := serve(t, router, http.MethodGet, "/api/v1/recent")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entries":[]}`, rec.Body.String())

	for _, word := range []string{"hello", "help", "world"} {
		client.EXPECT().Lookup(gomock.Any(), term.SearchTerm(word)).
			Return(dictionary.WordEntry{Headword: word, Senses: []dictionary.Sense{{Definition: word}}}, nil)
		require.Equal(t, http.StatusOK, serve(t, router, http.MethodGet, "/api/v1/entries/"+word).Code)
	}

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantTerms  []term.SearchTerm
	}{
		{
			name:       "all entries, most recent first",
			query:      "",
			wantStatus: http.StatusOK,
			wantTerms:  []term.SearchTerm{"world", "help", "hello"},
		},
		{
			name:       "limited",
			query:      "?limit=2",
			wantStatus: http.StatusOK,
			wantTerms:  []term.SearchTerm{"world", "help"},
		},
		{
			name:       "limit above size",
			query:      "?limit=10",
			wantStatus: http.StatusOK,
			wantTerms:  []term.SearchTerm{"world", "help", "hello"},
		},
		{
			name:       "invalid limit",
			query:      "?limit=zero",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "non-positive limit",
			query:      "?limit=0",
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, router, http.MethodGet, "/api/v1/recent"+tt.query)
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}

			var got RecentResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			terms := make([]term.SearchTerm, 0, len(got.Entries))
			for _, entry := range got.Entries {
				terms = append(terms, entry.Term)
				assert.Equal(t, testNow, entry.FetchedAt.UTC())
			}
			assert.Equal(t, tt.wantTerms, terms)
		})
	}
}

func TestHandler_Favourites(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	steps := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "empty list",
			method:     http.MethodGet,
			path:       "/api/v1/favourites",
			wantStatus: http.StatusOK,
			wantBody:   `{"favourites":[]}`,
		},
		{
			name:       "not a favourite yet",
			method:     http.MethodGet,
			path:       "/api/v1/favourites/hello",
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"not a favourite","kind":"not_found"}`,
		},
		{
			name:       "add",
			method:     http.MethodPut,
			path:       "/api/v1/favourites/Hello",
			wantStatus: http.StatusCreated,
			wantBody:   `{"term":"hello","favourite":true}`,
		},
		{
			name:       "add again",
			method:     http.MethodPut,
			path:       "/api/v1/favourites/hello",
			wantStatus: http.StatusOK,
			wantBody:   `{"term":"hello","favourite":true}`,
		},
		{
			name:       "is favourite",
			method:     http.MethodGet,
			path:       "/api/v1/favourites/hello",
			wantStatus: http.StatusOK,
			wantBody:   `{"term":"hello","favourite":true}`,
		},
		{
			name:       "list",
			method:     http.MethodGet,
			path:       "/api/v1/favourites",
			wantStatus: http.StatusOK,
			wantBody:   `{"favourites":[{"term":"hello","created_at":"2026-03-01T09:00:00Z"}]}`,
		},
		{
			name:       "remove",
			method:     http.MethodDelete,
			path:       "/api/v1/favourites/hello",
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "remove again",
			method:     http.MethodDelete,
			path:       "/api/v1/favourites/hello",
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"not a favourite","kind":"not_found"}`,
		},
		{
			name:       "blank term",
			method:     http.MethodPut,
			path:       "/api/v1/favourites/%20",
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Type a word to search for.","kind":"invalid_input"}`,
		},
	}
	for _, step := range steps {
		rec := serve(t, router, step.method, step.path)
		assert.Equal(t, step.wantStatus, rec.Code, step.name)
		if step.wantBody == "" {
			assert.Empty(t, rec.Body.String(), step.name)
			continue
		}
		assert.JSONEq(t, step.wantBody, rec.Body.String(), step.name)
	}
}

func TestHandler_GetWordOfTheDay(t *testing.T) {
	t.Run("no known terms", func(t *testing.T) {
		router, _ := setupTestRouter(t, nil)
		rec := serve(t, router, http.MethodGet, "/api/v1/word-of-the-day")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid date", func(t *testing.T) {
		router, _ := setupTestRouter(t, []term.SearchTerm{"owl"})
		rec := serve(t, router, http.MethodGet, "/api/v1/word-of-the-day?date=yesterday")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("explicit date", func(t *testing.T) {
		router, client := setupTestRouter(t, []term.SearchTerm{"owl"})
		client.EXPECT().Lookup(gomock.Any(), term.SearchTerm("owl")).
			Return(dictionary.WordEntry{Headword: "owl", Senses: []dictionary.Sense{{Definition: "a nocturnal bird"}}}, nil)

		rec := serve(t, router, http.MethodGet, "/api/v1/word-of-the-day?date=2026-01-15")
		require.Equal(t, http.StatusOK, rec.Code)
		var got lookup.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, term.SearchTerm("owl"), got.Term)
	})
}

func TestCORS(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{
			name:       "preflight from an allowed origin",
			method:     http.MethodOptions,
			origin:     "http://localhost:3000",
			wantStatus: http.StatusNoContent,
			wantOrigin: "http://localhost:3000",
		},
		{
			name:       "request from another origin",
			method:     http.MethodGet,
			origin:     "https://evil.example.com",
			wantStatus: http.StatusOK,
			wantOrigin: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.True(t, strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete))
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "incoming-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "incoming-id", seen)
	assert.Equal(t, "incoming-id", rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get("X-Request-Id"))
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error","kind":"failure"}`, rec.Body.String())
}

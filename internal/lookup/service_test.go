package lookup

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
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
	mock_dictionary "github.com/at-ishikawa/owl/internal/mocks/dictionary"
	"github.com/at-ishikawa/owl/internal/suggest"
	"github.com/at-ishikawa/owl/internal/term"
	"github.com/at-ishikawa/owl/internal/testutil"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func helloEntry() dictionary.WordEntry {
	return dictionary.WordEntry{
		Headword:      "hello",
		Pronunciation: "həˈləʊ",
		Senses: []dictionary.Sense{
			{PartOfSpeech: "exclamation", Definition: "used as a greeting", Examples: []string{"hello there"}},
			{PartOfSpeech: "noun", Definition: "an utterance of hello"},
		},
	}
}

type testDeps struct {
	service *Service
	client  *mock_dictionary.MockClient
	cache   *cache.Cache
	index   *suggest.Index
	clock   *clockwork.FakeClock
}

func newTestService(t *testing.T, config Config, opts ...Option) testDeps {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mock_dictionary.NewMockClient(ctrl)
	clock := clockwork.NewFakeClockAt(testNow)

	db := testutil.OpenTestDB(t)

	resultCache, err := cache.New(cache.Config{Capacity: 10, TTL: 24 * time.Hour}, cache.WithClock(clock))
	require.NoError(t, err)
	index := suggest.NewIndex(10, suggest.WithHistory(history.NewDBRepository(db)), suggest.WithClock(clock))
	favouriteStore := favourites.NewStore(favourites.NewDBRepository(db), favourites.WithClock(clock))

	opts = append([]Option{WithClock(clock)}, opts...)
	service := NewService(config, term.NewNormalizer(language.English), client, resultCache, index, favouriteStore, opts...)
	return testDeps{
		service: service,
		client:  client,
		cache:   resultCache,
		index:   index,
		clock:   clock,
	}
}

func TestService_Search(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		setup         func(client *mock_dictionary.MockClient)
		wantErr       error
		wantHeadword  string
		wantCached    bool
		wantUsage     int
		wantUsageSeen bool
	}{
		{
			name: "hello populates the cache",
			raw:  "  Hello ",
			setup: func(client *mock_dictionary.MockClient) {
				client.EXPECT().Lookup(gomock.Any(), term.SearchTerm("hello")).Return(helloEntry(), nil).Times(1)
			},
			wantHeadword:  "hello",
			wantCached:    true,
			wantUsage:     1,
			wantUsageSeen: true,
		},
		{
			name: "not found leaves the cache unchanged",
			raw:  "zzzzqqqq",
			setup: func(client *mock_dictionary.MockClient) {
				client.EXPECT().Lookup(gomock.Any(), term.SearchTerm("zzzzqqqq")).
					Return(dictionary.WordEntry{}, &dictionary.NotFoundError{Term: "zzzzqqqq"}).Times(1)
			},
			wantErr: dictionary.ErrNotFound,
		},
		{
			name: "transient error is surfaced",
			raw:  "flaky",
			setup: func(client *mock_dictionary.MockClient) {
				client.EXPECT().Lookup(gomock.Any(), term.SearchTerm("flaky")).
					Return(dictionary.WordEntry{}, &dictionary.TransientError{Term: "flaky", Attempts: 3}).Times(1)
			},
			wantErr: dictionary.ErrTransient,
		},
		{
			name:    "empty input never reaches the client",
			raw:     " \t ",
			setup:   func(client *mock_dictionary.MockClient) {},
			wantErr: term.ErrEmptyTerm,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestService(t, Config{})
			tt.setup(deps.client)

			got, err := deps.service.Search(context.Background(), tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 0, deps.cache.Len())
				assert.Equal(t, 0, deps.index.Len())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantHeadword, got.Entry.Headword)
			assert.Len(t, got.Entry.Senses, 2)
			assert.False(t, got.FromCache)
			assert.Equal(t, testNow, got.FetchedAt)

			_, cached := deps.cache.Get(got.Term)
			assert.Equal(t, tt.wantCached, cached)
			usage, seen := deps.index.Weight(got.Term)
			assert.Equal(t, tt.wantUsageSeen, seen)
			assert.Equal(t, tt.wantUsage, usage)
		})
	}
}

func TestService_Search_ServedFromCache(t *testing.T) {
	deps := newTestService(t, Config{})
	ctx := context.Background()
	deps.client.EXPECT().Lookup(gomock.Any(), term.SearchTerm("hello")).Return(helloEntry(), nil).Times(1)

	first, err := deps.service.Search(ctx, "hello")
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.False(t, first.Favourite)

	_, err = deps.service.AddFavourite(ctx, "HELLO")
	require.NoError(t, err)

	second, err := deps.service.Search(ctx, "Hello")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.True(t, second.Favourite)
	assert.Equal(t, first.Entry, second.Entry)

	assert.Equal(t, []suggest.Suggestion{{Term: "hello", Weight: 2}}, deps.service.Suggest("he"))
}

func TestService_Search_Concurrent(t *testing.T) {
	deps := newTestService(t, Config{})
	gate := make(chan struct{})
	var calls atomic.Int32
	deps.client.EXPECT().Lookup(gomock.Any(), term.SearchTerm("hello")).
		DoAndReturn(func(ctx context.Context, searchTerm term.SearchTerm) (dictionary.WordEntry, error) {
			calls.Add(1)
			<-gate
			return helloEntry(), nil
		}).Times(1)

	const callers = 10
	var wg sync.WaitGroup
	results := make([]Result, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = deps.service.Search(context.Background(), "hello")
		}()
	}

	// Give every caller the chance to join the flight before it completes.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, "hello", results[i].Entry.Headword)
	}
	weight, ok := deps.index.Weight("hello")
	assert.True(t, ok)
	assert.Equal(t, callers, weight)
}

func TestService_Suggest(t *testing.T) {
	deps := newTestService(t, Config{})
	ctx := context.Background()
	for _, searchTerm := range []term.SearchTerm{"hello", "help", "world"} {
		require.NoError(t, deps.index.RecordUsage(ctx, searchTerm))
	}
	require.NoError(t, deps.index.RecordUsage(ctx, "hello"))

	tests := []struct {
		name string
		raw  string
		want []suggest.Suggestion
	}{
		{
			name: "prefix he",
			raw:  "He",
			want: []suggest.Suggestion{{Term: "hello", Weight: 2}, {Term: "help", Weight: 1}},
		},
		{
			name: "no match",
			raw:  "xyz",
			want: []suggest.Suggestion{},
		},
		{
			name: "empty input",
			raw:  "   ",
			want: []suggest.Suggestion{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deps.service.Suggest(tt.raw)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_Favourites(t *testing.T) {
	deps := newTestService(t, Config{})
	ctx := context.Background()

	added, err := deps.service.AddFavourite(ctx, " Hello ")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = deps.service.AddFavourite(ctx, "hello")
	require.NoError(t, err)
	assert.False(t, added)

	deps.clock.Advance(time.Minute)
	favourite, err := deps.service.ToggleFavourite(ctx, "World")
	require.NoError(t, err)
	assert.True(t, favourite)

	records, err := deps.service.Favourites(ctx)
	require.NoError(t, err)
	assert.Equal(t, []favourites.Record{
		{Term: "world", CreatedAt: testNow.Add(time.Minute)},
		{Term: "hello", CreatedAt: testNow},
	}, records)

	removed, err := deps.service.RemoveFavourite(ctx, "HELLO")
	require.NoError(t, err)
	assert.True(t, removed)

	isFavourite, err := deps.service.IsFavourite(ctx, "hello")
	require.NoError(t, err)
	assert.False(t, isFavourite)

	_, err = deps.service.AddFavourite(ctx, "")
	assert.ErrorIs(t, err, term.ErrEmptyTerm)
}

func TestService_ExportImportFavourites(t *testing.T) {
	deps := newTestService(t, Config{})
	ctx := context.Background()

	imported, err := deps.service.ImportFavourites(ctx, strings.NewReader(`favourites:
  - term: "  Hello "
    created_at: 2025-01-02T03:04:05Z
  - term: ""
    created_at: 2025-01-02T03:04:05Z
  - term: world
    created_at: 2025-02-02T03:04:05Z
`))
	require.NoError(t, err)
	assert.Equal(t, 2, imported)

	var buf bytes.Buffer
	require.NoError(t, deps.service.ExportFavourites(ctx, &buf))
	assert.Equal(t, `favourites:
  - term: world
    created_at: 2025-02-02T03:04:05Z
  - term: hello
    created_at: 2025-01-02T03:04:05Z
`, buf.String())

	_, err = deps.service.ImportFavourites(ctx, strings.NewReader("favourites: [[["))
	assert.Error(t, err)
}

func TestService_WordOfTheDay(t *testing.T) {
	known := []term.SearchTerm{"apple", "brave", "candle", "dream", "eagle", "forest", "garden"}

	t.Run("no known terms", func(t *testing.T) {
		deps := newTestService(t, Config{})
		_, err := deps.service.WordOfTheDay(context.Background(), testNow)
		assert.ErrorIs(t, err, ErrNoKnownTerms)
	})

	t.Run("same pick for the whole day", func(t *testing.T) {
		deps := newTestService(t, Config{}, WithKnownTerms(known))
		morning, err := deps.service.WordOfTheDayTerm(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		night, err := deps.service.WordOfTheDayTerm(time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC))
		require.NoError(t, err)
		local, err := deps.service.WordOfTheDayTerm(time.Date(2026, 3, 1, 23, 0, 0, 0, time.FixedZone("JST", 9*60*60)))
		require.NoError(t, err)
		assert.Equal(t, morning, night)
		assert.Equal(t, morning, local)
		assert.Contains(t, known, morning)

		next, err := deps.service.WordOfTheDayTerm(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.NotEqual(t, morning, next)
	})

	t.Run("resolved without recording usage", func(t *testing.T) {
		deps := newTestService(t, Config{}, WithKnownTerms(known))
		want, err := deps.service.WordOfTheDayTerm(testNow)
		require.NoError(t, err)
		deps.client.EXPECT().Lookup(gomock.Any(), want).
			Return(dictionary.WordEntry{Headword: string(want), Senses: []dictionary.Sense{{Definition: "a word"}}}, nil).Times(1)

		got, err := deps.service.WordOfTheDay(context.Background(), testNow)
		require.NoError(t, err)
		assert.Equal(t, want, got.Term)
		assert.Equal(t, string(want), got.Entry.Headword)
		assert.Equal(t, 0, deps.index.Len())
	})
}

func TestService_Warm(t *testing.T) {
	deps := newTestService(t, Config{WarmConcurrency: 2})
	deps.client.EXPECT().Lookup(gomock.Any(), term.SearchTerm("hello")).Return(helloEntry(), nil).Times(1)
	deps.client.EXPECT().Lookup(gomock.Any(), term.SearchTerm("zzzzqqqq")).
		Return(dictionary.WordEntry{}, &dictionary.NotFoundError{Term: "zzzzqqqq"}).Times(1)

	deps.cache.Put("world", dictionary.WordEntry{Headword: "world", Senses: []dictionary.Sense{{Definition: "the earth"}}})

	results, err := deps.service.Warm(context.Background(), []string{"Hello", " ", "zzzzqqqq", "world"})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, term.SearchTerm("hello"), results[0].Term)
	assert.NoError(t, results[0].Err)
	assert.False(t, results[0].FromCache)
	assert.ErrorIs(t, results[1].Err, term.ErrEmptyTerm)
	assert.ErrorIs(t, results[2].Err, dictionary.ErrNotFound)
	assert.NoError(t, results[3].Err)
	assert.True(t, results[3].FromCache)

	assert.Equal(t, 2, deps.cache.Len())
	assert.Equal(t, 0, deps.index.Len())
}

func TestService_Warm_Cancelled(t *testing.T) {
	deps := newTestService(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := deps.service.Warm(ctx, []string{"hello", "world"})
	assert.ErrorIs(t, err, context.Canceled)
	for _, result := range results {
		assert.True(t, errors.Is(result.Err, dictionary.ErrCancelled), result.Err)
	}
}

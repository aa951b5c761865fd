// Package testutil provides shared test helpers for config files, databases and a fake Owlbot server.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/owl/internal/database"
)

// HelloResponse is an Owlbot answer for "hello" with two definitions.
const HelloResponse = `{
  "word": "hello",
  "pronunciation": "həˈlō",
  "definitions": [
    {"type": "exclamation", "definition": "used as a greeting", "example": "<b>hello</b> there, Katie!", "image_url": null, "emoji": null},
    {"type": "noun", "definition": "an utterance of 'hello'; a greeting", "example": null, "image_url": null, "emoji": null}
  ]
}`

// SetupTestConfig creates a config file using SQLite, an on-disk cache and a known terms
// file under tmpDir, with the dictionary pointed at baseURL. Returns the path to the config file.
func SetupTestConfig(t *testing.T, tmpDir string, baseURL string, knownTerms ...string) string {
	t.Helper()

	cacheDir := filepath.Join(tmpDir, "cache")
	require.NoError(t, os.MkdirAll(cacheDir, 0755))

	knownTermsPath := filepath.Join(tmpDir, "known_terms.txt")
	require.NoError(t, os.WriteFile(knownTermsPath, []byte(strings.Join(knownTerms, "\n")+"\n"), 0644))

	configContent := fmt.Sprintf(`dictionary:
  base_url: %s
  max_attempts: 2
  initial_backoff: 1ms
  max_backoff: 1ms
  rate_limit: 0
cache:
  directory: %s
suggestions:
  known_terms_file: %s
storage:
  sqlite_path: %s
`,
		baseURL,
		cacheDir,
		knownTermsPath,
		filepath.Join(tmpDir, "owl.db"),
	)

	cfgPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(configContent), 0644))
	return cfgPath
}

// OpenTestDB opens a migrated SQLite database that is closed when the test ends.
func OpenTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "owl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

// FakeOwlbot serves canned Owlbot responses. Unknown words get a 404.
type FakeOwlbot struct {
	Server *httptest.Server
	calls  atomic.Int32
}

// NewFakeOwlbot starts a server answering GET /dictionary/{word}. A status written as
// the body, such as "503", is returned as that status code instead of a response.
func NewFakeOwlbot(t *testing.T, responses map[string]string) *FakeOwlbot {
	t.Helper()
	fake := &FakeOwlbot{}
	fake.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fake.calls.Add(1)
		word := strings.TrimPrefix(r.URL.Path, "/dictionary/")
		body, ok := responses[word]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`[{"message":"No definition :("}]`))
			return
		}
		var status int
		if _, err := fmt.Sscanf(body, "%d", &status); err == nil && len(body) == 3 {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(fake.Server.Close)
	return fake
}

func (fake *FakeOwlbot) URL() string {
	return fake.Server.URL
}

// Calls returns the number of requests served so far.
func (fake *FakeOwlbot) Calls() int {
	return int(fake.calls.Load())
}

package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/at-ishikawa/owl/internal/term"
)

const fileExtension = ".json"

// FileStore keeps one JSON file per term under a directory.
type FileStore struct {
	mu      sync.Mutex
	rootDir string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(cacheDirectory string) (*FileStore, error) {
	if err := os.MkdirAll(cacheDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("os.MkdirAll(%s) > %w", cacheDirectory, err)
	}
	return &FileStore{
		rootDir: cacheDirectory,
	}, nil
}

func (store *FileStore) filePath(searchTerm term.SearchTerm) string {
	return filepath.Join(store.rootDir, url.PathEscape(string(searchTerm))+fileExtension)
}

// Save writes the entry to a temporary file first and renames it, so a reader never sees a partial file.
func (store *FileStore) Save(entry Entry) error {
	contents, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("json.Marshal > %w", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	file, err := os.CreateTemp(store.rootDir, ".entry-*.tmp")
	if err != nil {
		return fmt.Errorf("os.CreateTemp > %w", err)
	}
	tempPath := file.Name()
	defer func() {
		_ = os.Remove(tempPath)
	}()

	if _, err := file.Write(contents); err != nil {
		_ = file.Close()
		return fmt.Errorf("file.Write > %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("file.Close > %w", err)
	}
	if err := os.Rename(tempPath, store.filePath(entry.Term)); err != nil {
		return fmt.Errorf("os.Rename > %w", err)
	}
	return nil
}

func (store *FileStore) Delete(searchTerm term.SearchTerm) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if err := os.Remove(store.filePath(searchTerm)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("os.Remove > %w", err)
	}
	return nil
}

// Load reads every entry in the directory. Unreadable entries are dropped from disk.
func (store *FileStore) Load() ([]Entry, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	files, err := os.ReadDir(store.rootDir)
	if err != nil {
		return nil, fmt.Errorf("os.ReadDir(%s) > %w", store.rootDir, err)
	}

	entries := make([]Entry, 0, len(files))
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), fileExtension) {
			continue
		}
		path := filepath.Join(store.rootDir, file.Name())
		entry, err := store.read(path)
		if err != nil {
			_ = os.Remove(path)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (store *FileStore) read(path string) (Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return Entry{}, fmt.Errorf("os.Open > %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	contents, err := io.ReadAll(file)
	if err != nil {
		return Entry{}, fmt.Errorf("io.ReadAll > %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(contents, &entry); err != nil {
		return Entry{}, fmt.Errorf("json.Unmarshal > %w", err)
	}
	if entry.Term == "" {
		return Entry{}, fmt.Errorf("entry in %s has no term", path)
	}
	return entry, nil
}

package assets

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

//go:embed known_terms.txt
var fallbackKnownTerms string

// LoadKnownTerms reads one term per line from path, or the embedded list when path is empty.
// Blank lines and lines starting with # are skipped.
func LoadKnownTerms(path string) ([]string, error) {
	if path == "" {
		return parseKnownTerms(strings.NewReader(fallbackKnownTerms))
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open(%s) > %w", path, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Default().Warn("failed to close a file", "path", path, "error", err)
		}
	}()

	terms, err := parseKnownTerms(file)
	if err != nil {
		return nil, fmt.Errorf("parseKnownTerms(%s) > %w", path, err)
	}
	return terms, nil
}

func parseKnownTerms(reader io.Reader) ([]string, error) {
	var terms []string
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		terms = append(terms, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner.Err > %w", err)
	}
	return terms, nil
}

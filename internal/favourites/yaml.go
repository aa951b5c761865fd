package favourites

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type exportFile struct {
	Favourites []Record `yaml:"favourites"`
}

// ExportYAML writes records as a YAML document.
func ExportYAML(w io.Writer, records []Record) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(exportFile{Favourites: records}); err != nil {
		return fmt.Errorf("encoder.Encode > %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("encoder.Close > %w", err)
	}
	return nil
}

// ImportYAML reads records written by ExportYAML.
func ImportYAML(r io.Reader) ([]Record, error) {
	var file exportFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if err == io.EOF {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("decoder.Decode > %w", err)
	}
	if file.Favourites == nil {
		return []Record{}, nil
	}
	return file.Favourites, nil
}

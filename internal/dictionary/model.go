package dictionary

import (
	"fmt"
	"strings"
)

// WordEntry is one dictionary result ready for display.
type WordEntry struct {
	Headword      string  `json:"headword" yaml:"headword"`
	Pronunciation string  `json:"pronunciation,omitempty" yaml:"pronunciation,omitempty"`
	Senses        []Sense `json:"senses" yaml:"senses"`
	Source        string  `json:"source,omitempty" yaml:"source,omitempty"`
}

// Sense is a single meaning of a headword.
type Sense struct {
	PartOfSpeech string   `json:"part_of_speech,omitempty" yaml:"part_of_speech,omitempty"`
	Definition   string   `json:"definition" yaml:"definition"`
	Examples     []string `json:"examples,omitempty" yaml:"examples,omitempty"`
	ImageURL     string   `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	Emoji        string   `json:"emoji,omitempty" yaml:"emoji,omitempty"`
}

// Clone returns a deep copy so callers can't mutate a cached entry.
func (e WordEntry) Clone() WordEntry {
	clone := e
	if e.Senses != nil {
		clone.Senses = make([]Sense, len(e.Senses))
		for i, sense := range e.Senses {
			clone.Senses[i] = sense
			if sense.Examples != nil {
				clone.Senses[i].Examples = append([]string(nil), sense.Examples...)
			}
		}
	}
	return clone
}

// PartsOfSpeech lists the distinct parts of speech in order of first appearance.
func (e WordEntry) PartsOfSpeech() []string {
	seen := make(map[string]struct{}, len(e.Senses))
	result := make([]string, 0, len(e.Senses))
	for _, sense := range e.Senses {
		if sense.PartOfSpeech == "" {
			continue
		}
		if _, ok := seen[sense.PartOfSpeech]; ok {
			continue
		}
		seen[sense.PartOfSpeech] = struct{}{}
		result = append(result, sense.PartOfSpeech)
	}
	return result
}

// Summary renders the entry as plain text, one numbered sense per line.
func (e WordEntry) Summary() string {
	builder := strings.Builder{}
	if e.Pronunciation != "" {
		builder.WriteString(fmt.Sprintf("%s: /%s/\n", e.Headword, e.Pronunciation))
	} else {
		builder.WriteString(e.Headword + "\n")
	}
	for i, sense := range e.Senses {
		if sense.PartOfSpeech != "" {
			builder.WriteString(fmt.Sprintf("%d. [%s] %s\n", i+1, sense.PartOfSpeech, sense.Definition))
		} else {
			builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, sense.Definition))
		}
		for _, example := range sense.Examples {
			builder.WriteString(fmt.Sprintf("   e.g. %s\n", example))
		}
	}
	return builder.String()
}

// https://owlbot.info/
package owlbot

import (
	"strings"

	"github.com/at-ishikawa/owl/internal/dictionary"
)

// Response is the body of GET /dictionary/{word}.
type Response struct {
	Word          string       `json:"word" validate:"required"`
	Pronunciation string       `json:"pronunciation"`
	Definitions   []Definition `json:"definitions" validate:"required,min=1,dive"`
}

type Definition struct {
	Type       string `json:"type"`
	Definition string `json:"definition" validate:"required"`
	Example    string `json:"example"`
	ImageURL   string `json:"image_url" validate:"omitempty,url"`
	Emoji      string `json:"emoji"`
}

// Examples come back with inline emphasis markup around the headword.
var markupReplacer = strings.NewReplacer("<b>", "", "</b>", "", "<i>", "", "</i>", "")

func (r Response) ToWordEntry(source string) dictionary.WordEntry {
	senses := make([]dictionary.Sense, 0, len(r.Definitions))
	for _, definition := range r.Definitions {
		sense := dictionary.Sense{
			PartOfSpeech: strings.TrimSpace(definition.Type),
			Definition:   strings.TrimSpace(definition.Definition),
			ImageURL:     definition.ImageURL,
			Emoji:        definition.Emoji,
		}
		if example := strings.TrimSpace(markupReplacer.Replace(definition.Example)); example != "" {
			sense.Examples = []string{example}
		}
		senses = append(senses, sense)
	}

	return dictionary.WordEntry{
		Headword:      r.Word,
		Pronunciation: strings.TrimSpace(r.Pronunciation),
		Senses:        senses,
		Source:        source,
	}
}

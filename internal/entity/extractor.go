// Package entity derives searchable keyword strings and query variants from
// named entities. Entity recognition itself is an external capability behind
// the Extractor interface; a naive capitalized-span extractor is provided so
// the binary works without one.
package entity

import (
	"regexp"
	"strings"
)

// Category classifies a recognized entity.
type Category string

const (
	CategoryPerson       Category = "person"
	CategoryPlace        Category = "place"
	CategoryOrganization Category = "organization"
	CategoryOther        Category = "other"
)

// Entity is one recognized span of text.
type Entity struct {
	Text     string
	Category Category
}

// Extractor recognizes named entities in text. Implementations are assumed
// fast and synchronous relative to LLM calls.
type Extractor interface {
	Extract(text string) []Entity
}

// capitalized word runs: "New York", "Anna", "OpenAI Inc"
var capSpanRe = regexp.MustCompile(`\b[A-Z][\w'-]*(?:\s+[A-Z][\w'-]*)*`)

// Words that start sentences constantly and carry no recall value.
var spanStopwords = map[string]bool{
	"i": true, "the": true, "a": true, "an": true, "this": true,
	"that": true, "these": true, "those": true, "it": true, "he": true,
	"she": true, "they": true, "we": true, "you": true, "my": true,
	"what": true, "when": true, "where": true, "who": true, "why": true,
	"how": true, "is": true, "are": true, "was": true, "do": true,
	"does": true, "did": true, "yes": true, "no": true, "ok": true,
	"okay": true, "hi": true, "hello": true, "thanks": true, "please": true,
}

// HeuristicExtractor is the built-in fallback recognizer: capitalized word
// spans minus sentence-starter stopwords, all tagged CategoryOther. It has no
// understanding of entity types; wire a real recognizer for those.
type HeuristicExtractor struct{}

func (HeuristicExtractor) Extract(text string) []Entity {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var out []Entity
	for _, span := range capSpanRe.FindAllString(text, -1) {
		if spanStopwords[strings.ToLower(span)] {
			continue
		}
		out = append(out, Entity{Text: span, Category: CategoryOther})
	}
	return out
}

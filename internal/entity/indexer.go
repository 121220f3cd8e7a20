package entity

import "strings"

const minExpandWordLen = 3

// DeriveKeywords turns text into a compact lower-cased space-joined keyword
// string for cheap substring search. Entities are deduplicated by exact
// (text, category) equality. Empty input or no entities yields "".
func DeriveKeywords(ex Extractor, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	seen := make(map[Entity]bool)
	var keywords []string
	for _, e := range ex.Extract(text) {
		if seen[e] {
			continue
		}
		seen[e] = true
		keywords = append(keywords, strings.ToLower(e.Text))
	}

	return strings.Join(keywords, " ")
}

// ExpandQuery generates recall-oriented variants of a keyword query:
// the original query, each entity in it, each word >=3 chars from multi-word
// entities, each word >=3 chars from the raw query, and for a single-word
// query a wildcard-suffixed variant. A single literal substring match on
// short chat queries would otherwise miss most recall-relevant rows.
func ExpandQuery(ex Extractor, query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	seen := make(map[string]bool)
	var variants []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		variants = append(variants, v)
	}

	add(query)

	for _, e := range ex.Extract(query) {
		add(e.Text)
		words := strings.Fields(e.Text)
		if len(words) > 1 {
			for _, w := range words {
				if len(w) >= minExpandWordLen {
					add(w)
				}
			}
		}
	}

	for _, w := range strings.Fields(query) {
		if len(w) >= minExpandWordLen {
			add(w)
		}
	}

	if len(strings.Fields(query)) == 1 {
		add(query + "*")
	}

	return variants
}

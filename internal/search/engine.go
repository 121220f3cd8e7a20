// Package search ranks stored memory against a free-text query, merging a
// semantic cosine-similarity pass with an entity-keyword substring pass.
package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/marrowlab/recall/internal/embedding"
	"github.com/marrowlab/recall/internal/entity"
	"github.com/marrowlab/recall/internal/store"
)

// KeywordRelevance is the fixed score for pure-keyword matches: above a
// barely-passing semantic match, below a strong one, so both modalities stay
// competitive in one ranking.
const KeywordRelevance = 0.75

const defaultMaxResults = 5

// ItemSource is the slice of the store the engine reads.
type ItemSource interface {
	AllEmbedded(ctx context.Context) ([]store.ContentItem, error)
}

// Result is one ranked snippet. Relevance is cosine similarity for semantic
// matches and KeywordRelevance for keyword-only matches.
type Result struct {
	Content       string
	Relevance     float64
	Source        string
	IsEntityMatch bool
	FilePath      string
}

// ResultSet partitions ranked results by origin. TokenEstimate is the rough
// len/4 token count of everything kept.
type ResultSet struct {
	Conversation  []Result
	Documents     []Result
	TokenEstimate int
}

// Empty reports whether no snippet was kept.
func (rs *ResultSet) Empty() bool {
	return len(rs.Conversation) == 0 && len(rs.Documents) == 0
}

// Ranked merges both partitions back into one relevance-descending list,
// preserving the engine's stable ordering.
func (rs *ResultSet) Ranked() []Result {
	merged := make([]Result, 0, len(rs.Conversation)+len(rs.Documents))
	i, j := 0, 0
	for i < len(rs.Conversation) && j < len(rs.Documents) {
		if rs.Conversation[i].Relevance >= rs.Documents[j].Relevance {
			merged = append(merged, rs.Conversation[i])
			i++
		} else {
			merged = append(merged, rs.Documents[j])
			j++
		}
	}
	merged = append(merged, rs.Conversation[i:]...)
	merged = append(merged, rs.Documents[j:]...)
	return merged
}

// Options configures one search call. RelevanceThreshold is a live setting:
// the value passed here is whatever the config says right now.
type Options struct {
	CurrentSourceID    string
	ExcludeTurns       []int
	MaxResults         int
	RelevanceThreshold float64
}

// Engine performs unified semantic + keyword retrieval. It holds no
// persistent state and is safe to reconstruct per request.
type Engine struct {
	items     ItemSource
	provider  embedding.Provider
	extractor entity.Extractor
}

// NewEngine builds an engine over the given store slice.
func NewEngine(items ItemSource, provider embedding.Provider, extractor entity.Extractor) *Engine {
	return &Engine{items: items, provider: provider, extractor: extractor}
}

// Search runs both passes and returns a deduplicated, relevance-ranked,
// size-bounded result set. A query that cannot be embedded (empty input)
// yields an empty set, and so does an unavailable store. It never returns
// an error that would break the chat flow.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (*ResultSet, error) {
	rs := &ResultSet{}

	queryVec, err := e.provider.Embed(ctx, query)
	if err != nil || len(queryVec) == 0 {
		return rs, nil
	}

	items, err := e.items.AllEmbedded(ctx)
	if err != nil {
		slog.Warn("search: store scan failed, returning empty results", "error", err)
		return rs, nil
	}
	if len(items) == 0 {
		return rs, nil
	}

	excluded := make(map[int]bool, len(opts.ExcludeTurns))
	for _, t := range opts.ExcludeTurns {
		excluded[t] = true
	}
	skip := func(it store.ContentItem) bool {
		// Turns already present verbatim in short-term memory must not be
		// re-surfaced via long-term search.
		return it.SourceType == store.SourceConversation &&
			it.SourceID == opts.CurrentSourceID &&
			excluded[it.Turn()]
	}

	// Semantic pass.
	var results []Result
	byContent := make(map[string]int)
	for _, it := range items {
		if skip(it) {
			continue
		}
		sim := embedding.CosineSimilarity(queryVec, it.Embedding)
		if sim < opts.RelevanceThreshold {
			continue
		}
		if _, dup := byContent[it.Content]; dup {
			continue
		}
		byContent[it.Content] = len(results)
		results = append(results, Result{
			Content:   it.Content,
			Relevance: sim,
			Source:    string(it.SourceType),
			FilePath:  it.Metadata.FilePath,
		})
	}

	// Keyword pass over expanded query variants. O(variants * rows)
	// substring matching, sized for on-device volumes.
	variants := entity.ExpandQuery(e.extractor, query)
	for _, it := range items {
		if skip(it) {
			continue
		}
		if !matchesAny(it, variants) {
			continue
		}
		if idx, dup := byContent[it.Content]; dup {
			results[idx].IsEntityMatch = true // upgrade in place, no duplicate
			continue
		}
		byContent[it.Content] = len(results)
		results = append(results, Result{
			Content:       it.Content,
			Relevance:     KeywordRelevance,
			Source:        string(it.SourceType),
			IsEntityMatch: true,
			FilePath:      it.Metadata.FilePath,
		})
	}

	// Rank: relevance descending, first-seen order on ties.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	for _, r := range results {
		rs.TokenEstimate += len(r.Content) / 4
		if r.Source == string(store.SourceConversation) {
			rs.Conversation = append(rs.Conversation, r)
		} else {
			rs.Documents = append(rs.Documents, r)
		}
	}
	return rs, nil
}

func matchesAny(it store.ContentItem, variants []string) bool {
	if len(variants) == 0 {
		return false
	}
	keywords := strings.ToLower(it.EntityKeywords)
	content := strings.ToLower(it.Content)
	for _, v := range variants {
		term := strings.ToLower(strings.TrimSuffix(v, "*"))
		if term == "" {
			continue
		}
		if strings.Contains(keywords, term) || strings.Contains(content, term) {
			return true
		}
	}
	return false
}

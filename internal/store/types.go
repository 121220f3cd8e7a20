// Package store persists conversation turns and document chunks in a single
// on-device SQLite database and owns that connection's lifecycle.
package store

import "time"

// SourceType classifies where a ContentItem came from.
type SourceType string

const (
	SourceConversation SourceType = "conversation"
	SourceDocument     SourceType = "document"
	SourceWebPage      SourceType = "webpage"
	SourceEmail        SourceType = "email"
)

// ItemMetadata is the typed side-channel stored alongside an item.
// One explicit schema instead of an untyped map; all fields optional.
type ItemMetadata struct {
	PromptUsed      string   `json:"promptUsed,omitempty"`
	SnippetsUsed    []string `json:"snippetsUsed,omitempty"`
	ThinkingSeconds float64  `json:"thinkingSeconds,omitempty"`
	FilePath        string   `json:"filePath,omitempty"`
}

// IsZero reports whether no metadata field is set.
func (m ItemMetadata) IsZero() bool {
	return m.PromptUsed == "" && len(m.SnippetsUsed) == 0 &&
		m.ThinkingSeconds == 0 && m.FilePath == ""
}

// ContentItem is the atomic stored unit: one conversation line or one
// document chunk. (SourceType, SourceID, Position) is unique; re-storing the
// same position overwrites. For conversations, position 2t-1 is the user
// line of turn t and position 2t the assistant line.
type ContentItem struct {
	ID             string
	Content        string
	Embedding      []float32
	Timestamp      time.Time
	SourceType     SourceType
	SourceID       string
	Position       int
	IsFromUser     bool
	EntityKeywords string
	Metadata       ItemMetadata
	CreatedAt      time.Time
}

// Turn returns the 1-based conversation turn this item belongs to:
// odd positions are user lines of turn (pos+1)/2, even positions the
// assistant lines of turn pos/2.
func (it ContentItem) Turn() int {
	if it.Position%2 == 1 {
		return (it.Position + 1) / 2
	}
	return it.Position / 2
}

// Statistics is derived from stored rows on every call, never mutated
// independently.
type Statistics struct {
	Conversations  int
	UserTurns      int
	Documents      int
	DocumentChunks int
}

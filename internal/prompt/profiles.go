// Package prompt assembles the bounded prompt sent to the language model,
// arbitrating between system instructions, the injected history summary,
// retrieved long-term snippets, verbatim recent turns and the current input
// under a hard per-backend character budget.
package prompt

// Profile is one backend budget profile: every value is a character count.
type Profile struct {
	Name               string
	MaxPromptChars     int // hard cap on the assembled prompt
	MaxRAGChars        int // sub-budget for retrieved long-term snippets
	ShortTermThreshold int // verbatim recent-turns block above this gets re-selected
	SnippetThreshold   int // individual snippets above this get re-summarized
}

// Two profiles only: small-context and large-context backends.
var profiles = map[string]Profile{
	"conservative": {
		Name:               "conservative",
		MaxPromptChars:     8000,
		MaxRAGChars:        2000,
		ShortTermThreshold: 3000,
		SnippetThreshold:   600,
	},
	"generous": {
		Name:               "generous",
		MaxPromptChars:     24000,
		MaxRAGChars:        6000,
		ShortTermThreshold: 9000,
		SnippetThreshold:   1500,
	},
}

// ProfileByName returns the named profile, defaulting to conservative for
// unknown names.
func ProfileByName(name string) Profile {
	if p, ok := profiles[name]; ok {
		return p
	}
	return profiles["conservative"]
}

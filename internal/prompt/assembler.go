package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/marrowlab/recall/internal/llm"
	"github.com/marrowlab/recall/internal/search"
)

const (
	sectionSep      = "\n\n"
	truncationMark  = "..."
	summaryHeader   = "[Conversation summary]\n"
	memoryPrefix    = "[Memory] "
	userLinePrefix  = "User: "
	replyLinePrefix = "Assistant: "
)

// Turn is one completed exchange: user line plus assistant reply.
type Turn struct {
	Number    int
	User      string
	Assistant string
}

func (t Turn) verbatim() string {
	return userLinePrefix + t.User + "\n" + replyLinePrefix + t.Assistant
}

// Searcher is the retrieval capability the assembler consumes.
type Searcher interface {
	Search(ctx context.Context, query string, opts search.Options) (*search.ResultSet, error)
}

// Input carries everything one assembly call needs. Live settings (memory
// depth, relevance threshold) are read by the caller at call start and
// passed here; they are not snapshotted across stages.
type Input struct {
	SystemPrompt          string
	Summary               string // injected summary of older turns, may be ""
	SummaryCoveredThrough int    // highest turn number the summary covers
	RecentTurns           []Turn // completed turns, ascending by number
	CurrentInput          string
	SourceID              string
	MemoryDepth           int
	RelevanceThreshold    float64
	MaxRAGChars           int // config cap; 0 means profile value
}

// Output is the assembled prompt plus accounting.
type Output struct {
	Prompt       string
	SnippetsUsed []string
	TokenCount   int
}

// Assembler builds bounded prompts for one backend profile.
type Assembler struct {
	searcher Searcher
	gen      llm.Generator
	profile  Profile
}

// NewAssembler creates an assembler. gen may be nil, in which case oversized
// snippets are truncated instead of re-summarized.
func NewAssembler(searcher Searcher, gen llm.Generator, profile Profile) *Assembler {
	return &Assembler{searcher: searcher, gen: gen, profile: profile}
}

// Assemble runs the five stages in fixed order. Stages may individually give
// up on budget exhaustion but the assembly itself never fails: the returned
// prompt always contains the system prompt and (possibly truncated) current
// input, and never exceeds the profile's character budget.
func (a *Assembler) Assemble(ctx context.Context, in Input) (*Output, error) {
	budget := a.profile.MaxPromptChars
	out := &Output{}

	var sections []string
	used := 0
	fits := func(s string) bool {
		sep := 0
		if len(sections) > 0 {
			sep = len(sectionSep)
		}
		return used+sep+len(s) <= budget
	}
	push := func(s string) bool {
		if !fits(s) {
			return false
		}
		if len(sections) > 0 {
			used += len(sectionSep)
		}
		sections = append(sections, s)
		used += len(s)
		return true
	}

	// Stage 1: system prompt, always verbatim.
	push(in.SystemPrompt)

	// Stage 2: injected summary, whole or not at all.
	if in.Summary != "" {
		if !push(summaryHeader + in.Summary) {
			slog.Debug("assembly: summary skipped, over budget")
		}
	}

	// Stage 3: long-term snippets under the RAG sub-budget.
	a.appendLongTerm(ctx, in, out, push, fits)

	// Stage 4: short-term memory.
	a.appendShortTerm(ctx, in, push)

	// Stage 5: current input, never dropped.
	userLine := userLinePrefix + in.CurrentInput
	if !push(userLine) {
		// Last resort: discard stages 2-4 and rebuild from the system
		// prompt plus as much of the input as fits.
		sections = []string{in.SystemPrompt}
		used = len(in.SystemPrompt)
		room := budget - used - len(sectionSep)
		line := userLine
		if room < len(userLine) {
			room -= len(truncationMark)
			if room < 0 {
				room = 0
			}
			line = userLine[:room] + truncationMark
		}
		sections = append(sections, line)
		used += len(sectionSep) + len(line)
		out.SnippetsUsed = nil
		slog.Warn("assembly: budget exhausted, rebuilt with truncated input only")
	}

	out.Prompt = strings.Join(sections, sectionSep)
	if len(out.Prompt) > budget {
		// Degenerate system prompts larger than the whole budget still
		// must respect the cap.
		out.Prompt = out.Prompt[:budget]
	}
	out.TokenCount = CountTokens(out.Prompt)
	return out, nil
}

// appendLongTerm runs stage 3: retrieve, per-snippet summarize-or-truncate,
// append until the overall budget or the RAG sub-budget would be exceeded.
func (a *Assembler) appendLongTerm(ctx context.Context, in Input, out *Output, push func(string) bool, fits func(string) bool) {
	if a.searcher == nil || strings.TrimSpace(in.CurrentInput) == "" {
		return
	}

	// Only the turns stage 4 will repeat verbatim are excluded. Turns that
	// aged into the summary or past the depth window stay reachable here:
	// the summary is lossy, retrieval is the only verbatim path back.
	window := shortTermWindow(in)
	exclude := make([]int, 0, len(window))
	for _, t := range window {
		exclude = append(exclude, t.Number)
	}

	rs, err := a.searcher.Search(ctx, in.CurrentInput, search.Options{
		CurrentSourceID:    in.SourceID,
		ExcludeTurns:       exclude,
		MaxResults:         8,
		RelevanceThreshold: in.RelevanceThreshold,
	})
	if err != nil || rs == nil || rs.Empty() {
		return
	}

	ragBudget := a.profile.MaxRAGChars
	if in.MaxRAGChars > 0 && in.MaxRAGChars < ragBudget {
		ragBudget = in.MaxRAGChars
	}

	ragUsed := 0
	for _, r := range rs.Ranked() {
		text := a.fitSnippet(ctx, r.Content)
		section := memoryPrefix + text
		if ragUsed+len(section) > ragBudget {
			break
		}
		if !fits(section) {
			break
		}
		push(section)
		ragUsed += len(section)
		out.SnippetsUsed = append(out.SnippetsUsed, r.Content)
	}
}

// shortTermWindow returns the turns stage 4 keeps verbatim: those past the
// summary marker, trimmed to the most recent MemoryDepth.
func shortTermWindow(in Input) []Turn {
	kept := in.RecentTurns[:0:0]
	for _, t := range in.RecentTurns {
		if t.Number > in.SummaryCoveredThrough {
			kept = append(kept, t)
		}
	}
	if depth := in.MemoryDepth; depth > 0 && len(kept) > depth {
		kept = kept[len(kept)-depth:]
	}
	return kept
}

// appendShortTerm runs stage 4: verbatim recent turns bounded by memory
// depth, relevance re-selection when the verbatim block is too large, hard
// truncation when re-selection yields nothing.
func (a *Assembler) appendShortTerm(ctx context.Context, in Input, push func(string) bool) {
	kept := shortTermWindow(in)
	if len(kept) == 0 {
		return
	}

	lines := make([]string, 0, len(kept))
	for _, t := range kept {
		lines = append(lines, t.verbatim())
	}
	block := strings.Join(lines, "\n")

	if len(block) <= a.profile.ShortTermThreshold {
		push(block)
		return
	}

	// Too large: ask the engine which of these same turns matter for the
	// current input, with no turn exclusions.
	if a.searcher != nil {
		rs, err := a.searcher.Search(ctx, in.CurrentInput, search.Options{
			CurrentSourceID:    in.SourceID,
			MaxResults:         len(kept) * 2,
			RelevanceThreshold: in.RelevanceThreshold,
		})
		if err == nil && rs != nil {
			inWindow := make(map[string]bool, len(kept)*2)
			for _, t := range kept {
				inWindow[t.User] = true
				inWindow[t.Assistant] = true
			}
			var selected []string
			for _, r := range rs.Ranked() {
				if !inWindow[r.Content] {
					continue
				}
				selected = append(selected, a.fitSnippet(ctx, r.Content))
			}
			if len(selected) > 0 {
				push(strings.Join(selected, "\n"))
				return
			}
		}
	}

	// Re-selection yielded nothing: hard truncation of the verbatim block.
	cut := a.profile.ShortTermThreshold - len(truncationMark)
	if cut < 0 {
		cut = 0
	}
	push(block[:cut] + truncationMark)
}

// fitSnippet applies the per-snippet rule: over-threshold snippets are
// re-summarized through the LLM, with hard truncation as the fallback.
func (a *Assembler) fitSnippet(ctx context.Context, text string) string {
	threshold := a.profile.SnippetThreshold
	if len(text) <= threshold {
		return text
	}

	if a.gen != nil {
		summary, err := llm.SummarizeSnippet(ctx, a.gen, text)
		if err == nil && summary != "" && len(summary) <= threshold {
			return summary
		}
		if err != nil {
			slog.Debug("snippet summarization failed, truncating", "error", err)
		}
	}

	return text[:threshold-len(truncationMark)] + truncationMark
}

// ShouldSummarize reports whether the turns completed since the last summary
// have reached the memory depth, triggering history compression.
func ShouldSummarize(completedTurns, lastSummarized, depth int) bool {
	return depth > 0 && completedTurns-lastSummarized >= depth
}

// SummaryRange returns the inclusive turn range the next summary covers.
func SummaryRange(lastSummarized, depth int) (from, to int) {
	return lastSummarized + 1, lastSummarized + depth
}

// Transcript renders turns for the history summarizer.
func Transcript(turns []Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s\n%s", userLinePrefix+t.User, replyLinePrefix+t.Assistant)
	}
	return b.String()
}

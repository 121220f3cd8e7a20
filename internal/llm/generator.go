// Package llm wraps the external language-model capability: an opaque
// generate(prompt) -> text call used for chat replies, history summaries and
// snippet re-summarization.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrModelUnavailable reports that no backend could be reached at all.
// This is the one failure class allowed to reach the user-visible layer,
// and only for primary chat replies.
var ErrModelUnavailable = errors.New("model unavailable")

// GenerationError wraps a backend failure during an otherwise reachable
// generation call. Summarization callers fall back to truncation on it.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("generation failed: %v", e.Cause) }
func (e *GenerationError) Unwrap() error { return e.Cause }

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const summaryPrompt = "Condense the following conversation excerpt into a short factual summary. " +
	"Keep names, dates, decisions and commitments; drop pleasantries. Reply with the summary only.\n\n"

const snippetPrompt = "Shorten the following snippet, preserving every concrete fact. " +
	"Reply with the shortened text only.\n\n"

// SummarizeHistory compresses older conversation turns into an injected
// summary via the generator.
func SummarizeHistory(ctx context.Context, gen Generator, transcript string) (string, error) {
	return gen.Generate(ctx, summaryPrompt+transcript)
}

// SummarizeSnippet shortens one retrieved snippet before prompt inclusion.
func SummarizeSnippet(ctx context.Context, gen Generator, snippet string) (string, error) {
	return gen.Generate(ctx, snippetPrompt+snippet)
}

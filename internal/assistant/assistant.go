// Package assistant orchestrates the chat flow: retrieval, prompt assembly,
// generation, and the write path that feeds completed turns back into the
// memory store.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marrowlab/recall/internal/config"
	"github.com/marrowlab/recall/internal/embedding"
	"github.com/marrowlab/recall/internal/entity"
	"github.com/marrowlab/recall/internal/llm"
	"github.com/marrowlab/recall/internal/prompt"
	"github.com/marrowlab/recall/internal/store"
)

const defaultSystemPrompt = "You are recall, a personal assistant with long-term memory. " +
	"Answer using the conversation, the provided memories, and the user's message. " +
	"Be concise and factual."

// Assistant wires the store, search engine, embedding provider, keyword
// extractor and LLM together. All collaborators are injected explicitly.
type Assistant struct {
	store     *store.Store
	searcher  prompt.Searcher
	embedder  embedding.Provider
	extractor entity.Extractor
	gen       llm.Generator

	cfgMu sync.RWMutex
	cfg   *config.Config

	mu       sync.Mutex
	sessions map[string]*Session
}

// Session tracks per-conversation summarization state. The summary itself
// lives only in memory: after a restart it is rebuilt as turns accrue.
type Session struct {
	SourceID       string
	Turns          []prompt.Turn
	Summary        string
	LastSummarized int // highest turn number covered by Summary
}

// New constructs an assistant.
func New(st *store.Store, searcher prompt.Searcher, embedder embedding.Provider,
	extractor entity.Extractor, gen llm.Generator, cfg *config.Config) *Assistant {
	return &Assistant{
		store:     st,
		searcher:  searcher,
		embedder:  embedder,
		extractor: extractor,
		gen:       gen,
		cfg:       cfg,
		sessions:  make(map[string]*Session),
	}
}

// SetConfig swaps the live config; registered as a config watcher handler.
// Operations read the snapshot current at their start.
func (a *Assistant) SetConfig(cfg *config.Config) {
	a.cfgMu.Lock()
	a.cfg = cfg
	a.cfgMu.Unlock()
}

func (a *Assistant) config() *config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

// Session returns the session for sourceID, seeding it from the store on
// first touch.
func (a *Assistant) Session(ctx context.Context, sourceID string) *Session {
	a.mu.Lock()
	defer a.mu.Unlock()

	if s, ok := a.sessions[sourceID]; ok {
		return s
	}

	s := &Session{SourceID: sourceID}
	items, err := a.store.GetConversation(ctx, sourceID)
	if err != nil {
		slog.Warn("session seed failed, starting empty", "source", sourceID, "error", err)
	}
	s.Turns = turnsFromItems(items)
	a.sessions[sourceID] = s
	return s
}

func turnsFromItems(items []store.ContentItem) []prompt.Turn {
	byTurn := make(map[int]*prompt.Turn)
	max := 0
	for _, it := range items {
		n := it.Turn()
		t, ok := byTurn[n]
		if !ok {
			t = &prompt.Turn{Number: n}
			byTurn[n] = t
		}
		if it.IsFromUser {
			t.User = it.Content
		} else {
			t.Assistant = it.Content
		}
		if n > max {
			max = n
		}
	}

	turns := make([]prompt.Turn, 0, len(byTurn))
	for n := 1; n <= max; n++ {
		if t, ok := byTurn[n]; ok {
			turns = append(turns, *t)
		}
	}
	return turns
}

// Send runs one chat exchange: assemble a bounded prompt, generate the
// reply, record the completed turn, and trigger auto-summarization when
// enough turns have accrued. Generation failure here is the one error
// surfaced to the user; everything below degrades silently.
//
// Session state is mutated without a session lock: each conversation has
// one caller (the CLI loop), and concurrent Sends on the same sourceID are
// not supported.
func (a *Assistant) Send(ctx context.Context, sourceID, input string) (string, error) {
	cfg := a.config()
	sess := a.Session(ctx, sourceID)
	profile := prompt.ProfileByName(cfg.Profile)
	asm := prompt.NewAssembler(a.searcher, a.gen, profile)

	out, err := asm.Assemble(ctx, prompt.Input{
		SystemPrompt:          defaultSystemPrompt,
		Summary:               sess.Summary,
		SummaryCoveredThrough: sess.LastSummarized,
		RecentTurns:           sess.Turns,
		CurrentInput:          input,
		SourceID:              sourceID,
		MemoryDepth:           cfg.Memory.Depth,
		RelevanceThreshold:    cfg.Memory.RelevanceThreshold,
		MaxRAGChars:           cfg.Memory.MaxRAGChars,
	})
	if err != nil {
		return "", fmt.Errorf("assemble prompt: %w", err)
	}

	started := time.Now()
	reply, err := a.gen.Generate(ctx, out.Prompt)
	if err != nil {
		return "", err
	}
	thinking := time.Since(started).Seconds()

	a.recordTurn(ctx, sess, input, reply, out, thinking)
	a.maybeSummarize(ctx, sess, cfg.Memory.Depth)

	return reply, nil
}

// recordTurn writes both sides of a completed turn: user line at position
// 2t-1, assistant line at 2t, each with derived keywords and an embedding.
func (a *Assistant) recordTurn(ctx context.Context, sess *Session, input, reply string, out *prompt.Output, thinking float64) {
	turn := len(sess.Turns) + 1
	now := time.Now()

	userVec, _ := a.embedder.Embed(ctx, input)
	if _, err := a.store.Put(ctx, store.ContentItem{
		Content:        input,
		Embedding:      userVec,
		Timestamp:      now,
		SourceType:     store.SourceConversation,
		SourceID:       sess.SourceID,
		Position:       2*turn - 1,
		IsFromUser:     true,
		EntityKeywords: entity.DeriveKeywords(a.extractor, input),
	}); err != nil {
		slog.Warn("failed to store user turn", "turn", turn, "error", err)
	}

	replyVec, _ := a.embedder.Embed(ctx, reply)
	if _, err := a.store.Put(ctx, store.ContentItem{
		Content:        reply,
		Embedding:      replyVec,
		Timestamp:      now,
		SourceType:     store.SourceConversation,
		SourceID:       sess.SourceID,
		Position:       2 * turn,
		EntityKeywords: entity.DeriveKeywords(a.extractor, reply),
		Metadata: store.ItemMetadata{
			PromptUsed:      out.Prompt,
			SnippetsUsed:    out.SnippetsUsed,
			ThinkingSeconds: thinking,
		},
	}); err != nil {
		slog.Warn("failed to store assistant turn", "turn", turn, "error", err)
	}

	sess.Turns = append(sess.Turns, prompt.Turn{Number: turn, User: input, Assistant: reply})
}

// maybeSummarize compresses the turn range that has aged past the memory
// depth into the injected summary. Failure keeps the previous summary.
func (a *Assistant) maybeSummarize(ctx context.Context, sess *Session, depth int) {
	if !prompt.ShouldSummarize(len(sess.Turns), sess.LastSummarized, depth) {
		return
	}

	from, to := prompt.SummaryRange(sess.LastSummarized, depth)
	var window []prompt.Turn
	for _, t := range sess.Turns {
		if t.Number >= from && t.Number <= to {
			window = append(window, t)
		}
	}
	if len(window) == 0 {
		return
	}

	transcript := prompt.Transcript(window)
	if sess.Summary != "" {
		transcript = "Summary so far:\n" + sess.Summary + "\n\n" + transcript
	}

	summary, err := llm.SummarizeHistory(ctx, a.gen, transcript)
	if err != nil || summary == "" {
		slog.Warn("history summarization failed, keeping previous summary",
			"source", sess.SourceID, "error", err)
		return
	}

	sess.Summary = summary
	sess.LastSummarized = to
	slog.Info("history summarized", "source", sess.SourceID, "through_turn", to)
}

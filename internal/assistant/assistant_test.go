package assistant

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/marrowlab/recall/internal/config"
	"github.com/marrowlab/recall/internal/embedding"
	"github.com/marrowlab/recall/internal/entity"
	"github.com/marrowlab/recall/internal/llm"
	"github.com/marrowlab/recall/internal/search"
	"github.com/marrowlab/recall/internal/store"
)

type scriptedGen struct {
	replies []string
	calls   int
	err     error
}

func (g *scriptedGen) Generate(context.Context, string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	if len(g.replies) == 0 {
		return fmt.Sprintf("reply %d", g.calls), nil
	}
	r := g.replies[0]
	if len(g.replies) > 1 {
		g.replies = g.replies[1:]
	}
	return r, nil
}

func newTestAssistant(t *testing.T, gen llm.Generator, depth int) (*Assistant, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	embedder := embedding.NewTiered(nil)
	extractor := entity.HeuristicExtractor{}
	engine := search.NewEngine(st, embedder, extractor)

	cfg := config.Default()
	cfg.Memory.Depth = depth

	return New(st, engine, embedder, extractor, gen, cfg), st
}

func TestSend_RecordsBothTurnSides(t *testing.T) {
	gen := &scriptedGen{replies: []string{"Hi, how can I help?"}}
	a, st := newTestAssistant(t, gen, 6)
	ctx := context.Background()

	reply, err := a.Send(ctx, "conv-1", "Hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply != "Hi, how can I help?" {
		t.Errorf("reply = %q", reply)
	}

	items, err := st.GetConversation(ctx, "conv-1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("stored %d items, want 2", len(items))
	}

	user, asst := items[0], items[1]
	if user.Position != 1 || !user.IsFromUser || user.Content != "Hello" {
		t.Errorf("user item = %+v", user)
	}
	if asst.Position != 2 || asst.IsFromUser || asst.Content != "Hi, how can I help?" {
		t.Errorf("assistant item = %+v", asst)
	}
	if asst.Metadata.PromptUsed == "" {
		t.Error("assistant item should carry the prompt used")
	}
	if len(user.Embedding) == 0 || len(asst.Embedding) == 0 {
		t.Error("both sides should carry embeddings")
	}
}

func TestSend_GenerationFailureIsSurfaced(t *testing.T) {
	gen := &scriptedGen{err: llm.ErrModelUnavailable}
	a, st := newTestAssistant(t, gen, 6)
	ctx := context.Background()

	_, err := a.Send(ctx, "conv-1", "Hello")
	if !errors.Is(err, llm.ErrModelUnavailable) {
		t.Fatalf("err = %v, want ErrModelUnavailable", err)
	}

	// Failed turns are not recorded.
	items, _ := st.GetConversation(ctx, "conv-1")
	if len(items) != 0 {
		t.Errorf("stored %d items after failed generation, want 0", len(items))
	}
}

func TestAutoSummarizationAdvancesMarker(t *testing.T) {
	gen := &scriptedGen{}
	a, _ := newTestAssistant(t, gen, 2) // depth 2: summarize every 2 turns
	ctx := context.Background()

	a.Send(ctx, "conv-1", "first message")
	sess := a.Session(ctx, "conv-1")
	if sess.LastSummarized != 0 {
		t.Errorf("after 1 turn: lastSummarized = %d, want 0", sess.LastSummarized)
	}

	a.Send(ctx, "conv-1", "second message")
	if sess.LastSummarized != 2 {
		t.Errorf("after 2 turns: lastSummarized = %d, want 2", sess.LastSummarized)
	}
	if sess.Summary == "" {
		t.Error("summary should be set after trigger")
	}
}

func TestSummarizationFailureKeepsOldSummary(t *testing.T) {
	gen := &scriptedGen{}
	a, _ := newTestAssistant(t, gen, 2)
	ctx := context.Background()

	a.Send(ctx, "conv-1", "one")
	a.Send(ctx, "conv-1", "two") // summary created here
	sess := a.Session(ctx, "conv-1")
	oldSummary := sess.Summary
	oldMarker := sess.LastSummarized

	// Chat replies keep working but the summarizer now fails.
	gen.err = nil
	a.Send(ctx, "conv-1", "three")
	gen2 := &scriptedGen{err: &llm.GenerationError{Cause: errors.New("boom")}}
	a.gen = gen2
	a.maybeSummarize(ctx, sess, 1)

	if sess.Summary != oldSummary || sess.LastSummarized < oldMarker {
		t.Errorf("failed summarization must not clobber state: %q marker=%d", sess.Summary, sess.LastSummarized)
	}
}

func TestSessionSeededFromStore(t *testing.T) {
	gen := &scriptedGen{replies: []string{"noted"}}
	a, st := newTestAssistant(t, gen, 6)
	ctx := context.Background()

	if _, err := a.Send(ctx, "conv-1", "remember the garden code is 4711"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// A fresh assistant over the same store sees the recorded turn.
	cfg := config.Default()
	embedder := embedding.NewTiered(nil)
	engine := search.NewEngine(st, embedder, entity.HeuristicExtractor{})
	b := New(st, engine, embedder, entity.HeuristicExtractor{}, &scriptedGen{}, cfg)

	sess := b.Session(ctx, "conv-1")
	if len(sess.Turns) != 1 {
		t.Fatalf("seeded %d turns, want 1", len(sess.Turns))
	}
	if sess.Turns[0].User != "remember the garden code is 4711" || sess.Turns[0].Assistant != "noted" {
		t.Errorf("seeded turn = %+v", sess.Turns[0])
	}
}

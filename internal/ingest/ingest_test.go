package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marrowlab/recall/internal/embedding"
	"github.com/marrowlab/recall/internal/entity"
	"github.com/marrowlab/recall/internal/store"
)

func newTestIngester(t *testing.T) (*Ingester, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st, embedding.NewTiered(nil), entity.HeuristicExtractor{}), st
}

func TestChunkText_ParagraphBoundaries(t *testing.T) {
	text := strings.Repeat("a", 600) + "\n\n" + strings.Repeat("b", 600)
	chunks := ChunkText(text, 1000)

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if !strings.HasPrefix(chunks[0].Text, "a") || !strings.HasPrefix(chunks[1].Text, "b") {
		t.Errorf("chunks split at wrong boundary")
	}
	if chunks[0].StartLine != 1 || chunks[1].EndLine != 3 {
		t.Errorf("line ranges = %d-%d, %d-%d",
			chunks[0].StartLine, chunks[0].EndLine, chunks[1].StartLine, chunks[1].EndLine)
	}
}

func TestChunkText_SmallParagraphsMerge(t *testing.T) {
	// Paragraphs below half the limit stay together.
	text := "first\n\nsecond\n\nthird"
	chunks := ChunkText(text, 1000)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
}

func TestChunkText_ForceFlushOversized(t *testing.T) {
	line := strings.Repeat("x", 600)
	text := strings.Join([]string{line, line, line, line}, "\n")
	chunks := ChunkText(text, 1000)
	if len(chunks) != 2 {
		t.Fatalf("oversized text split into %d chunks, want 2", len(chunks))
	}
}

func TestChunkText_Empty(t *testing.T) {
	if got := ChunkText("   \n\n  ", 1000); got != nil {
		t.Errorf("blank input produced %d chunks", len(got))
	}
}

func TestIngestFile(t *testing.T) {
	in, st := newTestIngester(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "notes.txt")
	content := strings.Repeat("Alice visited Paris. ", 30) + "\n\n" + strings.Repeat("Bob stayed home. ", 30)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := in.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if n != 2 {
		t.Fatalf("stored %d chunks, want 2", n)
	}

	items, err := st.AllEmbedded(ctx)
	if err != nil {
		t.Fatalf("AllEmbedded: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("retrieved %d embedded items, want 2", len(items))
	}
	for _, it := range items {
		if it.SourceType != store.SourceDocument {
			t.Errorf("source type = %q", it.SourceType)
		}
		if it.SourceID != "notes" {
			t.Errorf("source id = %q, want notes", it.SourceID)
		}
		if it.Metadata.FilePath != path {
			t.Errorf("file path = %q, want %q", it.Metadata.FilePath, path)
		}
		if it.EntityKeywords == "" {
			t.Error("entity keywords missing")
		}
	}
}

func TestIngestText_PositionsAreSequential(t *testing.T) {
	in, st := newTestIngester(t)
	ctx := context.Background()

	text := strings.Repeat("a", 600) + "\n\n" + strings.Repeat("b", 600) + "\n\n" + strings.Repeat("c", 600)
	n, err := in.IngestText(ctx, "doc-1", text)
	if err != nil {
		t.Fatalf("IngestText: %v", err)
	}
	if n != 3 {
		t.Fatalf("stored %d chunks, want 3", n)
	}

	items, err := st.AllEmbedded(ctx)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[int]bool{}
	for _, it := range items {
		seen[it.Position] = true
		if it.Metadata.FilePath != "" {
			t.Errorf("raw text ingest should not set a file path, got %q", it.Metadata.FilePath)
		}
	}
	for p := 1; p <= 3; p++ {
		if !seen[p] {
			t.Errorf("missing position %d", p)
		}
	}
}

func TestIngestText_EmptyInput(t *testing.T) {
	in, _ := newTestIngester(t)
	n, err := in.IngestText(context.Background(), "doc-1", "")
	if err != nil || n != 0 {
		t.Errorf("empty ingest = (%d, %v), want (0, nil)", n, err)
	}
}

// Package ingest brings external documents into the memory store: files and
// raw text are chunked at paragraph boundaries, embedded, keyword-indexed,
// and written as document chunks retrievable by search.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/marrowlab/recall/internal/embedding"
	"github.com/marrowlab/recall/internal/entity"
	"github.com/marrowlab/recall/internal/store"
)

const defaultMaxChunkLen = 1000

// Ingester converts source documents into stored content items.
type Ingester struct {
	store     *store.Store
	embedder  embedding.Provider
	extractor entity.Extractor

	// MaxChunkLen caps chunk size in characters. Zero means the default.
	MaxChunkLen int
}

func New(st *store.Store, embedder embedding.Provider, extractor entity.Extractor) *Ingester {
	return &Ingester{store: st, embedder: embedder, extractor: extractor}
}

// IngestFile reads path and stores its chunks under the file's base name.
// It returns the number of chunks written.
func (in *Ingester) IngestFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	sourceID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return in.ingest(ctx, sourceID, path, string(data))
}

// IngestText stores raw text under the given source ID.
func (in *Ingester) IngestText(ctx context.Context, sourceID, text string) (int, error) {
	return in.ingest(ctx, sourceID, "", text)
}

func (in *Ingester) ingest(ctx context.Context, sourceID, filePath, text string) (int, error) {
	chunks := ChunkText(text, in.MaxChunkLen)
	if len(chunks) == 0 {
		return 0, nil
	}

	stored := 0
	for i, chunk := range chunks {
		vec, err := in.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			slog.Warn("chunk embedding failed, storing without vector",
				"source", sourceID, "chunk", i+1, "error", err)
			vec = nil
		}

		item := store.ContentItem{
			Content:        chunk.Text,
			Embedding:      vec,
			SourceType:     store.SourceDocument,
			SourceID:       sourceID,
			Position:       i + 1,
			EntityKeywords: entity.DeriveKeywords(in.extractor, chunk.Text),
		}
		if filePath != "" {
			item.Metadata.FilePath = filePath
		}

		if _, err := in.store.Put(ctx, item); err != nil {
			return stored, fmt.Errorf("store chunk %d of %s: %w", i+1, sourceID, err)
		}
		stored++
	}

	slog.Info("document ingested", "source", sourceID, "chunks", stored)
	return stored, nil
}

// TextChunk is a paragraph-aligned slice of a document with its line range.
type TextChunk struct {
	Text      string
	StartLine int
	EndLine   int
}

// ChunkText splits text into retrievable chunks. Blank lines act as soft
// boundaries: a chunk ends there once it has grown to at least half of
// maxChunkLen, and is cut unconditionally on reaching the full limit, so a
// run of short paragraphs stays together while a wall of text still splits.
func ChunkText(text string, maxChunkLen int) []TextChunk {
	if maxChunkLen <= 0 {
		maxChunkLen = defaultMaxChunkLen
	}

	var (
		chunks []TextChunk
		buf    strings.Builder
		first  = 1
	)

	emit := func(last int) {
		if body := strings.TrimSpace(buf.String()); body != "" {
			chunks = append(chunks, TextChunk{Text: body, StartLine: first, EndLine: last})
		}
		buf.Reset()
		first = last + 1
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" && buf.Len() >= maxChunkLen/2 {
			emit(i)
			continue
		}

		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(line)

		if buf.Len() >= maxChunkLen {
			emit(i + 1)
		}
	}
	emit(len(lines))

	return chunks
}

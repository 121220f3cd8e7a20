package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/marrowlab/recall/internal/embedding"
)

// ErrStoreUnavailable reports that the database could not be opened or
// reopened. Read paths never surface it: they degrade to empty results.
var ErrStoreUnavailable = errors.New("store unavailable")

// Store owns the SQLite connection and schema. All operations are
// serialized through one mutex: the connection is single-writer,
// effectively single-accessor, and no two operations ever execute
// concurrently against it.
type Store struct {
	path string

	mu sync.Mutex
	db *sqlx.DB // nil while unhealthy
}

// Open establishes the connection at path with WAL journaling, foreign-key
// enforcement and a busy timeout, creating the schema if absent.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.open(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	slog.Info("store opened", "path", path)
	return s, nil
}

func (s *Store) open() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite",
		s.path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}

	s.db = db
	return nil
}

func migrate(db *sqlx.DB) error {
	stmts := []string{
		// Source registry. Kept for compatibility with the original layout;
		// the ingestion path writes only unified_content, so statistics
		// count documents from there (see Statistics).
		`CREATE TABLE IF NOT EXISTS sources (
			id TEXT PRIMARY KEY,
			source_type TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
		)`,
		`CREATE TABLE IF NOT EXISTS unified_content (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			embedding BLOB,
			timestamp INTEGER NOT NULL,
			source_type TEXT NOT NULL,
			source_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			is_from_user INTEGER NOT NULL DEFAULT 0,
			entity_keywords TEXT NOT NULL DEFAULT '',
			metadata_json TEXT,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			UNIQUE(source_type, source_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_content_source ON unified_content(source_type, source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_content_timestamp ON unified_content(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_content_from_user ON unified_content(is_from_user)`,
		`CREATE INDEX IF NOT EXISTS idx_content_keywords ON unified_content(entity_keywords)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 60)], err)
		}
	}
	return nil
}

// EnsureHealthy issues a liveness query and, on failure, closes and reopens
// the connection once. Public operations call this first and short-circuit
// with empty results when the store stays unhealthy, so storage failure
// never propagates into the chat flow.
func (s *Store) EnsureHealthy(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureHealthyLocked(ctx)
}

func (s *Store) ensureHealthyLocked(ctx context.Context) bool {
	if s.db != nil {
		var one int
		if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err == nil {
			return true
		}
		s.db.Close()
		s.db = nil
	}

	if err := s.open(); err != nil {
		slog.Warn("store reconnect failed", "path", s.path, "error", err)
		return false
	}
	slog.Info("store reconnected", "path", s.path)
	return true
}

type itemRow struct {
	ID             string         `db:"id"`
	Content        string         `db:"content"`
	Embedding      []byte         `db:"embedding"`
	Timestamp      int64          `db:"timestamp"`
	SourceType     string         `db:"source_type"`
	SourceID       string         `db:"source_id"`
	Position       int            `db:"position"`
	IsFromUser     bool           `db:"is_from_user"`
	EntityKeywords string         `db:"entity_keywords"`
	MetadataJSON   sql.NullString `db:"metadata_json"`
	CreatedAt      int64          `db:"created_at"`
}

func (r itemRow) toItem() ContentItem {
	it := ContentItem{
		ID:             r.ID,
		Content:        r.Content,
		Embedding:      embedding.Deserialize(r.Embedding),
		Timestamp:      time.Unix(r.Timestamp, 0),
		SourceType:     SourceType(r.SourceType),
		SourceID:       r.SourceID,
		Position:       r.Position,
		IsFromUser:     r.IsFromUser,
		EntityKeywords: r.EntityKeywords,
		CreatedAt:      time.Unix(r.CreatedAt, 0),
	}
	if r.MetadataJSON.Valid && r.MetadataJSON.String != "" {
		if err := json.Unmarshal([]byte(r.MetadataJSON.String), &it.Metadata); err != nil {
			slog.Warn("skipping malformed item metadata", "id", r.ID, "error", err)
		}
	}
	return it
}

// Put inserts-or-replaces an item keyed by (sourceType, sourceID, position)
// and returns its ID. When the store is unhealthy the write is dropped with
// a warning and an empty ID, not an error.
func (s *Store) Put(ctx context.Context, item ContentItem) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ensureHealthyLocked(ctx) {
		slog.Warn("store unhealthy, dropping write",
			"source", item.SourceID, "position", item.Position)
		return "", nil
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}

	var metaJSON any
	if !item.Metadata.IsZero() {
		data, err := json.Marshal(item.Metadata)
		if err != nil {
			return "", fmt.Errorf("marshal metadata: %w", err)
		}
		metaJSON = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO unified_content
			(id, content, embedding, timestamp, source_type, source_id,
			 position, is_from_user, entity_keywords, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, strftime('%s','now'))
		ON CONFLICT(source_type, source_id, position) DO UPDATE SET
			id = excluded.id,
			content = excluded.content,
			embedding = excluded.embedding,
			timestamp = excluded.timestamp,
			is_from_user = excluded.is_from_user,
			entity_keywords = excluded.entity_keywords,
			metadata_json = excluded.metadata_json`,
		item.ID, item.Content, embedding.Serialize(item.Embedding),
		item.Timestamp.Unix(), string(item.SourceType), item.SourceID,
		item.Position, item.IsFromUser, item.EntityKeywords, metaJSON)
	if err != nil {
		return "", fmt.Errorf("put item: %w", err)
	}

	return item.ID, nil
}

// GetConversation returns all items for a source ordered by position.
// Unhealthy store yields an empty slice, nil error.
func (s *Store) GetConversation(ctx context.Context, sourceID string) ([]ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ensureHealthyLocked(ctx) {
		return nil, nil
	}

	var rows []itemRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, content, embedding, timestamp, source_type, source_id,
		       position, is_from_user, entity_keywords, metadata_json, created_at
		FROM unified_content
		WHERE source_id = ?
		ORDER BY position ASC`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	items := make([]ContentItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.toItem())
	}
	return items, nil
}

// AllEmbedded returns every item carrying a non-empty embedding. This is a
// full scan, sized for personal-device volumes rather than ANN-index
// scale. Rows with undecodable embedding blobs are skipped, not fatal.
func (s *Store) AllEmbedded(ctx context.Context) ([]ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ensureHealthyLocked(ctx) {
		return nil, nil
	}

	var rows []itemRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, content, embedding, timestamp, source_type, source_id,
		       position, is_from_user, entity_keywords, metadata_json, created_at
		FROM unified_content
		WHERE embedding IS NOT NULL AND length(embedding) > 0`)
	if err != nil {
		return nil, fmt.Errorf("all embedded: %w", err)
	}

	items := make([]ContentItem, 0, len(rows))
	for _, r := range rows {
		it := r.toItem()
		if len(it.Embedding) == 0 {
			slog.Warn("skipping row with undecodable embedding", "id", r.ID)
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

// Statistics recomputes the derived counts via aggregate queries.
// Documents are counted from unified_content, the table the ingestion path
// actually writes; the sources registry is never populated by it.
func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats Statistics
	if !s.ensureHealthyLocked(ctx) {
		return stats, nil
	}

	queries := []struct {
		dst   *int
		query string
		arg   string
	}{
		{&stats.Conversations, `SELECT COUNT(DISTINCT source_id) FROM unified_content WHERE source_type = ?`, string(SourceConversation)},
		{&stats.UserTurns, `SELECT COUNT(*) FROM unified_content WHERE source_type = ? AND is_from_user = 1`, string(SourceConversation)},
		{&stats.Documents, `SELECT COUNT(DISTINCT source_id) FROM unified_content WHERE source_type = ?`, string(SourceDocument)},
		{&stats.DocumentChunks, `SELECT COUNT(*) FROM unified_content WHERE source_type = ?`, string(SourceDocument)},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query, q.arg).Scan(q.dst); err != nil {
			return Statistics{}, fmt.Errorf("statistics: %w", err)
		}
	}
	return stats, nil
}

// Reset is the one destructive operation: close the connection, delete the
// database with its WAL and shared-memory sidecars, reopen and recreate the
// schema. Close-before-delete is required: deleting an open database's
// files is undefined on most platforms. Each step is best-effort and logged;
// success requires a healthy reconnect and no failed deletion.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slog.Info("store reset starting", "path", s.path)

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Warn("store reset: close failed", "error", err)
		}
		s.db = nil
	}

	var deleteErr error
	for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			slog.Warn("store reset: delete failed", "file", p, "error", err)
			deleteErr = err
		}
	}

	if err := s.open(); err != nil {
		return fmt.Errorf("%w: reopen after reset: %v", ErrStoreUnavailable, err)
	}
	if deleteErr != nil {
		return fmt.Errorf("reset incomplete: %w", deleteErr)
	}

	slog.Info("store reset complete", "path", s.path)
	return nil
}

// Close closes the connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

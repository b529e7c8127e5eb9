// Package store provides the SQLite metadata store for memories: the source
// of truth for text, metadata, soft-delete state, and the mapping to vector
// index ids, plus the FTS5 keyword index mirrored from active rows.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/roshantac/eva-memory/internal/apperr"
)

// MemoryRow is the internal row shape. VectorID links the row to its entry
// in the vector index and never leaves the store boundary except through
// the bulk-hydration map keyed by it.
type MemoryRow struct {
	MemoryID  string
	UserID    string
	Text      string
	Metadata  map[string]any
	VectorID  int64
	CreatedAt time.Time
	UpdatedAt *time.Time
	IsDeleted bool
}

// ScoredRow pairs a row with a keyword-ranking score (higher is better).
type ScoredRow struct {
	Row   MemoryRow
	Score float64
}

// Store is the SQLite-backed metadata store. All operations on one instance
// are serialized by an internal mutex: the row table and the FTS mirror
// must never be observed out of step. Durability uses WAL journaling.
type Store struct {
	mu           sync.Mutex
	db           *sql.DB
	entropy      *rand.Rand
	nextVectorID int64
}

// NewStore opens or creates a SQLite database at the given path.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create db dir")
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)")
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}

	s := &Store{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}

	if err := s.db.QueryRow(`SELECT COALESCE(MAX(vector_id), 0) FROM memories`).Scan(&s.nextVectorID); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "seed vector id")
	}

	return s, nil
}

func (s *Store) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		memory_id     TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		text          TEXT NOT NULL,
		metadata_json TEXT,
		vector_id     INTEGER NOT NULL UNIQUE,
		created_at    TEXT NOT NULL,
		updated_at    TEXT,
		is_deleted    INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id);
	CREATE INDEX IF NOT EXISTS idx_memories_user_deleted ON memories(user_id, is_deleted);
	CREATE INDEX IF NOT EXISTS idx_memories_vector ON memories(vector_id);

	CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
		memory_id UNINDEXED,
		content
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.backfillFTS()
}

// backfillFTS repopulates the FTS index from active rows when the index is
// empty but rows exist. Recovery path for index corruption or migration;
// idempotent.
func (s *Store) backfillFTS() error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM memories_fts`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err := s.db.Exec(`
		INSERT INTO memories_fts(memory_id, content)
		SELECT memory_id, text FROM memories
		WHERE is_deleted = 0 AND text != ''`)
	return err
}

// AllocateVectorID reserves the next vector id: strictly greater than every
// id ever allocated to any user. The high-water mark is seeded from the
// table at open and bumped under the store mutex, so concurrent in-process
// callers can never collide. Not safe across replicas sharing one database.
func (s *Store) AllocateVectorID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextVectorID++
	return s.nextVectorID, nil
}

// Insert creates a new active row and mirrors its text into the FTS index.
func (s *Store) Insert(ctx context.Context, userID, text string, metadata map[string]any, vectorID int64) (MemoryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	memoryID := s.newID()
	metaJSON, err := marshalMetadata(metadata)
	if err != nil {
		return MemoryRow{}, apperr.Storage(err, "encode metadata")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return MemoryRow{}, apperr.Storage(err, "begin insert")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memories (memory_id, user_id, text, metadata_json, vector_id, created_at, updated_at, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, NULL, 0)`,
		memoryID, userID, text, metaJSON, vectorID, now.Format(time.RFC3339Nano))
	if err != nil {
		return MemoryRow{}, apperr.Storage(err, "insert memory")
	}

	if text != "" {
		_, err = tx.ExecContext(ctx, `INSERT INTO memories_fts(memory_id, content) VALUES (?, ?)`, memoryID, text)
		if err != nil {
			return MemoryRow{}, apperr.Storage(err, "index memory text")
		}
	}

	if err := tx.Commit(); err != nil {
		return MemoryRow{}, apperr.Storage(err, "commit insert")
	}

	return MemoryRow{
		MemoryID:  memoryID,
		UserID:    userID,
		Text:      text,
		Metadata:  metadata,
		VectorID:  vectorID,
		CreatedAt: now,
	}, nil
}

// Update replaces text and metadata of an active row, bumps updated_at, and
// re-mirrors the FTS entry (remove then insert, inside one transaction so no
// partial state is visible). Returns NOT_FOUND if the row is missing or
// already soft-deleted. Metadata is replaced wholesale, never merged.
func (s *Store) Update(ctx context.Context, userID, memoryID, text string, metadata map[string]any) (MemoryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	metaJSON, err := marshalMetadata(metadata)
	if err != nil {
		return MemoryRow{}, apperr.Storage(err, "encode metadata")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return MemoryRow{}, apperr.Storage(err, "begin update")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE memories SET text = ?, metadata_json = ?, updated_at = ?
		WHERE memory_id = ? AND user_id = ? AND is_deleted = 0`,
		text, metaJSON, now.Format(time.RFC3339Nano), memoryID, userID)
	if err != nil {
		return MemoryRow{}, apperr.Storage(err, "update memory")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return MemoryRow{}, apperr.NotFound("memory %s not found for user %s", memoryID, userID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM memories_fts WHERE memory_id = ?`, memoryID); err != nil {
		return MemoryRow{}, apperr.Storage(err, "unindex memory text")
	}
	if text != "" {
		if _, err := tx.ExecContext(ctx, `INSERT INTO memories_fts(memory_id, content) VALUES (?, ?)`, memoryID, text); err != nil {
			return MemoryRow{}, apperr.Storage(err, "reindex memory text")
		}
	}

	row, err := s.fetchRowTx(ctx, tx, memoryID)
	if err != nil {
		return MemoryRow{}, err
	}
	if err := tx.Commit(); err != nil {
		return MemoryRow{}, apperr.Storage(err, "commit update")
	}
	return row, nil
}

// MarkDeleted flags a row as soft-deleted and removes its FTS entry. The
// caller is responsible for removing the vector index entry first. Returns
// NOT_FOUND if the row is missing or already deleted.
func (s *Store) MarkDeleted(ctx context.Context, userID, memoryID string) (MemoryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return MemoryRow{}, apperr.Storage(err, "begin delete")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE memories SET is_deleted = 1, updated_at = ?
		WHERE memory_id = ? AND user_id = ? AND is_deleted = 0`,
		now.Format(time.RFC3339Nano), memoryID, userID)
	if err != nil {
		return MemoryRow{}, apperr.Storage(err, "mark deleted")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return MemoryRow{}, apperr.NotFound("memory %s not found for user %s", memoryID, userID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM memories_fts WHERE memory_id = ?`, memoryID); err != nil {
		return MemoryRow{}, apperr.Storage(err, "unindex memory text")
	}

	row, err := s.fetchRowTx(ctx, tx, memoryID)
	if err != nil {
		return MemoryRow{}, err
	}
	if err := tx.Commit(); err != nil {
		return MemoryRow{}, apperr.Storage(err, "commit delete")
	}
	return row, nil
}

// Get returns a row by id, including soft-deleted rows; callers inspect
// IsDeleted. Returns NOT_FOUND when no row exists.
func (s *Store) Get(ctx context.Context, userID, memoryID string) (MemoryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT memory_id, user_id, text, metadata_json, vector_id, created_at, updated_at, is_deleted
		FROM memories WHERE memory_id = ? AND user_id = ?`, memoryID, userID)
	m, err := scanRow(row)
	if err == sql.ErrNoRows {
		return MemoryRow{}, apperr.NotFound("memory %s not found for user %s", memoryID, userID)
	}
	if err != nil {
		return MemoryRow{}, apperr.Storage(err, "get memory")
	}
	return m, nil
}

// List returns a user's rows ordered by recency.
func (s *Store) List(ctx context.Context, userID string, limit int, includeDeleted bool) ([]MemoryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	where := "user_id = ?"
	if !includeDeleted {
		where += " AND is_deleted = 0"
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT memory_id, user_id, text, metadata_json, vector_id, created_at, updated_at, is_deleted
		FROM memories WHERE `+where+`
		ORDER BY created_at DESC, vector_id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, apperr.Storage(err, "list memories")
	}
	defer rows.Close()

	return collectRows(rows)
}

// GetByVectorIDs bulk-hydrates vector-search results, restricted to active
// rows for the user.
func (s *Store) GetByVectorIDs(ctx context.Context, userID string, vectorIDs []int64) (map[int64]MemoryRow, error) {
	if len(vectorIDs) == 0 {
		return map[int64]MemoryRow{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(vectorIDs)), ",")
	args := make([]any, 0, len(vectorIDs)+1)
	args = append(args, userID)
	for _, id := range vectorIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT memory_id, user_id, text, metadata_json, vector_id, created_at, updated_at, is_deleted
		FROM memories
		WHERE user_id = ? AND vector_id IN (`+placeholders+`) AND is_deleted = 0`, args...)
	if err != nil {
		return nil, apperr.Storage(err, "get by vector ids")
	}
	defer rows.Close()

	result := make(map[int64]MemoryRow)
	for rows.Next() {
		m, err := scanRow(rows)
		if err != nil {
			return nil, apperr.Storage(err, "scan memory")
		}
		result[m.VectorID] = m
	}
	return result, rows.Err()
}

// ExportAll returns every row for a user, deleted included, oldest first.
func (s *Store) ExportAll(ctx context.Context, userID string) ([]MemoryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT memory_id, user_id, text, metadata_json, vector_id, created_at, updated_at, is_deleted
		FROM memories WHERE user_id = ? ORDER BY vector_id ASC`, userID)
	if err != nil {
		return nil, apperr.Storage(err, "export memories")
	}
	defer rows.Close()

	return collectRows(rows)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *Store) fetchRowTx(ctx context.Context, tx *sql.Tx, memoryID string) (MemoryRow, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT memory_id, user_id, text, metadata_json, vector_id, created_at, updated_at, is_deleted
		FROM memories WHERE memory_id = ?`, memoryID)
	m, err := scanRow(row)
	if err != nil {
		return MemoryRow{}, apperr.Storage(err, "fetch memory")
	}
	return m, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(row scanner) (MemoryRow, error) {
	var m MemoryRow
	var metaJSON, updatedAt sql.NullString
	var createdAt string
	var deleted int

	err := row.Scan(&m.MemoryID, &m.UserID, &m.Text, &metaJSON, &m.VectorID, &createdAt, &updatedAt, &deleted)
	if err != nil {
		return m, err
	}

	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if updatedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, updatedAt.String)
		m.UpdatedAt = &t
	}
	m.IsDeleted = deleted != 0
	if metaJSON.Valid {
		json.Unmarshal([]byte(metaJSON.String), &m.Metadata)
	}
	return m, nil
}

func collectRows(rows *sql.Rows) ([]MemoryRow, error) {
	var result []MemoryRow
	for rows.Next() {
		m, err := scanRow(rows)
		if err != nil {
			return nil, apperr.Storage(err, "scan memory")
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func marshalMetadata(metadata map[string]any) (*string, error) {
	if metadata == nil {
		return nil, nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	str := string(b)
	return &str, nil
}

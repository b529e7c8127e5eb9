package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

// SearchText runs an FTS5 keyword search over a user's active memories.
// The bm25 rank (lower is better, typically negative) is flipped so a
// better match always yields a larger score. Blank queries, FTS syntax
// errors, and empty result sets all return an empty slice, never an error:
// keyword search degrades rather than failing a caller.
func (s *Store) SearchText(ctx context.Context, userID, query string, limit int) ([]ScoredRow, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.memory_id, m.user_id, m.text, m.metadata_json, m.vector_id,
		       m.created_at, m.updated_at, m.is_deleted,
		       bm25(memories_fts) AS rank
		FROM memories m
		INNER JOIN memories_fts ON memories_fts.memory_id = m.memory_id
		WHERE m.user_id = ? AND m.is_deleted = 0 AND memories_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, userID, query, limit)
	if err != nil {
		// Malformed MATCH expressions surface as query errors; treat them
		// as no matches.
		return nil, nil
	}
	defer rows.Close()

	var result []ScoredRow
	for rows.Next() {
		var m MemoryRow
		var metaJSON, updatedAt sql.NullString
		var createdAt string
		var deleted int
		var rank float64

		err := rows.Scan(&m.MemoryID, &m.UserID, &m.Text, &metaJSON, &m.VectorID,
			&createdAt, &updatedAt, &deleted, &rank)
		if err != nil {
			return nil, nil
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

		result = append(result, ScoredRow{Row: m, Score: flipRank(rank)})
	}
	if rows.Err() != nil {
		return nil, nil
	}
	return result, nil
}

// flipRank converts a bm25 rank to a higher-is-better score. SQLite's bm25()
// returns negative values for matches (more negative is better); a
// non-negative rank is mapped through 1/(1+rank) to stay ordered.
func flipRank(rank float64) float64 {
	if rank < 0 {
		return -rank
	}
	return 1.0 / (1.0 + rank)
}

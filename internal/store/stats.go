package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath          string          `json:"db_path"`
	DBSizeBytes     int64           `json:"db_size_bytes"`
	TotalMemories   int             `json:"total_memories"`
	ActiveMemories  int             `json:"active_memories"`
	DeletedMemories int             `json:"deleted_memories"`
	Users           []UserStats     `json:"users"`
	Categories      []CategoryStats `json:"categories"`
}

// UserStats holds per-user counts.
type UserStats struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
}

// CategoryStats holds per-category counts across active memories.
type CategoryStats struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Stats returns database statistics.
func (s *Store) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&st.TotalMemories)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE is_deleted = 0`).Scan(&st.ActiveMemories)
	st.DeletedMemories = st.TotalMemories - st.ActiveMemories

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, COUNT(*) as cnt
		FROM memories WHERE is_deleted = 0
		GROUP BY user_id ORDER BY cnt DESC`)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var u UserStats
		rows.Scan(&u.UserID, &u.Count)
		st.Users = append(st.Users, u)
	}

	catRows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(json_extract(metadata_json, '$.category'), '') as cat, COUNT(*) as cnt
		FROM memories WHERE is_deleted = 0
		GROUP BY cat ORDER BY cnt DESC`)
	if err != nil {
		return st, err
	}
	defer catRows.Close()
	for catRows.Next() {
		var c CategoryStats
		catRows.Scan(&c.Category, &c.Count)
		if c.Category == "" {
			c.Category = "(uncategorized)"
		}
		st.Categories = append(st.Categories, c)
	}

	return st, nil
}

package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSearchTextFindsAndRanks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustInsert(t, s, "u1", "I live in Bangalore, India", nil)
	mustInsert(t, s, "u1", "I enjoy playing jazz piano", nil)
	mustInsert(t, s, "u2", "Bangalore traffic is heavy", nil)

	hits, err := s.SearchText(ctx, "u1", "Bangalore", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit scoped to u1, got %d", len(hits))
	}
	if hits[0].Row.Text != "I live in Bangalore, India" {
		t.Errorf("unexpected hit %q", hits[0].Row.Text)
	}
	if hits[0].Score <= 0 {
		t.Errorf("expected positive score, got %f", hits[0].Score)
	}
}

func TestSearchTextExcludesDeletedAndStale(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	row := mustInsert(t, s, "u1", "I work at Initech", nil)

	if _, err := s.Update(ctx, "u1", row.MemoryID, "I work at Globex now", nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	if hits, _ := s.SearchText(ctx, "u1", "Initech", 10); len(hits) != 0 {
		t.Errorf("stale term must not match after update, got %d hits", len(hits))
	}
	if hits, _ := s.SearchText(ctx, "u1", "Globex", 10); len(hits) != 1 {
		t.Errorf("new term must match after update, got %d hits", len(hits))
	}

	if _, err := s.MarkDeleted(ctx, "u1", row.MemoryID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if hits, _ := s.SearchText(ctx, "u1", "Globex", 10); len(hits) != 0 {
		t.Errorf("deleted memory must not match, got %d hits", len(hits))
	}
}

func TestSearchTextDegradesQuietly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustInsert(t, s, "u1", "hello world", nil)

	cases := []string{"", "   ", `"unbalanced`, "AND OR NOT"}
	for _, q := range cases {
		hits, err := s.SearchText(ctx, "u1", q, 10)
		if err != nil {
			t.Errorf("query %q: expected nil error, got %v", q, err)
		}
		if len(hits) != 0 {
			t.Errorf("query %q: expected no hits, got %d", q, len(hits))
		}
	}
}

func TestSearchTextLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		mustInsert(t, s, "u1", "coffee is great", nil)
	}

	hits, err := s.SearchText(ctx, "u1", "coffee", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 3 {
		t.Errorf("expected 3 hits, got %d", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Errorf("scores must be non-increasing: %f then %f", hits[i-1].Score, hits[i].Score)
		}
	}
}

func TestBackfillFTS(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	mustInsert(t, s, "u1", "I collect vinyl records", nil)
	deleted := mustInsert(t, s, "u1", "temporary note", nil)
	if _, err := s.MarkDeleted(ctx, "u1", deleted.MemoryID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// Simulate index loss.
	if _, err := s.db.Exec(`DELETE FROM memories_fts`); err != nil {
		t.Fatalf("wipe fts: %v", err)
	}
	s.Close()

	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	hits, err := s2.SearchText(ctx, "u1", "vinyl", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected backfilled index to serve 1 hit, got %d", len(hits))
	}
	if hits, _ := s2.SearchText(ctx, "u1", "temporary", 10); len(hits) != 0 {
		t.Error("backfill must skip soft-deleted rows")
	}
}

func TestFlipRank(t *testing.T) {
	if flipRank(-5) != 5 {
		t.Error("negative rank should negate")
	}
	if flipRank(-1) <= flipRank(-0.5) {
		t.Error("better (more negative) rank must score higher")
	}
	if flipRank(0) != 1 {
		t.Errorf("zero rank should map to 1, got %f", flipRank(0))
	}
	if flipRank(3) >= flipRank(1) {
		t.Error("worse positive rank must score lower")
	}
}

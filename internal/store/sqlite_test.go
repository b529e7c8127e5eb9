package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roshantac/eva-memory/internal/apperr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustInsert(t *testing.T, s *Store, user, text string, meta map[string]any) MemoryRow {
	t.Helper()
	ctx := context.Background()
	vid, err := s.AllocateVectorID(ctx)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	row, err := s.Insert(ctx, user, text, meta, vid)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return row
}

func TestInsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	row := mustInsert(t, s, "u1", "I live in Bangalore", map[string]any{"category": "identity_profile"})
	if row.MemoryID == "" {
		t.Error("expected non-empty memory id")
	}
	if row.VectorID != 1 {
		t.Errorf("expected first vector id 1, got %d", row.VectorID)
	}

	got, err := s.Get(ctx, "u1", row.MemoryID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Text != "I live in Bangalore" {
		t.Errorf("unexpected text %q", got.Text)
	}
	if got.Metadata["category"] != "identity_profile" {
		t.Errorf("unexpected metadata %v", got.Metadata)
	}
	if got.IsDeleted {
		t.Error("new row must be active")
	}
	if got.UpdatedAt != nil {
		t.Error("new row must have nil updated_at")
	}
}

func TestGetWrongUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	row := mustInsert(t, s, "u1", "secret fact", nil)

	_, err := s.Get(ctx, "u2", row.MemoryID)
	if !apperr.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND for other user, got %v", err)
	}
}

func TestAllocateVectorIDMonotonic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var prev int64
	for i := 0; i < 5; i++ {
		id, err := s.AllocateVectorID(ctx)
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		if id <= prev {
			t.Fatalf("vector id %d not greater than %d", id, prev)
		}
		prev = id
	}
}

func TestVectorIDSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	vid, _ := s.AllocateVectorID(ctx)
	if _, err := s.Insert(ctx, "u1", "fact", nil, vid); err != nil {
		t.Fatalf("insert: %v", err)
	}
	row := mustInsert(t, s, "u1", "deleted fact", nil)
	if _, err := s.MarkDeleted(ctx, "u1", row.MemoryID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	s.Close()

	// Ids allocated after reopen must exceed every id ever used, even ids
	// held by soft-deleted rows.
	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	next, _ := s2.AllocateVectorID(ctx)
	if next <= row.VectorID {
		t.Errorf("expected id > %d after reopen, got %d", row.VectorID, next)
	}
}

func TestUpdateReplacesWholesale(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	row := mustInsert(t, s, "u1", "old text", map[string]any{"category": "work_career", "importance": "high"})

	updated, err := s.Update(ctx, "u1", row.MemoryID, "new text", map[string]any{"category": "goals_plans"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Text != "new text" {
		t.Errorf("unexpected text %q", updated.Text)
	}
	if updated.UpdatedAt == nil {
		t.Error("expected updated_at to be set")
	}
	if _, ok := updated.Metadata["importance"]; ok {
		t.Error("metadata must be replaced wholesale, not merged")
	}
	if updated.VectorID != row.VectorID {
		t.Errorf("vector id must be stable across update: %d != %d", updated.VectorID, row.VectorID)
	}
}

func TestUpdateMissingOrDeleted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Update(ctx, "u1", "nope", "text", nil); !apperr.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND for missing row, got %v", err)
	}

	row := mustInsert(t, s, "u1", "fact", nil)
	if _, err := s.MarkDeleted(ctx, "u1", row.MemoryID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Update(ctx, "u1", row.MemoryID, "text", nil); !apperr.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND for deleted row, got %v", err)
	}
	if _, err := s.MarkDeleted(ctx, "u1", row.MemoryID); !apperr.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND for double delete, got %v", err)
	}
}

func TestListRespectsDeleted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := mustInsert(t, s, "u1", "alpha", nil)
	mustInsert(t, s, "u1", "beta", nil)
	mustInsert(t, s, "u2", "gamma", nil)

	if _, err := s.MarkDeleted(ctx, "u1", a.MemoryID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	active, err := s.List(ctx, "u1", 0, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 || active[0].Text != "beta" {
		t.Errorf("unexpected active list %v", active)
	}

	all, err := s.List(ctx, "u1", 0, true)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(all))
	}
	var deletedSeen bool
	for _, m := range all {
		if m.MemoryID == a.MemoryID && m.IsDeleted {
			deletedSeen = true
		}
	}
	if !deletedSeen {
		t.Error("deleted row missing from include_deleted list")
	}
}

func TestGetByVectorIDsActiveOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := mustInsert(t, s, "u1", "alpha", nil)
	b := mustInsert(t, s, "u1", "beta", nil)
	other := mustInsert(t, s, "u2", "gamma", nil)
	if _, err := s.MarkDeleted(ctx, "u1", b.MemoryID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := s.GetByVectorIDs(ctx, "u1", []int64{a.VectorID, b.VectorID, other.VectorID, 999})
	if err != nil {
		t.Fatalf("get by vector ids: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only the active owned row, got %d", len(got))
	}
	if got[a.VectorID].MemoryID != a.MemoryID {
		t.Error("wrong row hydrated")
	}

	empty, err := s.GetByVectorIDs(ctx, "u1", nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("empty input must yield empty map, got %v, %v", empty, err)
	}
}

func TestExportAllIncludesDeleted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := mustInsert(t, s, "u1", "alpha", nil)
	mustInsert(t, s, "u1", "beta", nil)
	if _, err := s.MarkDeleted(ctx, "u1", a.MemoryID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	rows, err := s.ExportAll(ctx, "u1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !rows[0].IsDeleted {
		t.Error("expected first exported row to be the deleted one")
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	defer s.Close()

	mustInsert(t, s, "u1", "alpha", map[string]any{"category": "work_career"})
	mustInsert(t, s, "u1", "beta", map[string]any{"category": "work_career"})
	row := mustInsert(t, s, "u2", "gamma", nil)
	if _, err := s.MarkDeleted(ctx, "u2", row.MemoryID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	st, err := s.Stats(ctx, path)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalMemories != 3 || st.ActiveMemories != 2 || st.DeletedMemories != 1 {
		t.Errorf("unexpected counts: %+v", st)
	}
	if len(st.Users) != 1 || st.Users[0].UserID != "u1" || st.Users[0].Count != 2 {
		t.Errorf("unexpected user stats: %+v", st.Users)
	}
	if len(st.Categories) != 1 || st.Categories[0].Category != "work_career" {
		t.Errorf("unexpected category stats: %+v", st.Categories)
	}
}

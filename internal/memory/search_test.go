package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/roshantac/eva-memory/internal/model"
)

func TestHybridScoreBounds(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	user := "u1"

	svc.Add(ctx, user, "I take the metro to work every morning", nil)
	svc.Add(ctx, user, "The metro station near my house opens at 5am", nil)
	svc.Add(ctx, user, "I prefer window seats on long flights", nil)

	hits, err := svc.SearchHybrid(ctx, user, "metro commute", 3, nil)
	if err != nil {
		t.Fatalf("hybrid: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected hybrid hits")
	}
	for _, h := range hits {
		if h.Score < 0 || h.Score > 1 {
			t.Errorf("fused score %f out of [0,1]", h.Score)
		}
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Error("fused scores must be non-increasing")
		}
	}
}

func TestHybridPrefersBothLists(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	user := "u1"

	// Shares tokens with the query in both the embedding space and FTS.
	both, _ := svc.Add(ctx, user, "I walk my dog in the park", nil)
	svc.Add(ctx, user, "I own a dog", nil)
	svc.Add(ctx, user, "Morning walks wake me up", nil)

	hits, err := svc.SearchHybrid(ctx, user, "walk dog park", 3, nil)
	if err != nil {
		t.Fatalf("hybrid: %v", err)
	}
	if len(hits) == 0 || hits[0].Memory.MemoryID != both.MemoryID {
		t.Fatalf("expected the memory matching both channels on top, got %+v", hits)
	}
}

func TestHybridSurvivesEmptyTextChannel(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	user := "u1"

	svc.Add(ctx, user, "cycling on saturdays", nil)

	// FTS finds nothing for an unrelated query term, so fusion runs on
	// the semantic channel alone.
	hits, err := svc.SearchHybrid(ctx, user, "cycling OR", 3, nil)
	if err != nil {
		t.Fatalf("hybrid: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected semantic-only fallback hit, got %d", len(hits))
	}
}

func TestHybridBlankQuery(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	svc.Add(ctx, "u1", "something", nil)
	hits, err := svc.SearchHybrid(ctx, "u1", "   ", 3, nil)
	if err == nil && len(hits) != 0 {
		t.Errorf("blank query must not produce hits, got %d", len(hits))
	}
}

func TestNormalizeScores(t *testing.T) {
	hit := func(id string, score float64) model.SearchHit {
		return model.SearchHit{Memory: model.MemoryRecord{MemoryID: id}, Score: score}
	}

	norm := normalizeScores([]model.SearchHit{hit("a", 2), hit("b", 4), hit("c", 6)})
	if norm["a"] != 0 || norm["b"] != 0.5 || norm["c"] != 1 {
		t.Errorf("unexpected normalization %v", norm)
	}

	flat := normalizeScores([]model.SearchHit{hit("a", 3), hit("b", 3)})
	if flat["a"] != 0 || flat["b"] != 0 {
		t.Errorf("zero-span scores must normalize to 0, got %v", flat)
	}

	if got := normalizeScores(nil); len(got) != 0 {
		t.Errorf("expected empty map, got %v", got)
	}
}

func TestFormatContext(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	out, err := svc.FormatContext(ctx, "u1", "anything", 3, ModeHybrid, nil)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if out != "" {
		t.Errorf("expected empty context for empty corpus, got %q", out)
	}

	svc.Add(ctx, "u1", "I am allergic to peanuts", nil)
	out, err = svc.FormatContext(ctx, "u1", "peanut allergy", 3, ModeHybrid, nil)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if !strings.HasPrefix(out, "Relevant user context:") {
		t.Errorf("unexpected preamble in %q", out)
	}
	if !strings.Contains(out, "- I am allergic to peanuts") {
		t.Errorf("memory line missing from %q", out)
	}
}

func TestTextSearchCategoryFilter(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	svc.Add(ctx, "u1", "standup meetings at 10am", map[string]any{"category": "work_career"})
	svc.Add(ctx, "u1", "yoga meetings on sundays", map[string]any{"category": "health_wellness"})

	hits, err := svc.SearchText(ctx, "u1", "meetings", 5, []string{"work_career"})
	if err != nil {
		t.Fatalf("search_text: %v", err)
	}
	if len(hits) != 1 || hits[0].Memory.Category() != "work_career" {
		t.Fatalf("expected only work_career hit, got %+v", hits)
	}
}

package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/roshantac/eva-memory/internal/apperr"
	"github.com/roshantac/eva-memory/internal/category"
	"github.com/roshantac/eva-memory/internal/model"
	"github.com/roshantac/eva-memory/internal/provider"
)

// SearchMode selects a retrieval strategy.
type SearchMode string

const (
	ModeSemantic SearchMode = "semantic"
	ModeText     SearchMode = "text"
	ModeHybrid   SearchMode = "hybrid"
)

// categoryOverfetch is how many times k the underlying index is asked for
// when a category filter will discard some candidates afterwards.
const categoryOverfetch = 3

// Search runs semantic (vector) retrieval. With a category filter present
// it over-fetches 3k candidates to tolerate post-filtering loss. Hits whose
// row is gone or deleted are dropped; vector-index rank order is preserved.
func (s *Service) Search(ctx context.Context, userID, query string, k int, categories []string) ([]model.SearchHit, error) {
	if userID == "" {
		return nil, apperr.Validation("user_id is required")
	}
	if strings.TrimSpace(query) == "" || k <= 0 {
		return nil, nil
	}

	vec, err := s.embedder.Embed(ctx, query, provider.PurposeSearch)
	if err != nil {
		return nil, err
	}

	fetchK := k
	if len(categories) > 0 {
		fetchK = k * categoryOverfetch
	}
	raw, err := s.vectors.Search(userID, vec, fetchK)
	if err != nil {
		return nil, apperr.Storage(err, "vector search")
	}
	if len(raw) == 0 {
		return nil, nil
	}

	vectorIDs := make([]int64, len(raw))
	for i, h := range raw {
		vectorIDs[i] = h.VectorID
	}
	rowsByID, err := s.meta.GetByVectorIDs(ctx, userID, vectorIDs)
	if err != nil {
		return nil, err
	}

	filter := newCategoryFilter(categories)
	var hits []model.SearchHit
	for _, h := range raw {
		row, ok := rowsByID[h.VectorID]
		if !ok {
			continue
		}
		record := toRecord(row)
		if !filter.match(record) {
			continue
		}
		hits = append(hits, model.SearchHit{Memory: record, Score: h.Score})
		if len(hits) >= k {
			break
		}
	}
	return hits, nil
}

// SearchText runs keyword (FTS) retrieval with the same over-fetch, filter,
// and truncate pattern as Search.
func (s *Service) SearchText(ctx context.Context, userID, query string, k int, categories []string) ([]model.SearchHit, error) {
	if userID == "" {
		return nil, apperr.Validation("user_id is required")
	}
	if strings.TrimSpace(query) == "" || k <= 0 {
		return nil, nil
	}

	fetchK := k
	if len(categories) > 0 {
		fetchK = k * categoryOverfetch
	}
	raw, err := s.meta.SearchText(ctx, userID, query, fetchK)
	if err != nil {
		return nil, err
	}

	filter := newCategoryFilter(categories)
	var hits []model.SearchHit
	for _, sr := range raw {
		record := toRecord(sr.Row)
		if !filter.match(record) {
			continue
		}
		hits = append(hits, model.SearchHit{Memory: record, Score: sr.Score})
		if len(hits) >= k {
			break
		}
	}
	return hits, nil
}

// SearchHybrid fuses semantic and keyword retrieval. Both sides are fetched
// at max(2k, 10), min-max normalized to [0,1] independently (a side with a
// single distinct score maps everything to 0), and combined with the
// configured weights, a missing side contributing 0. Ties are broken by
// memory id ascending so results are reproducible.
func (s *Service) SearchHybrid(ctx context.Context, userID, query string, k int, categories []string) ([]model.SearchHit, error) {
	if userID == "" {
		return nil, apperr.Validation("user_id is required")
	}
	if strings.TrimSpace(query) == "" || k <= 0 {
		return nil, nil
	}

	fetchK := 2 * k
	if fetchK < 10 {
		fetchK = 10
	}
	semHits, err := s.Search(ctx, userID, query, fetchK, categories)
	if err != nil {
		return nil, err
	}
	txtHits, err := s.SearchText(ctx, userID, query, fetchK, categories)
	if err != nil {
		return nil, err
	}

	semNorm := normalizeScores(semHits)
	txtNorm := normalizeScores(txtHits)

	records := make(map[string]model.MemoryRecord)
	for _, h := range semHits {
		records[h.Memory.MemoryID] = h.Memory
	}
	for _, h := range txtHits {
		if _, ok := records[h.Memory.MemoryID]; !ok {
			records[h.Memory.MemoryID] = h.Memory
		}
	}

	fused := make([]model.SearchHit, 0, len(records))
	for id, record := range records {
		combined := s.opts.SemanticWeight*semNorm[id] + s.opts.TextWeight*txtNorm[id]
		fused = append(fused, model.SearchHit{Memory: record, Score: combined})
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].Memory.MemoryID < fused[j].Memory.MemoryID
	})
	if len(fused) > k {
		fused = fused[:k]
	}
	return fused, nil
}

// FormatContext renders the top hits for a query as a prompt-ready context
// block. Returns "" when nothing relevant is stored.
func (s *Service) FormatContext(ctx context.Context, userID, query string, k int, mode SearchMode, categories []string) (string, error) {
	var hits []model.SearchHit
	var err error
	switch mode {
	case ModeText:
		hits, err = s.SearchText(ctx, userID, query, k, categories)
	case ModeHybrid:
		hits, err = s.SearchHybrid(ctx, userID, query, k, categories)
	default:
		hits, err = s.Search(ctx, userID, query, k, categories)
	}
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("Relevant user context:")
	for _, h := range hits {
		b.WriteString("\n- ")
		b.WriteString(h.Memory.Text)
	}
	return b.String(), nil
}

// normalizeScores min-max normalizes a hit list's scores to [0,1], keyed by
// memory id. An empty list or a list with one distinct score value maps to 0.
func normalizeScores(hits []model.SearchHit) map[string]float64 {
	norm := make(map[string]float64, len(hits))
	if len(hits) == 0 {
		return norm
	}
	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < lo {
			lo = h.Score
		}
		if h.Score > hi {
			hi = h.Score
		}
	}
	span := hi - lo
	for _, h := range hits {
		if span > 0 {
			norm[h.Memory.MemoryID] = (h.Score - lo) / span
		} else {
			norm[h.Memory.MemoryID] = 0
		}
	}
	return norm
}

// categoryFilter matches records against a normalized category allow-list.
type categoryFilter struct {
	allowed map[string]bool
}

func newCategoryFilter(categories []string) categoryFilter {
	if len(categories) == 0 {
		return categoryFilter{}
	}
	allowed := make(map[string]bool, len(categories))
	for _, c := range categories {
		if norm, ok := category.Normalize(c); ok {
			allowed[norm] = true
		} else if c = strings.TrimSpace(c); c != "" {
			allowed[c] = true
		}
	}
	return categoryFilter{allowed: allowed}
}

func (f categoryFilter) match(record model.MemoryRecord) bool {
	if f.allowed == nil {
		return true
	}
	return f.allowed[record.Category()]
}

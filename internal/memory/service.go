// Package memory implements the memory service: it orchestrates embedding
// calls, the vector index, and the metadata store behind one user-scoped API.
package memory

import (
	"context"
	"log/slog"

	"github.com/roshantac/eva-memory/internal/apperr"
	"github.com/roshantac/eva-memory/internal/model"
	"github.com/roshantac/eva-memory/internal/provider"
	"github.com/roshantac/eva-memory/internal/store"
	"github.com/roshantac/eva-memory/internal/vecindex"
)

// Options tunes retrieval behavior. Hybrid fusion weights are deliberately
// configuration, not literals.
type Options struct {
	SemanticWeight float64
	TextWeight     float64
}

// DefaultOptions returns the stock 0.6 semantic / 0.4 text fusion weights.
func DefaultOptions() Options {
	return Options{SemanticWeight: 0.6, TextWeight: 0.4}
}

// Service is the public memory API consumed by tool-calling layers and by
// the reconciliation engine. Operations are blocking call chains (embedding
// call, then store calls) and should be kept off latency-sensitive paths.
type Service struct {
	meta     *store.Store
	vectors  *vecindex.Manager
	embedder provider.Embedder
	opts     Options
	logger   *slog.Logger
}

// New wires a service from its three collaborators.
func New(meta *store.Store, vectors *vecindex.Manager, embedder provider.Embedder, opts Options, logger *slog.Logger) *Service {
	if opts.SemanticWeight == 0 && opts.TextWeight == 0 {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		meta:     meta,
		vectors:  vectors,
		embedder: embedder,
		opts:     opts,
		logger:   logger,
	}
}

// Add stores a new memory. Effect order: embed text, allocate a vector id,
// write the vector, write the metadata row. If the metadata write fails
// after the vector write the vector is orphaned; this is logged, not
// repaired.
func (s *Service) Add(ctx context.Context, userID, text string, metadata map[string]any) (model.MemoryRecord, error) {
	if userID == "" {
		return model.MemoryRecord{}, apperr.Validation("user_id is required")
	}
	if text == "" {
		return model.MemoryRecord{}, apperr.Validation("text is required")
	}

	vec, err := s.embedder.Embed(ctx, text, provider.PurposeAdd)
	if err != nil {
		return model.MemoryRecord{}, err
	}

	vectorID, err := s.meta.AllocateVectorID(ctx)
	if err != nil {
		return model.MemoryRecord{}, err
	}
	if err := s.vectors.Add(userID, vectorID, vec); err != nil {
		return model.MemoryRecord{}, apperr.Storage(err, "add vector")
	}

	row, err := s.meta.Insert(ctx, userID, text, metadata, vectorID)
	if err != nil {
		s.logger.Warn("metadata insert failed after vector write; vector orphaned",
			"user_id", userID, "vector_id", vectorID, "error", err)
		return model.MemoryRecord{}, err
	}

	s.logger.Debug("memory added", "user_id", userID, "memory_id", row.MemoryID, "vector_id", vectorID)
	return toRecord(row), nil
}

// Update replaces the text and metadata of an existing memory. Metadata is
// replaced wholesale. Fails with NOT_FOUND if the memory is missing or
// already deleted.
func (s *Service) Update(ctx context.Context, userID, memoryID, newText string, metadata map[string]any) (model.MemoryRecord, error) {
	if userID == "" {
		return model.MemoryRecord{}, apperr.Validation("user_id is required")
	}

	existing, err := s.meta.Get(ctx, userID, memoryID)
	if err != nil {
		return model.MemoryRecord{}, err
	}
	if existing.IsDeleted {
		return model.MemoryRecord{}, apperr.NotFound("memory %s has been deleted", memoryID)
	}

	vec, err := s.embedder.Embed(ctx, newText, provider.PurposeUpdate)
	if err != nil {
		return model.MemoryRecord{}, err
	}
	if err := s.vectors.Update(userID, existing.VectorID, vec); err != nil {
		return model.MemoryRecord{}, apperr.Storage(err, "update vector")
	}

	row, err := s.meta.Update(ctx, userID, memoryID, newText, metadata)
	if err != nil {
		return model.MemoryRecord{}, err
	}
	s.logger.Debug("memory updated", "user_id", userID, "memory_id", memoryID)
	return toRecord(row), nil
}

// Delete soft-deletes a memory and removes its vector. Deleting a missing
// or already-deleted memory is a no-op.
func (s *Service) Delete(ctx context.Context, userID, memoryID string) error {
	if userID == "" {
		return apperr.Validation("user_id is required")
	}

	existing, err := s.meta.Get(ctx, userID, memoryID)
	if apperr.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.IsDeleted {
		return nil
	}

	// Vector first: a crash in between leaves a row without a vector, which
	// retrieval tolerates, rather than a vector without a row.
	if err := s.vectors.Delete(userID, existing.VectorID); err != nil {
		return apperr.Storage(err, "delete vector")
	}
	if _, err := s.meta.MarkDeleted(ctx, userID, memoryID); err != nil && !apperr.IsNotFound(err) {
		return err
	}
	s.logger.Debug("memory deleted", "user_id", userID, "memory_id", memoryID)
	return nil
}

// Get returns a memory by id, deleted or not. NOT_FOUND when absent.
func (s *Service) Get(ctx context.Context, userID, memoryID string) (model.MemoryRecord, error) {
	if userID == "" {
		return model.MemoryRecord{}, apperr.Validation("user_id is required")
	}
	row, err := s.meta.Get(ctx, userID, memoryID)
	if err != nil {
		return model.MemoryRecord{}, err
	}
	return toRecord(row), nil
}

// List returns a user's memories ordered by recency.
func (s *Service) List(ctx context.Context, userID string, limit int, includeDeleted bool) ([]model.MemoryRecord, error) {
	if userID == "" {
		return nil, apperr.Validation("user_id is required")
	}
	rows, err := s.meta.List(ctx, userID, limit, includeDeleted)
	if err != nil {
		return nil, err
	}
	records := make([]model.MemoryRecord, len(rows))
	for i, r := range rows {
		records[i] = toRecord(r)
	}
	return records, nil
}

// Export returns every memory for a user, deleted included.
func (s *Service) Export(ctx context.Context, userID string) ([]model.MemoryRecord, error) {
	if userID == "" {
		return nil, apperr.Validation("user_id is required")
	}
	rows, err := s.meta.ExportAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	records := make([]model.MemoryRecord, len(rows))
	for i, r := range rows {
		records[i] = toRecord(r)
	}
	return records, nil
}

// ResetIndex discards a user's vector index. Intended for cleanup and
// testing; metadata rows are untouched.
func (s *Service) ResetIndex(userID string) error {
	if userID == "" {
		return apperr.Validation("user_id is required")
	}
	return s.vectors.Reset(userID)
}

func toRecord(row store.MemoryRow) model.MemoryRecord {
	return model.MemoryRecord{
		MemoryID:  row.MemoryID,
		UserID:    row.UserID,
		Text:      row.Text,
		Metadata:  row.Metadata,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		IsDeleted: row.IsDeleted,
	}
}

// Package reconcile turns conversation transcripts into memory mutations.
// It extracts durable facts with a text-generation backend, matches them
// against stored memories, and applies the backend's merge decisions
// through the memory service.
package reconcile

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/roshantac/eva-memory/internal/category"
	"github.com/roshantac/eva-memory/internal/memory"
	"github.com/roshantac/eva-memory/internal/model"
	"github.com/roshantac/eva-memory/internal/provider"
)

const candidatesPerFact = 5

// Engine runs the extract/match/decide/apply pipeline on top of the
// memory service. Stages run strictly sequentially.
type Engine struct {
	svc    *memory.Service
	chat   provider.ChatCompleter
	logger *slog.Logger
}

// NewEngine builds a reconciliation engine.
func NewEngine(svc *memory.Service, chat provider.ChatCompleter, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{svc: svc, chat: chat, logger: logger}
}

// InferAndUpdate reads a conversation, extracts durable facts, and applies
// the resulting add/update/delete decisions. It returns the applied changes
// in order. Unparsable backend output degrades to a no-op rather than an
// error; a blank transcript short-circuits before any backend call.
func (e *Engine) InferAndUpdate(ctx context.Context, userID string, messages []model.Message, categoryHint string) ([]model.MemoryChange, error) {
	transcript := flattenTranscript(messages)
	if transcript == "" {
		return nil, nil
	}
	runID := uuid.NewString()
	log := e.logger.With("run_id", runID, "user_id", userID)

	facts, err := e.extractFacts(ctx, transcript, categoryHint)
	if err != nil {
		return nil, err
	}
	if len(facts) == 0 {
		log.Debug("no durable facts extracted")
		return nil, nil
	}
	log.Info("extracted facts", "count", len(facts))

	candidates := e.collectCandidates(ctx, log, userID, facts)

	ops, err := e.decideOperations(ctx, candidates, facts)
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		log.Debug("no operations decided")
		return nil, nil
	}

	changes := e.apply(ctx, log, userID, ops, candidates, facts, categoryHint)
	log.Info("reconciliation applied", "operations", len(ops), "changes", len(changes))
	return changes, nil
}

// flattenTranscript renders non-system turns as "role: content" lines.
func flattenTranscript(messages []model.Message) string {
	var parts []string
	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" || m.Role == "system" {
			continue
		}
		parts = append(parts, m.Role+": "+content)
	}
	return strings.Join(parts, "\n")
}

func (e *Engine) extractFacts(ctx context.Context, transcript, categoryHint string) ([]model.ExtractedFact, error) {
	raw, err := e.chat.CompleteJSON(ctx, buildExtractionMessages(transcript))
	if err != nil {
		return nil, err
	}

	items, _ := raw["facts"].([]any)
	var facts []model.ExtractedFact
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		text := strings.TrimSpace(stringField(obj, "fact"))
		if text == "" {
			continue
		}
		cat := stringField(obj, "category")
		if cat == "" {
			cat = categoryHint
		}
		norm, ok := category.Normalize(cat)
		if !ok {
			norm = category.Default
		}

		fact := model.ExtractedFact{
			Fact:        text,
			Category:    norm,
			Subcategory: stringField(obj, "subcategory"),
			SourceRole:  stringField(obj, "source_role"),
			TimeScope:   stringField(obj, "time_scope"),
			Importance:  stringField(obj, "importance"),
			Confidence:  floatField(obj, "confidence"),
			Tags:        stringSliceField(obj, "tags"),
		}
		if fact.SourceRole == "" {
			fact.SourceRole = "user"
		}
		if fact.Importance == "" {
			fact.Importance = "medium"
		}
		facts = append(facts, fact)
	}
	return facts, nil
}

// collectCandidates searches the store with each fact's text and unions
// the hits by memory id. A failed search contributes no candidates for
// that fact but does not abort the turn.
func (e *Engine) collectCandidates(ctx context.Context, log *slog.Logger, userID string, facts []model.ExtractedFact) map[string]model.MemoryRecord {
	candidates := make(map[string]model.MemoryRecord)
	for _, fact := range facts {
		hits, err := e.svc.Search(ctx, userID, fact.Fact, candidatesPerFact, nil)
		if err != nil {
			log.Warn("candidate search failed", "error", err)
			continue
		}
		for _, h := range hits {
			candidates[h.Memory.MemoryID] = h.Memory
		}
	}
	return candidates
}

func (e *Engine) decideOperations(ctx context.Context, candidates map[string]model.MemoryRecord, facts []model.ExtractedFact) ([]map[string]any, error) {
	existing := make([]map[string]any, 0, len(candidates))
	for _, m := range candidates {
		meta := m.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		existing = append(existing, map[string]any{
			"id":       m.MemoryID,
			"fact":     m.Text,
			"metadata": meta,
		})
	}

	payload := make([]map[string]any, 0, len(facts))
	for _, f := range facts {
		tags := f.Tags
		if tags == nil {
			tags = []string{}
		}
		entry := map[string]any{
			"fact":        f.Fact,
			"category":    f.Category,
			"subcategory": f.Subcategory,
			"source_role": f.SourceRole,
			"time_scope":  f.TimeScope,
			"importance":  f.Importance,
			"tags":        tags,
		}
		if f.Confidence != nil {
			entry["confidence"] = *f.Confidence
		}
		payload = append(payload, entry)
	}

	raw, err := e.chat.CompleteJSON(ctx, buildUpdateMessages(existing, payload))
	if err != nil {
		return nil, err
	}

	items, _ := raw["operations"].([]any)
	ops := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			ops = append(ops, obj)
		}
	}
	return ops, nil
}

// apply executes decided operations in order. Store failures on one
// operation are logged and skipped so the rest of the batch still lands.
func (e *Engine) apply(ctx context.Context, log *slog.Logger, userID string, ops []map[string]any, candidates map[string]model.MemoryRecord, facts []model.ExtractedFact, categoryHint string) []model.MemoryChange {
	fallbackCategory := categoryHint
	if norm, ok := category.Normalize(fallbackCategory); ok {
		fallbackCategory = norm
	} else if len(facts) > 0 {
		fallbackCategory = facts[0].Category
	} else {
		fallbackCategory = category.Default
	}

	var changes []model.MemoryChange
	for _, op := range ops {
		event := strings.ToUpper(stringField(op, "event"))
		targetID := stringField(op, "target_id")
		factText := strings.TrimSpace(stringField(op, "fact"))
		meta := operationMetadata(op, fallbackCategory)

		switch event {
		case string(model.EventAdd):
			if factText == "" {
				continue
			}
			record, err := e.svc.Add(ctx, userID, factText, meta)
			if err != nil {
				log.Warn("add failed", "error", err)
				continue
			}
			changes = append(changes, model.MemoryChange{
				Event:    model.EventAdd,
				MemoryID: record.MemoryID,
				NewText:  record.Text,
				Metadata: record.Metadata,
			})

		case string(model.EventUpdate):
			existing, ok := candidates[targetID]
			if !ok {
				continue
			}
			newText := factText
			if newText == "" {
				newText = existing.Text
			}
			record, err := e.svc.Update(ctx, userID, targetID, newText, meta)
			if err != nil {
				log.Warn("update failed", "memory_id", targetID, "error", err)
				continue
			}
			changes = append(changes, model.MemoryChange{
				Event:    model.EventUpdate,
				MemoryID: record.MemoryID,
				OldText:  existing.Text,
				NewText:  record.Text,
				Metadata: record.Metadata,
			})

		case string(model.EventDelete):
			existing, ok := candidates[targetID]
			if !ok {
				continue
			}
			if err := e.svc.Delete(ctx, userID, targetID); err != nil {
				log.Warn("delete failed", "memory_id", targetID, "error", err)
				continue
			}
			changes = append(changes, model.MemoryChange{
				Event:    model.EventDelete,
				MemoryID: targetID,
				OldText:  existing.Text,
			})
		}
	}
	return changes
}

// operationMetadata assembles the metadata map for an ADD/UPDATE operation,
// dropping unset fields the way extraction does.
func operationMetadata(op map[string]any, fallbackCategory string) map[string]any {
	cat, ok := category.Normalize(stringField(op, "category"))
	if !ok {
		cat = fallbackCategory
	}
	meta := map[string]any{"category": cat}
	for _, key := range []string{"subcategory", "time_scope", "importance"} {
		if v := stringField(op, key); v != "" {
			meta[key] = v
		}
	}
	if c := floatField(op, "confidence"); c != nil {
		meta["confidence"] = *c
	}
	if tags := stringSliceField(op, "tags"); len(tags) > 0 {
		meta["tags"] = tags
	}
	return meta
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func floatField(obj map[string]any, key string) *float64 {
	switch v := obj[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	}
	return nil
}

func stringSliceField(obj map[string]any, key string) []string {
	items, ok := obj[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

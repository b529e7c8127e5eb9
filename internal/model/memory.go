// Package model defines the core memory data types.
package model

import "time"

// MemoryRecord is one durable fact about a user.
// MemoryID is assigned at creation and never reused or reassigned.
type MemoryRecord struct {
	MemoryID  string         `json:"memory_id"`
	UserID    string         `json:"user_id"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
	IsDeleted bool           `json:"is_deleted"`
}

// Category returns the memory's category from metadata, or "" if unset.
func (m MemoryRecord) Category() string {
	if m.Metadata == nil {
		return ""
	}
	if c, ok := m.Metadata["category"].(string); ok {
		return c
	}
	return ""
}

// SearchHit pairs a record with a retrieval score.
// Scores are mode-specific but always ranked higher-is-better.
type SearchHit struct {
	Memory MemoryRecord `json:"memory"`
	Score  float64      `json:"score"`
}

// ChangeEvent is the kind of an applied reconciliation operation.
type ChangeEvent string

const (
	EventAdd    ChangeEvent = "ADD"
	EventUpdate ChangeEvent = "UPDATE"
	EventDelete ChangeEvent = "DELETE"
)

// MemoryChange is the audit record of one applied reconciliation decision.
type MemoryChange struct {
	Event    ChangeEvent    `json:"event"`
	MemoryID string         `json:"memory_id"`
	OldText  string         `json:"old_text,omitempty"`
	NewText  string         `json:"new_text,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ExtractedFact is a candidate fact produced by the extraction stage.
// It is ephemeral and never persisted directly.
type ExtractedFact struct {
	Fact        string   `json:"fact"`
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory,omitempty"`
	SourceRole  string   `json:"source_role,omitempty"`
	TimeScope   string   `json:"time_scope,omitempty"`
	Importance  string   `json:"importance,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Metadata flattens the fact's attributes into a memory metadata map,
// omitting unset fields.
func (f ExtractedFact) Metadata() map[string]any {
	meta := map[string]any{"category": f.Category}
	if f.Subcategory != "" {
		meta["subcategory"] = f.Subcategory
	}
	if f.SourceRole != "" {
		meta["source_role"] = f.SourceRole
	}
	if f.TimeScope != "" {
		meta["time_scope"] = f.TimeScope
	}
	if f.Importance != "" {
		meta["importance"] = f.Importance
	}
	if f.Confidence != nil {
		meta["confidence"] = *f.Confidence
	}
	if len(f.Tags) > 0 {
		meta["tags"] = f.Tags
	}
	return meta
}

// Message is one conversational turn handed to the reconciliation engine
// or a text-generation provider.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

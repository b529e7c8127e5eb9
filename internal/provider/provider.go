// Package provider defines the external collaborator contracts of the
// memory engine: embedding backends and text-generation (JSON) backends,
// plus an explicit registry for selecting between them.
package provider

import (
	"context"
	"fmt"
	"sort"

	"github.com/roshantac/eva-memory/internal/model"
)

// Purpose tells an embedding backend why a vector is being requested.
// Some models use different task prefixes for storage versus retrieval.
type Purpose string

const (
	PurposeAdd    Purpose = "add"
	PurposeSearch Purpose = "search"
	PurposeUpdate Purpose = "update"
)

// Embedder generates embedding vectors from text. Implementations must
// return vectors of a fixed dimensionality for a given configuration and
// propagate backend failures as provider errors.
type Embedder interface {
	Embed(ctx context.Context, text string, purpose Purpose) ([]float32, error)
	Dims() int
}

// ChatCompleter sends role/content messages to a text-generation backend
// and returns a best-effort-parsed JSON object. Unparsable model output
// yields an empty map and a nil error; transport failures are returned
// as provider errors.
type ChatCompleter interface {
	CompleteJSON(ctx context.Context, messages []model.Message) (map[string]any, error)
}

// Registry holds named provider implementations. It is constructed once by
// the composition root and passed by reference to dependents; there is no
// package-level provider state.
type Registry struct {
	embedders map[string]Embedder
	chats     map[string]ChatCompleter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		embedders: make(map[string]Embedder),
		chats:     make(map[string]ChatCompleter),
	}
}

// RegisterEmbedder registers an embedding backend under name, replacing any
// previous registration.
func (r *Registry) RegisterEmbedder(name string, e Embedder) {
	r.embedders[name] = e
}

// RegisterChat registers a text-generation backend under name.
func (r *Registry) RegisterChat(name string, c ChatCompleter) {
	r.chats[name] = c
}

// Embedder returns the embedding backend registered under name.
func (r *Registry) Embedder(name string) (Embedder, error) {
	e, ok := r.embedders[name]
	if !ok {
		return nil, fmt.Errorf("unknown embedding provider %q (registered: %v)", name, r.embedderNames())
	}
	return e, nil
}

// Chat returns the text-generation backend registered under name.
func (r *Registry) Chat(name string) (ChatCompleter, error) {
	c, ok := r.chats[name]
	if !ok {
		return nil, fmt.Errorf("unknown chat provider %q", name)
	}
	return c, nil
}

func (r *Registry) embedderNames() []string {
	names := make([]string, 0, len(r.embedders))
	for n := range r.embedders {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

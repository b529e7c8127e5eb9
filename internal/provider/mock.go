package provider

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/roshantac/eva-memory/internal/apperr"
	"github.com/roshantac/eva-memory/internal/model"
)

// MockEmbedder is a deterministic embedder for tests. It hashes each token
// into a bucket of the vector, so texts sharing words produce similar
// vectors and unrelated texts do not.
type MockEmbedder struct {
	Dim int
	// Err, when set, is returned from every Embed call.
	Err error
	// Calls counts Embed invocations.
	Calls int
}

// NewMockEmbedder returns a mock embedder with the given dimensionality.
func NewMockEmbedder(dim int) *MockEmbedder {
	if dim <= 0 {
		dim = 64
	}
	return &MockEmbedder{Dim: dim}
}

// Embed produces a normalized bag-of-tokens vector for text.
func (m *MockEmbedder) Embed(_ context.Context, text string, _ Purpose) ([]float32, error) {
	m.Calls++
	if m.Err != nil {
		return nil, apperr.Provider(m.Err, "mock embedder")
	}
	vec := make([]float32, m.Dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,!?;:\"'()")
		if tok == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[int(h.Sum32())%m.Dim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// Dims returns the mock dimensionality.
func (m *MockEmbedder) Dims() int { return m.Dim }

// MockChat replays scripted JSON objects, one per CompleteJSON call.
// Once the script is exhausted it returns empty objects.
type MockChat struct {
	Responses []map[string]any
	// Err, when set, is returned from every call.
	Err error
	// Calls records the message lists received.
	Calls [][]model.Message
}

// CompleteJSON pops the next scripted response.
func (m *MockChat) CompleteJSON(_ context.Context, messages []model.Message) (map[string]any, error) {
	m.Calls = append(m.Calls, messages)
	if m.Err != nil {
		return nil, apperr.Provider(m.Err, "mock chat")
	}
	if len(m.Responses) == 0 {
		return map[string]any{}, nil
	}
	resp := m.Responses[0]
	m.Responses = m.Responses[1:]
	return resp, nil
}

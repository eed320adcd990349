// Package mock provides test doubles for the ai contracts.
package mock

import (
	"context"
	"hash/fnv"
	"sync/atomic"
)

// Embedder is a test double for ai.Embedder. Behavior is overridable
// via function fields; the default produces deterministic vectors from
// a text hash so ranking tests are stable.
type Embedder struct {
	EmbedTextFunc  func(ctx context.Context, text string) ([]float32, error)
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	callCount atomic.Int64
}

// NewEmbedder creates a mock embedder with default deterministic behavior.
func NewEmbedder() *Embedder {
	return &Embedder{}
}

// EmbedText generates a deterministic embedding based on the text hash.
func (m *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.callCount.Add(1)
	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	return DeterministicVector(text, 16), nil
}

// EmbedTexts generates deterministic embeddings for multiple texts.
func (m *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.callCount.Add(1)
	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = DeterministicVector(t, 16)
	}
	return out, nil
}

// CallCount returns the number of times any method was called. Safe
// to read while the engine embeds from its retrieval goroutine.
func (m *Embedder) CallCount() int {
	return int(m.callCount.Load())
}

// DeterministicVector creates a reproducible embedding from text using
// an FNV hash seeding a small LCG.
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, dim)
	for i := 0; i < dim; i++ {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000) / 1000.0
	}
	return vec
}

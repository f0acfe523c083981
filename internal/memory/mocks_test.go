package memory

import (
	"context"
	"fmt"
)

// MockEngine is a test embedding engine with pluggable behavior.
type MockEngine struct {
	EmbedFunc      func(ctx context.Context, text string) ([]float32, error)
	DimensionsFunc func() int
	EmbedCalls     int
}

func (m *MockEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	m.EmbedCalls++
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return []float32{1, 0, 0, 0}, nil
}

func (m *MockEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (m *MockEngine) Dimensions() int {
	if m.DimensionsFunc != nil {
		return m.DimensionsFunc()
	}
	return 4
}

func (m *MockEngine) Name() string { return "mock" }

// wordVectorEngine maps test words to fixed embeddings so similarity is
// predictable in tests.
func wordVectorEngine(vectors map[string][]float32) *MockEngine {
	return &MockEngine{
		EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
			if vec, ok := vectors[text]; ok {
				return vec, nil
			}
			return []float32{0, 0, 0, 1}, nil
		},
	}
}

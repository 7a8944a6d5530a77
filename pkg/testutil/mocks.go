package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/FrenchMajesty/newsbench/types"
)

// MockEmbeddingClient is a mock implementation of zeroshot.EmbeddingClient for testing
type MockEmbeddingClient struct {
	GenerateEmbeddingFunc func(ctx context.Context, text string) ([]float32, error)
	mu                    sync.Mutex
	CallCount             int
	LastText              string
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastText = text
	m.mu.Unlock()

	if m.GenerateEmbeddingFunc != nil {
		return m.GenerateEmbeddingFunc(ctx, text)
	}
	// Default: return a simple embedding based on text length
	embedding := make([]float32, 10)
	for i := range embedding {
		embedding[i] = float32(len(text)) / 100.0
	}
	return embedding, nil
}

type storedVector struct {
	Vector   []float32
	Metadata map[string]any
}

// MockVectorClient is a mock implementation of zeroshot.VectorIndex for testing
type MockVectorClient struct {
	SearchFunc func(ctx context.Context, vector []float32, topK int, filter types.Filter) ([]types.VectorMatch, error)
	UpsertFunc func(ctx context.Context, id string, vector []float32, metadata map[string]any) error

	mu          sync.Mutex
	CallCount   int
	UpsertCount int
	Storage     map[string]storedVector
}

func NewMockVectorClient() *MockVectorClient {
	return &MockVectorClient{
		Storage: make(map[string]storedVector),
	}
}

func (m *MockVectorClient) Search(ctx context.Context, vector []float32, topK int, filter types.Filter) ([]types.VectorMatch, error) {
	m.mu.Lock()
	m.CallCount++
	m.mu.Unlock()

	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, vector, topK, filter)
	}

	// Default: rank matching stored vectors by dot product
	m.mu.Lock()
	defer m.mu.Unlock()
	matches := make([]types.VectorMatch, 0, len(m.Storage))
	for id, stored := range m.Storage {
		if !filter.Matches(stored.Metadata) {
			continue
		}
		var dot float64
		for i := 0; i < len(vector) && i < len(stored.Vector); i++ {
			dot += float64(vector[i]) * float64(stored.Vector[i])
		}
		matches = append(matches, types.VectorMatch{ID: id, Score: float32(dot), Metadata: stored.Metadata})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *MockVectorClient) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	m.mu.Lock()
	m.UpsertCount++
	m.Storage[id] = storedVector{Vector: vector, Metadata: metadata}
	m.mu.Unlock()

	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, id, vector, metadata)
	}

	return nil
}

// MockChooser is a mock implementation of zeroshot.Chooser for testing
type MockChooser struct {
	ChooseFunc func(ctx context.Context, text string, candidates []string) (string, error)

	mu        sync.Mutex
	CallCount int
	LastText  string
}

func (m *MockChooser) Choose(ctx context.Context, text string, candidates []string) (string, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastText = text
	m.mu.Unlock()

	if m.ChooseFunc != nil {
		return m.ChooseFunc(ctx, text, candidates)
	}

	// Default: pick the first candidate
	if len(candidates) == 0 {
		return "", nil
	}
	return candidates[0], nil
}

package zeroshot

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/FrenchMajesty/newsbench/types"
)

// VectorIndex stores candidate embeddings and answers nearest-neighbour queries.
// adapters.PineconeVectorAdapter and MemoryIndex both implement it. Search
// only considers vectors whose metadata matches filter.
type VectorIndex interface {
	Search(ctx context.Context, vector []float32, topK int, filter types.Filter) ([]types.VectorMatch, error)
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error
}

type memoryEntry struct {
	vector   []float32
	metadata map[string]any
}

// MemoryIndex is an in-process cosine similarity index
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

var _ VectorIndex = (*MemoryIndex)(nil)

// NewMemoryIndex creates an empty index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]memoryEntry)}
}

// Upsert implements VectorIndex
func (m *MemoryIndex) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	if len(vector) == 0 {
		return fmt.Errorf("vector for %q is empty", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = memoryEntry{vector: vector, metadata: metadata}
	return nil
}

// Search implements VectorIndex. Matches are ordered by descending cosine
// similarity, then by id.
func (m *MemoryIndex) Search(ctx context.Context, vector []float32, topK int, filter types.Filter) ([]types.VectorMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]types.VectorMatch, 0, len(m.entries))
	for id, entry := range m.entries {
		if !filter.Matches(entry.metadata) {
			continue
		}
		if len(entry.vector) != len(vector) {
			return nil, fmt.Errorf("dimension mismatch for %q: index %d, query %d", id, len(entry.vector), len(vector))
		}
		matches = append(matches, types.VectorMatch{
			ID:       id,
			Score:    cosine(entry.vector, vector),
			Metadata: entry.metadata,
		})
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

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

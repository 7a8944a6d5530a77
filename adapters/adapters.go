package adapters

import (
	"context"
	"fmt"
	"os"

	"github.com/FrenchMajesty/newsbench/adapters/pinecone"
	"github.com/FrenchMajesty/newsbench/adapters/voyage"
	"github.com/FrenchMajesty/newsbench/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"google.golang.org/protobuf/types/known/structpb"
)

// DefaultEmbeddingCacheSize bounds the number of cached embeddings per adapter
const DefaultEmbeddingCacheSize = 4096

type voyageClient interface {
	GenerateEmbedding(ctx context.Context, text string, embeddingType voyage.VoyageEmbeddingType) ([]float32, error)
}

// VoyageEmbeddingAdapter adapts the Voyage client to the EmbeddingClient
// interface and memoizes results within a zero-shot run. Purge clears the
// cache between runs.
type VoyageEmbeddingAdapter struct {
	client        voyageClient
	embeddingType voyage.VoyageEmbeddingType
	cache         *lru.Cache[string, []float32]
}

// NewVoyageEmbeddingAdapter creates a new adapter for Voyage AI
func NewVoyageEmbeddingAdapter(apiKey *string, embeddingType voyage.VoyageEmbeddingType) (*VoyageEmbeddingAdapter, error) {
	key, err := loadEnvVar(apiKey, "VOYAGEAI_API_KEY")
	if err != nil {
		return nil, err
	}

	return newVoyageEmbeddingAdapter(voyage.NewEmbeddingService(*key), embeddingType, DefaultEmbeddingCacheSize)
}

func newVoyageEmbeddingAdapter(client voyageClient, embeddingType voyage.VoyageEmbeddingType, cacheSize int) (*VoyageEmbeddingAdapter, error) {
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	return &VoyageEmbeddingAdapter{
		client:        client,
		embeddingType: embeddingType,
		cache:         cache,
	}, nil
}

// GenerateEmbedding implements EmbeddingClient interface
func (a *VoyageEmbeddingAdapter) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := a.cache.Get(text); ok {
		return vec, nil
	}

	vec, err := a.client.GenerateEmbedding(ctx, text, a.embeddingType)
	if err != nil {
		return nil, err
	}

	a.cache.Add(text, vec)
	return vec, nil
}

// Purge drops every cached embedding
func (a *VoyageEmbeddingAdapter) Purge() {
	a.cache.Purge()
}

type pineconeIndex interface {
	Search(ctx context.Context, queryVector []float32, topK int, filter map[string]any, includeMetadata bool) ([]pinecone.QueryMatch, error)
	Upsert(ctx context.Context, vectors []pinecone.Vector) error
	Close() error
}

// PineconeVectorAdapter adapts the Pinecone client to the VectorClient interface
type PineconeVectorAdapter struct {
	index pineconeIndex
}

// NewPineconeVectorAdapter creates a new adapter for one Pinecone namespace
func NewPineconeVectorAdapter(apiKey *string, host *string, namespace string) (*PineconeVectorAdapter, error) {
	key, err := loadEnvVar(apiKey, "PINECONE_API_KEY")
	if err != nil {
		return nil, err
	}

	h, err := loadEnvVar(host, "PINECONE_HOST")
	if err != nil {
		return nil, err
	}

	client, err := pinecone.NewPineconeService(*key)
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone service: %w", err)
	}

	index, err := client.ForIndex(*h, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pinecone index: %w", err)
	}

	return &PineconeVectorAdapter{
		index: index,
	}, nil
}

// Search implements VectorClient interface
func (a *PineconeVectorAdapter) Search(ctx context.Context, vector []float32, topK int, filter types.Filter) ([]types.VectorMatch, error) {
	matches, err := a.index.Search(ctx, vector, topK, filter, true)
	if err != nil {
		return nil, err
	}

	results := make([]types.VectorMatch, 0, len(matches))
	for _, match := range matches {
		if match.Vector == nil {
			continue
		}
		metadata := make(map[string]any)
		if match.Vector.Metadata != nil {
			metadata = match.Vector.Metadata.AsMap()
		}

		results = append(results, types.VectorMatch{
			ID:       match.Vector.Id,
			Score:    match.Score,
			Metadata: metadata,
		})
	}

	return results, nil
}

// Close releases the index connection
func (a *PineconeVectorAdapter) Close() error {
	return a.index.Close()
}

// Upsert implements VectorClient interface
func (a *PineconeVectorAdapter) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]any) error {
	metadataStruct, err := structpb.NewStruct(metadata)
	if err != nil {
		return err
	}

	return a.index.Upsert(ctx, []pinecone.Vector{
		{
			Id:     id,
			Values: vector,
			Metadata: &pinecone.Metadata{
				Fields: metadataStruct.Fields,
			},
		},
	})
}

// loadEnvVar loads an environment variable into a pointer if no value is provided
func loadEnvVar(target *string, envKey string) (*string, error) {
	if target == nil {
		envVar := os.Getenv(envKey)
		if envVar == "" {
			return nil, fmt.Errorf("%s environment variable not set and no value provided", envKey)
		}
		return &envVar, nil
	}
	return target, nil
}

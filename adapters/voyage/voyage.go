package voyage

import (
	"context"
	"fmt"

	"github.com/austinfhunter/voyageai"
)

const EMBEDDING_DIMENSIONS = 1024

const VOYAGEAI_EMBEDDING_MODEL = "voyage-3.5-lite"

type VoyageEmbeddingType string

const (
	VoyageEmbeddingTypeDocument VoyageEmbeddingType = "document"
	VoyageEmbeddingTypeQuery    VoyageEmbeddingType = "query"
	VoyageEmbeddingTypeDefault  VoyageEmbeddingType = ""
)

// embedder is the slice of the Voyage SDK the service uses
type embedder interface {
	Embed(texts []string, model string, opts *voyageai.EmbeddingRequestOpts) (*voyageai.EmbeddingResponse, error)
}

// EmbeddingService generates embeddings for text through Voyage AI
type EmbeddingService struct {
	client     embedder
	dimensions int
	model      string
}

// NewEmbeddingService creates a new embedding service
func NewEmbeddingService(apiKey string) *EmbeddingService {
	return &EmbeddingService{
		client:     voyageai.NewClient(&voyageai.VoyageClientOpts{Key: apiKey}),
		dimensions: EMBEDDING_DIMENSIONS,
		model:      VOYAGEAI_EMBEDDING_MODEL,
	}
}

// SetDimensions sets the output dimension requested from the model
func (es *EmbeddingService) SetDimensions(dimensions int) {
	es.dimensions = dimensions
}

// SetModel sets the embedding model name
func (es *EmbeddingService) SetModel(model string) {
	es.model = model
}

// GenerateEmbedding generates an embedding for a single text
func (es *EmbeddingService) GenerateEmbedding(ctx context.Context, text string, embeddingType VoyageEmbeddingType) ([]float32, error) {
	embeddings, err := es.GenerateEmbeddings(ctx, []string{text}, embeddingType)
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// GenerateEmbeddings generates embeddings for multiple texts in one request.
// The SDK call is not context aware, so ctx is only checked up front.
func (es *EmbeddingService) GenerateEmbeddings(ctx context.Context, texts []string, embeddingType VoyageEmbeddingType) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dimensions := es.GetEmbeddingDimensions()
	resp, err := es.client.Embed(texts, es.model, &voyageai.EmbeddingRequestOpts{
		InputType:       parseEmbeddingType(embeddingType),
		OutputDimension: &dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("could not get embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("voyage returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(resp.Data))
	for i, obj := range resp.Data {
		out[i] = obj.Embedding
	}
	return out, nil
}

func parseEmbeddingType(embeddingType VoyageEmbeddingType) *string {
	if embeddingType != VoyageEmbeddingTypeDefault {
		value := string(embeddingType)
		return &value
	}
	return nil
}

// GetEmbeddingDimensions returns the dimension count for the embedding model
func (es *EmbeddingService) GetEmbeddingDimensions() int {
	return es.dimensions
}

package pinecone

import (
	"context"
	"errors"
	"fmt"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// Vector represents a vector with metadata (re-exported from the SDK)
type Vector = pinecone.Vector

// QueryMatch represents a match from query results (re-exported from the SDK)
type QueryMatch = pinecone.ScoredVector

// Metadata represents the metadata for a vector (re-exported from the SDK)
type Metadata = pinecone.Metadata

// Service wraps a Pinecone client
type Service struct {
	client *pinecone.Client
}

// IndexOperations provides operations on one namespace of one index
type IndexOperations struct {
	index *pinecone.IndexConnection
}

// NewPineconeService creates a Pinecone service using the official SDK
func NewPineconeService(apiKey string) (*Service, error) {
	if apiKey == "" {
		return nil, errors.New("pinecone API key is empty")
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pinecone client: %w", err)
	}

	return &Service{client: client}, nil
}

// ForIndex returns an index gateway for the index served at host
func (s *Service) ForIndex(host string, namespace string) (*IndexOperations, error) {
	if host == "" {
		return nil, errors.New("pinecone index host is empty")
	}

	conn, err := s.client.Index(pinecone.NewIndexConnParams{
		Host:      host,
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pinecone index: %w", err)
	}

	return &IndexOperations{index: conn}, nil
}

// Search performs a vector similarity search in the index
func (idx *IndexOperations) Search(ctx context.Context, queryVector []float32, topK int, filter map[string]any, includeMetadata bool) ([]QueryMatch, error) {
	req := &pinecone.QueryByVectorValuesRequest{
		Vector:          queryVector,
		TopK:            uint32(topK),
		IncludeValues:   false,
		IncludeMetadata: includeMetadata,
	}

	if len(filter) > 0 {
		metadataFilter, err := structpb.NewStruct(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to create metadata filter: %w", err)
		}
		req.MetadataFilter = metadataFilter
	}

	resp, err := idx.index.QueryByVectorValues(ctx, req)
	if err != nil {
		return nil, err
	}

	matches := make([]QueryMatch, 0, len(resp.Matches))
	for _, match := range resp.Matches {
		if match != nil {
			matches = append(matches, *match)
		}
	}

	return matches, nil
}

// Upsert stores vectors in the index
func (idx *IndexOperations) Upsert(ctx context.Context, vectors []Vector) error {
	pineconeVectors := make([]*pinecone.Vector, len(vectors))
	for i := range vectors {
		pineconeVectors[i] = &vectors[i]
	}

	_, err := idx.index.UpsertVectors(ctx, pineconeVectors)
	return err
}

// Close releases the underlying gRPC connection
func (idx *IndexOperations) Close() error {
	return idx.index.Close()
}

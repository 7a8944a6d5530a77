package zeroshot

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/FrenchMajesty/newsbench/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultHypothesisTemplate turns a candidate label into a sentence to embed
const DefaultHypothesisTemplate = "This example is {}."

const labelMetadataKey = "label"

// EmbeddingClient produces a dense vector for a text
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingScorerConfig configures an EmbeddingScorer
type EmbeddingScorerConfig struct {
	// HypothesisTemplate must contain "{}". If empty, uses DefaultHypothesisTemplate.
	HypothesisTemplate string
	// Index holds candidate embeddings. If nil, an in-memory index is used.
	Index  VectorIndex
	Logger *zap.Logger
}

// EmbeddingScorer scores candidates by the similarity between the document
// embedding and each candidate's hypothesis embedding.
type EmbeddingScorer struct {
	client   EmbeddingClient
	index    VectorIndex
	template string
	logger   *zap.Logger

	mu      sync.Mutex
	indexed map[string]string // candidate -> vector id
}

var _ Scorer = (*EmbeddingScorer)(nil)

// NewEmbeddingScorer creates a scorer over client
func NewEmbeddingScorer(client EmbeddingClient, cfg EmbeddingScorerConfig) (*EmbeddingScorer, error) {
	if client == nil {
		return nil, fmt.Errorf("embedding client is nil")
	}
	if cfg.HypothesisTemplate == "" {
		cfg.HypothesisTemplate = DefaultHypothesisTemplate
	}
	if !strings.Contains(cfg.HypothesisTemplate, "{}") {
		return nil, fmt.Errorf("hypothesis template %q has no {} placeholder", cfg.HypothesisTemplate)
	}
	if cfg.Index == nil {
		cfg.Index = NewMemoryIndex()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &EmbeddingScorer{
		client:   client,
		index:    cfg.Index,
		template: cfg.HypothesisTemplate,
		logger:   cfg.Logger,
		indexed:  make(map[string]string),
	}, nil
}

// Hypothesis renders the sentence embedded for candidate
func (s *EmbeddingScorer) Hypothesis(candidate string) string {
	return strings.ReplaceAll(s.template, "{}", candidate)
}

// candidateID is stable across runs so a shared remote index is reused
func (s *EmbeddingScorer) candidateID(candidate string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(s.Hypothesis(candidate))).String()
}

func (s *EmbeddingScorer) ensureIndexed(ctx context.Context, candidates []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, candidate := range candidates {
		if _, ok := s.indexed[candidate]; ok {
			continue
		}
		hypothesis := s.Hypothesis(candidate)
		vec, err := s.client.GenerateEmbedding(ctx, hypothesis)
		if err != nil {
			return fmt.Errorf("failed to embed candidate %q: %w", candidate, err)
		}
		id := s.candidateID(candidate)
		if err := s.index.Upsert(ctx, id, vec, map[string]any{labelMetadataKey: candidate}); err != nil {
			return fmt.Errorf("failed to index candidate %q: %w", candidate, err)
		}
		s.indexed[candidate] = id
		s.logger.Debug("indexed candidate", zap.String("candidate", candidate), zap.String("id", id))
	}
	return nil
}

// Score implements Scorer. Similarities are softmax-normalised so the
// scores of one document sum to 1.
func (s *EmbeddingScorer) Score(ctx context.Context, text string, candidates []string) ([]LabelScore, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	if err := s.ensureIndexed(ctx, candidates); err != nil {
		return nil, err
	}

	vec, err := s.client.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed document: %w", err)
	}

	s.mu.Lock()
	byID := make(map[string]int, len(candidates))
	for i, candidate := range candidates {
		byID[s.indexed[candidate]] = i
	}
	s.mu.Unlock()

	// the filter keeps other vectors sharing the index out of the top K
	filter := types.In(labelMetadataKey, candidates)
	matches, err := s.index.Search(ctx, vec, len(candidates), filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search candidates: %w", err)
	}

	sims := make([]float64, len(candidates))
	found := make([]bool, len(candidates))
	for _, match := range matches {
		i, ok := byID[match.ID]
		if !ok || found[i] {
			continue
		}
		sims[i] = float64(match.Score)
		found[i] = true
	}

	// candidates the index did not return get no probability mass
	if missing := len(candidates) - countTrue(found); missing > 0 {
		s.logger.Debug("index did not return every candidate", zap.Int("missing", missing))
	}
	maxSim := math.Inf(-1)
	for i, sim := range sims {
		if found[i] && sim > maxSim {
			maxSim = sim
		}
	}
	var total float64
	scores := make([]LabelScore, len(candidates))
	for i, candidate := range candidates {
		scores[i].Label = candidate
		if found[i] {
			scores[i].Score = math.Exp(sims[i] - maxSim)
			total += scores[i].Score
		}
	}
	if total == 0 {
		return nil, nil
	}
	for i := range scores {
		scores[i].Score /= total
	}
	return rank(scores), nil
}

// Reset forgets which candidates are indexed so the next Score embeds them
// again, and drops the client's cached embeddings when it keeps any.
func (s *EmbeddingScorer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexed = make(map[string]string)
	if p, ok := s.client.(interface{ Purge() }); ok {
		p.Purge()
	}
}

func countTrue(bs []bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}

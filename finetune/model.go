package finetune

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"

	"gonum.org/v1/gonum/floats"
)

const (
	DefaultEmbeddingDim = 64
	initStdDev          = 0.02
)

// ErrShapeMismatch is returned when saved weights do not fit the requested shape
var ErrShapeMismatch = errors.New("model shape mismatch")

// ModelConfig sizes a Model
type ModelConfig struct {
	VocabSize    int `json:"vocab_size"`
	EmbeddingDim int `json:"embedding_dim"`
	NumLabels    int `json:"num_labels"`
}

// Model is a sequence classifier: token embeddings, masked mean pooling
// and a linear classification head.
type Model struct {
	Config ModelConfig `json:"config"`
	// Embeddings is VocabSize rows of EmbeddingDim values
	Embeddings []float64 `json:"embeddings"`
	// Weights is NumLabels rows of EmbeddingDim values
	Weights []float64 `json:"weights"`
	Bias    []float64 `json:"bias"`
}

// NewModel creates a randomly initialised model
func NewModel(cfg ModelConfig, seed int64) (*Model, error) {
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = DefaultEmbeddingDim
	}
	if cfg.VocabSize <= 0 || cfg.NumLabels < 2 {
		return nil, fmt.Errorf("invalid model config: vocab %d, labels %d", cfg.VocabSize, cfg.NumLabels)
	}

	rng := rand.New(rand.NewSource(seed))
	m := &Model{
		Config:     cfg,
		Embeddings: make([]float64, cfg.VocabSize*cfg.EmbeddingDim),
		Bias:       make([]float64, cfg.NumLabels),
	}
	for i := range m.Embeddings {
		m.Embeddings[i] = rng.NormFloat64() * initStdDev
	}
	m.resetHead(rng)
	return m, nil
}

func (m *Model) resetHead(rng *rand.Rand) {
	m.Weights = make([]float64, m.Config.NumLabels*m.Config.EmbeddingDim)
	for i := range m.Weights {
		m.Weights[i] = rng.NormFloat64() * initStdDev
	}
	m.Bias = make([]float64, m.Config.NumLabels)
}

// LoadModel reads a model.json written by Save
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	c := m.Config
	if len(m.Embeddings) != c.VocabSize*c.EmbeddingDim || len(m.Weights) != c.NumLabels*c.EmbeddingDim || len(m.Bias) != c.NumLabels {
		return nil, fmt.Errorf("%w in %s", ErrShapeMismatch, path)
	}
	return &m, nil
}

// Save writes the model as JSON
func (m *Model) Save(path string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// WithNumLabels returns m unchanged when it already has numLabels outputs,
// otherwise a copy sharing the embeddings with a freshly initialised head.
func (m *Model) WithNumLabels(numLabels int, seed int64) *Model {
	if m.Config.NumLabels == numLabels {
		return m
	}
	out := &Model{Config: m.Config, Embeddings: m.Embeddings}
	out.Config.NumLabels = numLabels
	out.resetHead(rand.New(rand.NewSource(seed)))
	return out
}

func (m *Model) embedding(id int) []float64 {
	d := m.Config.EmbeddingDim
	return m.Embeddings[id*d : (id+1)*d]
}

func (m *Model) weightRow(label int) []float64 {
	d := m.Config.EmbeddingDim
	return m.Weights[label*d : (label+1)*d]
}

// pool averages the embeddings of attended, in-vocabulary tokens. It
// returns the pooled vector and the ids that contributed.
func (m *Model) pool(r Record) ([]float64, []int) {
	pooled := make([]float64, m.Config.EmbeddingDim)
	used := make([]int, 0, len(r.InputIDs))
	for i, id := range r.InputIDs {
		if i < len(r.AttentionMask) && r.AttentionMask[i] == 0 {
			continue
		}
		if id < 0 || id >= m.Config.VocabSize {
			continue
		}
		floats.Add(pooled, m.embedding(id))
		used = append(used, id)
	}
	if len(used) > 0 {
		floats.Scale(1/float64(len(used)), pooled)
	}
	return pooled, used
}

func (m *Model) logits(pooled []float64) []float64 {
	out := make([]float64, m.Config.NumLabels)
	for k := range out {
		out[k] = floats.Dot(m.weightRow(k), pooled) + m.Bias[k]
	}
	return out
}

// Logits returns the unnormalised class scores for r
func (m *Model) Logits(r Record) []float64 {
	pooled, _ := m.pool(r)
	return m.logits(pooled)
}

// Predict returns the argmax label for r
func (m *Model) Predict(r Record) int {
	return floats.MaxIdx(m.Logits(r))
}

// softmax converts logits to probabilities in place
func softmax(z []float64) {
	lse := floats.LogSumExp(z)
	for i := range z {
		z[i] = math.Exp(z[i] - lse)
	}
}

// gradients holds per-batch parameter gradients. Embedding gradients are
// sparse: only rows of tokens seen in the batch are present.
type gradients struct {
	embeddings map[int][]float64
	weights    []float64
	bias       []float64
}

func (m *Model) newGradients() *gradients {
	return &gradients{
		embeddings: make(map[int][]float64),
		weights:    make([]float64, len(m.Weights)),
		bias:       make([]float64, len(m.Bias)),
	}
}

// accumulate adds the cross-entropy gradient of r, scaled by scale, and
// returns the example loss.
func (m *Model) accumulate(g *gradients, r Record, scale float64) float64 {
	pooled, used := m.pool(r)
	probs := m.logits(pooled)
	softmax(probs)
	loss := -math.Log(math.Max(probs[r.Label], 1e-300))

	dim := m.Config.EmbeddingDim
	dPooled := make([]float64, dim)
	for k, p := range probs {
		dz := p
		if k == r.Label {
			dz--
		}
		dz *= scale
		g.bias[k] += dz
		floats.AddScaled(g.weights[k*dim:(k+1)*dim], dz, pooled)
		floats.AddScaled(dPooled, dz, m.weightRow(k))
	}

	if len(used) == 0 {
		return loss
	}
	share := 1 / float64(len(used))
	for _, id := range used {
		row, ok := g.embeddings[id]
		if !ok {
			row = make([]float64, dim)
			g.embeddings[id] = row
		}
		floats.AddScaled(row, share, dPooled)
	}
	return loss
}

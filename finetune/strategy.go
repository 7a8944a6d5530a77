package finetune

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/FrenchMajesty/newsbench/corpus"
	"go.uber.org/zap"
)

// DefaultVocabSize caps vocabularies built from the training split
const DefaultVocabSize = 8000

// Config configures the fine-tune strategy
type Config struct {
	// Pretrained is a checkpoint directory holding vocab.txt and model.json.
	// If empty, the vocabulary is built from the training split and the
	// model starts from a seeded random initialisation.
	Pretrained   string            `yaml:"pretrained"`
	VocabSize    int               `yaml:"vocab_size"`
	EmbeddingDim int               `yaml:"embedding_dim"`
	MaxLength    int               `yaml:"max_length"`
	Args         TrainingArguments `yaml:"training"`
	Logger       *zap.Logger       `yaml:"-"`
}

// Strategy trains a sequence classifier on the selected portion and
// evaluates it on the full test split.
type Strategy struct {
	provider  corpus.Provider
	numLabels int
	cfg       Config
	logger    *zap.Logger
}

// NewStrategy creates a fine-tune strategy with one output per category
func NewStrategy(provider corpus.Provider, categories corpus.CategorySet, cfg Config) (*Strategy, error) {
	if provider == nil {
		return nil, fmt.Errorf("corpus provider is nil")
	}
	if err := categories.Validate(); err != nil {
		return nil, err
	}
	if cfg.VocabSize == 0 {
		cfg.VocabSize = DefaultVocabSize
	}
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = DefaultEmbeddingDim
	}
	if cfg.MaxLength == 0 {
		cfg.MaxLength = DefaultMaxLength
	}
	cfg.Args.applyDefaults()
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Strategy{
		provider:  provider,
		numLabels: len(categories),
		cfg:       cfg,
		logger:    logger.Named("finetune"),
	}, nil
}

// Name implements experiment.Strategy
func (s *Strategy) Name() string {
	return "finetune"
}

// Title is the human readable name used in console output and charts
func (s *Strategy) Title() string {
	return "Fine-tuned sequence classifier"
}

// Run implements experiment.Strategy
func (s *Strategy) Run(ctx context.Context, portion float64) (float64, error) {
	m, err := s.Evaluate(ctx, portion)
	if err != nil {
		return 0, err
	}
	return m.Accuracy, nil
}

// RunWithMetrics returns the accuracy together with the full evaluation record
func (s *Strategy) RunWithMetrics(ctx context.Context, portion float64) (float64, map[string]float64, error) {
	m, err := s.Evaluate(ctx, portion)
	if err != nil {
		return 0, nil, err
	}
	return m.Accuracy, m.Map(), nil
}

// Evaluate trains on the leading portion of the train split and returns
// the evaluation metrics on the test split.
func (s *Strategy) Evaluate(ctx context.Context, portion float64) (Metrics, error) {
	data, err := s.provider.Load(ctx)
	if err != nil {
		return Metrics{}, err
	}
	train := corpus.SelectPortion(data.Train, portion)

	tokenizer, model, err := s.prepare(train.Texts)
	if err != nil {
		return Metrics{}, err
	}

	opts := EncodeOptions{Padding: PadLongest, Truncation: true, MaxLength: s.cfg.MaxLength}
	trainDS, err := NewEncodedDataset(tokenizer.Encode(train.Texts, opts), train.Labels)
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to build train dataset: %w", err)
	}
	testDS, err := NewEncodedDataset(tokenizer.Encode(data.Test.Texts, opts), data.Test.Labels)
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to build test dataset: %w", err)
	}

	trainer, err := NewTrainer(TrainerConfig{
		Model:        model,
		Args:         s.cfg.Args,
		TrainDataset: trainDS,
		EvalDataset:  testDS,
		Tokenizer:    tokenizer,
		Logger:       s.logger,
	})
	if err != nil {
		return Metrics{}, err
	}
	if _, err := trainer.Train(ctx); err != nil {
		return Metrics{}, fmt.Errorf("training failed: %w", err)
	}

	m, err := trainer.Evaluate(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("evaluation failed: %w", err)
	}
	s.logger.Debug("evaluation metrics",
		zap.Float64("eval_accuracy", m.Accuracy),
		zap.Float64("eval_loss", m.Loss),
		zap.Float64("eval_runtime", m.Runtime),
		zap.Float64("eval_samples_per_second", m.SamplesPerSecond),
		zap.Float64("epoch", m.Epoch),
	)
	return m, nil
}

func (s *Strategy) prepare(trainTexts []string) (*Tokenizer, *Model, error) {
	if s.cfg.Pretrained == "" {
		tokenizer, err := BuildVocab(trainTexts, s.cfg.VocabSize)
		if err != nil {
			return nil, nil, err
		}
		model, err := NewModel(ModelConfig{
			VocabSize:    tokenizer.VocabSize(),
			EmbeddingDim: s.cfg.EmbeddingDim,
			NumLabels:    s.numLabels,
		}, s.cfg.Args.Seed)
		if err != nil {
			return nil, nil, err
		}
		return tokenizer, model, nil
	}

	tokenizer, err := LoadVocab(filepath.Join(s.cfg.Pretrained, vocabFileName))
	if err != nil {
		return nil, nil, err
	}
	model, err := LoadModel(filepath.Join(s.cfg.Pretrained, modelFileName))
	if err != nil {
		return nil, nil, err
	}
	if model.Config.VocabSize != tokenizer.VocabSize() {
		return nil, nil, fmt.Errorf("%w: model has %d embeddings, vocabulary has %d tokens",
			ErrShapeMismatch, model.Config.VocabSize, tokenizer.VocabSize())
	}
	if model.Config.NumLabels != s.numLabels {
		s.logger.Warn("classification head reinitialised",
			zap.Int("pretrained_labels", model.Config.NumLabels),
			zap.Int("labels", s.numLabels),
		)
	}
	return tokenizer, model.WithNumLabels(s.numLabels, s.cfg.Args.Seed), nil
}

package zeroshot

import (
	"context"
	"fmt"

	"github.com/FrenchMajesty/newsbench/corpus"
	"github.com/FrenchMajesty/newsbench/metrics"
	"go.uber.org/zap"
)

// Config configures the zero-shot strategy
type Config struct {
	Logger *zap.Logger
}

// Strategy classifies test documents against the category descriptions
// without any training.
type Strategy struct {
	provider   corpus.Provider
	categories corpus.CategorySet
	scorer     Scorer
	logger     *zap.Logger
}

// NewStrategy creates a zero-shot strategy. Categories sharing a
// description are accepted but logged, since predictions are compared by
// description and such categories cannot be told apart.
func NewStrategy(provider corpus.Provider, categories corpus.CategorySet, scorer Scorer, cfg Config) (*Strategy, error) {
	if provider == nil {
		return nil, fmt.Errorf("corpus provider is nil")
	}
	if scorer == nil {
		return nil, fmt.Errorf("zero-shot scorer is nil")
	}
	if err := categories.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("zeroshot")

	if dups := categories.DuplicateDescriptions(); len(dups) > 0 {
		logger.Warn("categories share descriptions", zap.Strings("descriptions", dups))
	}

	return &Strategy{
		provider:   provider,
		categories: categories,
		scorer:     scorer,
		logger:     logger,
	}, nil
}

// Name implements experiment.Strategy
func (s *Strategy) Name() string {
	return "zeroshot"
}

// Title is the human readable name used in console output and charts
func (s *Strategy) Title() string {
	return "Zero-shot classification"
}

// Run scores every test document. The portion only sizes the train split
// reported in the debug log since no training data is used. A document the
// scorer cannot rank counts as misclassified.
func (s *Strategy) Run(ctx context.Context, portion float64) (float64, error) {
	data, err := s.provider.Load(ctx)
	if err != nil {
		return 0, err
	}
	train := corpus.SelectPortion(data.Train, portion)
	s.logger.Debug("zero-shot run",
		zap.Float64("portion", portion),
		zap.Int("train_unused", train.Len()),
		zap.Int("test", data.Test.Len()))
	if data.Test.Len() == 0 {
		return 0, metrics.ErrNoSamples
	}

	if r, ok := s.scorer.(resetter); ok {
		r.Reset()
	}

	candidates := s.categories.Descriptions()
	correct, undecided := 0, 0
	for i, text := range data.Test.Texts {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		truth, err := s.categories.Description(data.Test.Labels[i])
		if err != nil {
			return 0, err
		}

		scores, err := s.scorer.Score(ctx, text, candidates)
		if err != nil {
			return 0, fmt.Errorf("failed to score test document %d: %w", i, err)
		}
		if len(scores) == 0 {
			undecided++
			continue
		}
		if scores[0].Label == truth {
			correct++
		}
	}

	if undecided > 0 {
		s.logger.Warn("scorer gave no ranking", zap.Int("documents", undecided))
	}
	return float64(correct) / float64(data.Test.Len()), nil
}

// resetter is implemented by scorers holding state that must not outlive one run
type resetter interface {
	Reset()
}

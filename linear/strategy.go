package linear

import (
	"context"
	"fmt"

	"github.com/FrenchMajesty/newsbench/corpus"
	"github.com/FrenchMajesty/newsbench/metrics"
	"go.uber.org/zap"
)

// Config configures the linear strategy
type Config struct {
	MaxFeatures int                      `yaml:"max_features"`
	Regression  LogisticRegressionConfig `yaml:"regression"`
	Logger      *zap.Logger              `yaml:"-"`
}

// Strategy classifies with TF-IDF features and logistic regression
type Strategy struct {
	provider corpus.Provider
	cfg      Config
	logger   *zap.Logger
}

// NewStrategy creates a linear strategy reading from provider
func NewStrategy(provider corpus.Provider, cfg Config) *Strategy {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Strategy{provider: provider, cfg: cfg, logger: logger.Named("linear")}
}

// Name implements experiment.Strategy
func (s *Strategy) Name() string {
	return "linear"
}

// Title is the human readable name used in console output and charts
func (s *Strategy) Title() string {
	return "Logistic regression"
}

// Run loads a fresh corpus, trains on the leading portion of the train
// split and returns test accuracy.
func (s *Strategy) Run(ctx context.Context, portion float64) (float64, error) {
	data, err := s.provider.Load(ctx)
	if err != nil {
		return 0, err
	}
	return s.Evaluate(corpus.SelectPortion(data.Train, portion), data.Test)
}

// Evaluate fits on train and scores on test
func (s *Strategy) Evaluate(train, test corpus.Split) (float64, error) {
	vectorizer := NewTfidfVectorizer(VectorizerConfig{MaxFeatures: s.cfg.MaxFeatures})
	trainX, err := vectorizer.FitTransform(train.Texts)
	if err != nil {
		return 0, fmt.Errorf("failed to vectorize train split: %w", err)
	}
	testX, err := vectorizer.Transform(test.Texts)
	if err != nil {
		return 0, fmt.Errorf("failed to vectorize test split: %w", err)
	}

	clf := NewLogisticRegression(s.cfg.Regression)
	if err := clf.Fit(trainX, train.Labels, vectorizer.NumFeatures()); err != nil {
		return 0, err
	}
	info := clf.Info()
	s.logger.Debug("fitted logistic regression",
		zap.Int("train_docs", train.Len()),
		zap.Int("features", vectorizer.NumFeatures()),
		zap.Int("iterations", info.Iterations),
		zap.String("status", info.Status),
		zap.Float64("loss", info.Loss),
		zap.NamedError("optimizer_error", info.Err),
	)

	preds, err := clf.Predict(testX)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(test.Labels, preds)
}

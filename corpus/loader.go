package corpus

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// LoaderConfig configures a Loader
type LoaderConfig struct {
	// Seed is forwarded to the source for its internal shuffling. If 0, uses DefaultSeed.
	Seed int64

	// Logger receives load statistics. If nil, logging is disabled.
	Logger *zap.Logger
}

func (c *LoaderConfig) applyDefaults() {
	if c.Seed == 0 {
		c.Seed = DefaultSeed
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Loader fetches the train and test splits for a category set and removes
// documents whose stripped text is empty.
type Loader struct {
	source     Source
	categories CategorySet
	seed       int64
	logger     *zap.Logger
}

// NewLoader creates a Loader reading from source
func NewLoader(source Source, categories CategorySet, cfg LoaderConfig) (*Loader, error) {
	if source == nil {
		return nil, fmt.Errorf("corpus source is nil")
	}
	if err := categories.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &Loader{
		source:     source,
		categories: categories,
		seed:       cfg.Seed,
		logger:     cfg.Logger,
	}, nil
}

// Categories returns the category set the loader was built with
func (l *Loader) Categories() CategorySet {
	return l.categories
}

// Load fetches both splits from the source. Nothing is cached between
// calls and source errors are not retried.
func (l *Loader) Load(ctx context.Context) (*Corpus, error) {
	train, err := l.loadSplit(ctx, SubsetTrain)
	if err != nil {
		return nil, err
	}

	test, err := l.loadSplit(ctx, SubsetTest)
	if err != nil {
		return nil, err
	}

	return &Corpus{Train: train, Test: test}, nil
}

func (l *Loader) loadSplit(ctx context.Context, subset Subset) (Split, error) {
	docs, err := l.source.Fetch(ctx, l.categories, subset, FetchOptions{Strip: StripAll, Seed: l.seed})
	if err != nil {
		return Split{}, fmt.Errorf("failed to fetch %s split: %w", subset, err)
	}

	kept := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if doc.Label < 0 || doc.Label >= len(l.categories) {
			return Split{}, fmt.Errorf("%s split: label %d out of range for %d categories", subset, doc.Label, len(l.categories))
		}
		if doc.Text == "" {
			continue
		}
		kept = append(kept, doc)
	}

	l.logger.Debug("loaded split",
		zap.String("subset", string(subset)),
		zap.Int("fetched", len(docs)),
		zap.Int("kept", len(kept)),
	)

	return NewSplit(kept), nil
}

// Provider yields a freshly loaded corpus on every call
type Provider interface {
	Load(ctx context.Context) (*Corpus, error)
}

var _ Provider = (*Loader)(nil)

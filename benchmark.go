package newsbench

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/FrenchMajesty/newsbench/adapters"
	"github.com/FrenchMajesty/newsbench/adapters/voyage"
	"github.com/FrenchMajesty/newsbench/corpus"
	"github.com/FrenchMajesty/newsbench/experiment"
	"github.com/FrenchMajesty/newsbench/finetune"
	"github.com/FrenchMajesty/newsbench/linear"
	"github.com/FrenchMajesty/newsbench/results"
	"github.com/FrenchMajesty/newsbench/zeroshot"
	"go.uber.org/zap"
)

// ErrUnknownStrategy is returned for a strategy name outside DefaultStrategies
var ErrUnknownStrategy = errors.New("unknown strategy")

// Benchmark wires the corpus, the strategies and the result sinks
type Benchmark struct {
	cfg    Config
	loader *corpus.Loader
	logger *zap.Logger

	strategies map[string]experiment.Strategy
	json       *results.JSONRecorder
	store      *results.SQLiteStore

	// default collaborators built here and released by Close
	closers []io.Closer
}

// NewBenchmark creates a Benchmark. Collaborators left nil in cfg are
// replaced by the defaults, which read API keys from the environment.
// Strategies are built on first use so a linear-only run needs no keys.
func NewBenchmark(cfg Config) (*Benchmark, error) {
	cfg.applyDefaults()
	for _, name := range cfg.Strategies {
		if !isKnownStrategy(name) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
		}
	}

	source := cfg.Source
	if source == nil {
		if cfg.DatasetCSV != "" {
			source = corpus.NewCSVSource(cfg.DatasetCSV, cfg.DatasetCSVRaw, cfg.Logger)
		} else {
			s, err := corpus.NewNewsgroupsSource(corpus.NewsgroupsConfig{CacheDir: cfg.CacheDir, Logger: cfg.Logger})
			if err != nil {
				return nil, fmt.Errorf("failed to create default corpus source: %w", err)
			}
			source = s
		}
	}

	loader, err := corpus.NewLoader(source, cfg.Categories, corpus.LoaderConfig{Seed: cfg.Seed, Logger: cfg.Logger})
	if err != nil {
		return nil, err
	}

	b := &Benchmark{
		cfg:        cfg,
		loader:     loader,
		logger:     cfg.Logger,
		strategies: make(map[string]experiment.Strategy),
		json:       results.NewJSONRecorder(cfg.ResultsDir),
	}

	if cfg.ResultsDB != "" {
		store, err := results.OpenSQLite(cfg.ResultsDB)
		if err != nil {
			return nil, err
		}
		b.store = store
	}
	return b, nil
}

func isKnownStrategy(name string) bool {
	for _, known := range DefaultStrategies() {
		if name == known {
			return true
		}
	}
	return false
}

// Loader returns the corpus loader shared by every strategy
func (b *Benchmark) Loader() *corpus.Loader {
	return b.loader
}

// Strategy returns the named strategy, building it on first use
func (b *Benchmark) Strategy(name string) (experiment.Strategy, error) {
	if s, ok := b.strategies[name]; ok {
		return s, nil
	}

	var s experiment.Strategy
	switch name {
	case StrategyLinear:
		cfg := b.cfg.Linear
		if cfg.Logger == nil {
			cfg.Logger = b.logger
		}
		s = linear.NewStrategy(b.loader, cfg)
	case StrategyFinetune:
		cfg := b.cfg.Finetune
		if cfg.Logger == nil {
			cfg.Logger = b.logger
		}
		ft, err := finetune.NewStrategy(b.loader, b.cfg.Categories, cfg)
		if err != nil {
			return nil, err
		}
		s = ft
	case StrategyZeroShot:
		scorer, err := b.zeroShotScorer()
		if err != nil {
			return nil, err
		}
		zs, err := zeroshot.NewStrategy(b.loader, b.cfg.Categories, scorer, zeroshot.Config{Logger: b.logger})
		if err != nil {
			return nil, err
		}
		s = zs
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}

	b.strategies[name] = s
	return s, nil
}

func (b *Benchmark) zeroShotScorer() (zeroshot.Scorer, error) {
	zc := b.cfg.ZeroShot
	switch zc.Backend {
	case ZeroShotBackendLLM:
		chooser := zc.Chooser
		if chooser == nil {
			client, err := adapters.NewChoiceLLMClient(nil, zc.Model, zc.BaseURL, zc.Temperature)
			if err != nil {
				return nil, fmt.Errorf("failed to create default LLM client: %w", err)
			}
			chooser = client
		}
		return zeroshot.NewLLMScorer(chooser), nil

	case ZeroShotBackendEmbedding:
		embedder := zc.EmbeddingClient
		if embedder == nil {
			client, err := adapters.NewVoyageEmbeddingAdapter(nil, voyage.VoyageEmbeddingType(zc.EmbeddingType))
			if err != nil {
				return nil, fmt.Errorf("failed to create default embedding client: %w", err)
			}
			embedder = client
		}

		index := zc.VectorIndex
		if index == nil && zc.PineconeNamespace != "" {
			client, err := adapters.NewPineconeVectorAdapter(nil, nil, zc.PineconeNamespace)
			if err != nil {
				return nil, fmt.Errorf("failed to create default vector client: %w", err)
			}
			b.closers = append(b.closers, client)
			index = client
		}
		return zeroshot.NewEmbeddingScorer(embedder, zeroshot.EmbeddingScorerConfig{
			HypothesisTemplate: zc.HypothesisTemplate,
			Index:              index,
			Logger:             b.logger,
		})

	default:
		return nil, fmt.Errorf("unknown zero-shot backend %q", zc.Backend)
	}
}

// Run sweeps every configured strategy over every portion, renders the
// charts and writes the JSON result dumps. Results gathered before a
// failure are still dumped.
func (b *Benchmark) Run(ctx context.Context) ([]experiment.Result, error) {
	strategies := make([]experiment.Strategy, 0, len(b.cfg.Strategies))
	for _, name := range b.cfg.Strategies {
		s, err := b.Strategy(name)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}

	recorders := []experiment.Recorder{b.json}
	if b.store != nil {
		recorders = append(recorders, b.store)
	}
	driver, err := experiment.NewDriver(strategies, experiment.Config{
		Portions:  b.cfg.Portions,
		ChartsDir: b.cfg.ChartsDir,
		Out:       b.cfg.Out,
		Recorders: recorders,
		Logger:    b.logger,
	})
	if err != nil {
		return nil, err
	}

	res, runErr := driver.Run(ctx)
	paths, err := b.json.Flush()
	if err != nil {
		b.logger.Error("failed to write result dumps", zap.Error(err))
	}
	for _, p := range paths {
		b.logger.Info("results written", zap.String("path", p))
	}
	return res, runErr
}

// RunStrategy runs a single strategy at one portion without charting
func (b *Benchmark) RunStrategy(ctx context.Context, name string, portion float64) (experiment.Result, error) {
	s, err := b.Strategy(name)
	if err != nil {
		return experiment.Result{}, err
	}
	driver, err := experiment.NewDriver([]experiment.Strategy{s}, experiment.Config{
		Portions: []float64{portion},
		Out:      b.cfg.Out,
		Logger:   b.logger,
	})
	if err != nil {
		return experiment.Result{}, err
	}
	res, err := driver.Run(ctx)
	if err != nil {
		return experiment.Result{}, err
	}
	if b.store != nil {
		if err := b.store.Record(ctx, res[0]); err != nil {
			return res[0], err
		}
	}
	return res[0], nil
}

// Close releases the results database and any index connection the
// Benchmark opened itself.
func (b *Benchmark) Close() error {
	var errs []error
	for _, c := range b.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	if b.store != nil {
		if err := b.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

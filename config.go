package newsbench

import (
	"fmt"
	"io"
	"os"

	"github.com/FrenchMajesty/newsbench/corpus"
	"github.com/FrenchMajesty/newsbench/experiment"
	"github.com/FrenchMajesty/newsbench/finetune"
	"github.com/FrenchMajesty/newsbench/linear"
	"github.com/FrenchMajesty/newsbench/zeroshot"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Strategy names accepted in Config.Strategies
const (
	StrategyLinear   = "linear"
	StrategyFinetune = "finetune"
	StrategyZeroShot = "zeroshot"
)

// Zero-shot backends
const (
	ZeroShotBackendEmbedding = "embedding"
	ZeroShotBackendLLM       = "llm"
)

const (
	// DefaultChartsDir receives the accuracy charts
	DefaultChartsDir = "charts"

	// DefaultResultsDir receives the JSON result dumps
	DefaultResultsDir = "results"
)

// DefaultStrategies lists every strategy in sweep order
func DefaultStrategies() []string {
	return []string{StrategyLinear, StrategyFinetune, StrategyZeroShot}
}

// ZeroShotConfig selects and configures the zero-shot scorer
type ZeroShotConfig struct {
	// Backend is "embedding" or "llm". If empty, uses embedding.
	Backend            string `yaml:"backend"`
	HypothesisTemplate string `yaml:"hypothesis_template"`

	// EmbeddingClient embeds hypotheses and documents. If nil, uses the default (Voyage AI).
	EmbeddingClient zeroshot.EmbeddingClient `yaml:"-"`
	EmbeddingType   string                   `yaml:"embedding_type"`

	// VectorIndex stores candidate embeddings. If nil, uses Pinecone when
	// PineconeNamespace is set and an in-memory index otherwise.
	VectorIndex       zeroshot.VectorIndex `yaml:"-"`
	PineconeNamespace string               `yaml:"pinecone_namespace"`

	// Chooser answers for the llm backend. If nil, uses the default (OpenAI).
	Chooser     zeroshot.Chooser `yaml:"-"`
	Model       string           `yaml:"model"`
	BaseURL     string           `yaml:"base_url"`
	Temperature *float32         `yaml:"temperature"`
}

// Config holds configuration for a Benchmark
type Config struct {
	// Categories to classify. If empty, uses corpus.DefaultCategories.
	Categories corpus.CategorySet `yaml:"categories"`

	// Portions of the train split to sweep. If empty, uses experiment.DefaultPortions.
	Portions []float64 `yaml:"portions"`

	// Strategies to run, in order. If empty, uses DefaultStrategies.
	Strategies []string `yaml:"strategies"`

	// Seed for corpus shuffling. If 0, uses corpus.DefaultSeed.
	Seed int64 `yaml:"seed"`

	// Source supplies documents. If nil, uses DatasetCSV when set and the
	// 20 Newsgroups archive otherwise.
	Source     corpus.Source `yaml:"-"`
	DatasetCSV string        `yaml:"dataset_csv"`
	CacheDir   string        `yaml:"cache_dir"`

	// DatasetCSVRaw marks CSV texts as raw posts whose metadata must be stripped
	DatasetCSVRaw bool `yaml:"dataset_csv_raw"`

	Linear   linear.Config   `yaml:"linear"`
	Finetune finetune.Config `yaml:"finetune"`
	ZeroShot ZeroShotConfig  `yaml:"zeroshot"`

	// ChartsDir receives one PNG per strategy. If empty, uses DefaultChartsDir.
	ChartsDir string `yaml:"charts_dir"`
	// ResultsDir receives JSON dumps after a sweep. If empty, uses DefaultResultsDir.
	ResultsDir string `yaml:"results_dir"`
	// ResultsDB, when set, is a SQLite database every result is appended to.
	ResultsDB string `yaml:"results_db"`

	// Out receives the console report. If nil, uses os.Stdout.
	Out    io.Writer   `yaml:"-"`
	Logger *zap.Logger `yaml:"-"`
}

// applyDefaults fills in default values for unset config fields
func (c *Config) applyDefaults() {
	if len(c.Categories) == 0 {
		c.Categories = corpus.DefaultCategories()
	}
	if len(c.Portions) == 0 {
		c.Portions = experiment.DefaultPortions
	}
	if len(c.Strategies) == 0 {
		c.Strategies = DefaultStrategies()
	}
	if c.Seed == 0 {
		c.Seed = corpus.DefaultSeed
	}
	if c.ZeroShot.Backend == "" {
		c.ZeroShot.Backend = ZeroShotBackendEmbedding
	}
	if c.ChartsDir == "" {
		c.ChartsDir = DefaultChartsDir
	}
	if c.ResultsDir == "" {
		c.ResultsDir = DefaultResultsDir
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// LoadConfig reads a YAML config file. Unset fields keep their zero value
// and are defaulted by NewBenchmark.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

package newsbench

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FrenchMajesty/newsbench/corpus"
	"github.com/FrenchMajesty/newsbench/finetune"
	"github.com/FrenchMajesty/newsbench/pkg/testutil"
	"github.com/FrenchMajesty/newsbench/results"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var topics = map[int][]string{
	0: {"render", "pixel", "shader", "polygon"},
	1: {"pitcher", "inning", "batter", "homerun"},
	2: {"voltage", "circuit", "resistor", "diode"},
	3: {"rifle", "firearm", "handgun", "amendment"},
}

func syntheticSource(perCategory int) *corpus.StaticSource {
	docs := func(n, offset int) []corpus.Document {
		var out []corpus.Document
		for i := 0; i < n; i++ {
			for label := 0; label < 4; label++ {
				w := topics[label]
				out = append(out, corpus.Document{
					Text:  strings.Join([]string{w[(i+offset)%4], w[(i+offset+1)%4], w[(i+offset+2)%4]}, " "),
					Label: label,
				})
			}
		}
		return out
	}
	return &corpus.StaticSource{Train: docs(perCategory, 0), Test: docs(2, 1)}
}

// keywordEmbedding puts every topic word of a label on that label's axis;
// descriptions are matched by their own words.
func keywordEmbedding(_ context.Context, text string) ([]float32, error) {
	descriptions := corpus.DefaultCategories().Descriptions()
	vec := make([]float32, 5)
	vec[4] = 0.01
	for label, words := range topics {
		for _, w := range words {
			if strings.Contains(text, w) {
				vec[label]++
			}
		}
		if strings.Contains(text, descriptions[label]) {
			vec[label]++
		}
	}
	return vec, nil
}

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	noSave := false
	return Config{
		Source:     syntheticSource(10),
		Portions:   []float64{0.5, 1.0},
		ChartsDir:  filepath.Join(dir, "charts"),
		ResultsDir: filepath.Join(dir, "results"),
		ResultsDB:  filepath.Join(dir, "results.db"),
		Out:        &bytes.Buffer{},
		Finetune: finetune.Config{
			EmbeddingDim: 8,
			Args:         finetune.TrainingArguments{Epochs: 2, SaveCheckpoints: &noSave},
		},
		ZeroShot: ZeroShotConfig{
			EmbeddingClient: &testutil.MockEmbeddingClient{GenerateEmbeddingFunc: keywordEmbedding},
			VectorIndex:     testutil.NewMockVectorClient(),
		},
	}
}

func TestNewBenchmark_RejectsUnknownStrategy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Strategies = []string{"linear", "svm"}

	_, err := NewBenchmark(cfg)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestBenchmark_RunSweepsAllStrategies(t *testing.T) {
	cfg := testConfig(t)
	out := cfg.Out.(*bytes.Buffer)
	bench, err := NewBenchmark(cfg)
	require.NoError(t, err)
	defer bench.Close()

	res, err := bench.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res, 6)

	for _, r := range res {
		assert.GreaterOrEqual(t, r.Accuracy, 0.0, r.Strategy)
		assert.LessOrEqual(t, r.Accuracy, 1.0, r.Strategy)
	}
	assert.Equal(t, []string{"linear", "linear", "finetune", "finetune", "zeroshot", "zeroshot"},
		[]string{res[0].Strategy, res[1].Strategy, res[2].Strategy, res[3].Strategy, res[4].Strategy, res[5].Strategy})
	assert.Equal(t, 1.0, res[4].Accuracy, "keyword embeddings separate every test document")
	assert.Contains(t, res[2].Metrics, "eval_loss")
	assert.Contains(t, out.String(), "Logistic regression results:\nPortion: 0.5\n")

	charts, err := os.ReadDir(cfg.ChartsDir)
	require.NoError(t, err)
	assert.Len(t, charts, 3)

	dumps, err := os.ReadDir(cfg.ResultsDir)
	require.NoError(t, err)
	assert.Len(t, dumps, 2)

	store, err := results.OpenSQLite(cfg.ResultsDB)
	require.NoError(t, err)
	defer store.Close()
	stored, err := store.List(context.Background(), res[0].RunID)
	require.NoError(t, err)
	assert.Len(t, stored, 6)
}

func TestBenchmark_RunStrategyIsDeterministic(t *testing.T) {
	cfg := testConfig(t)
	cfg.ResultsDB = ""
	bench, err := NewBenchmark(cfg)
	require.NoError(t, err)

	first, err := bench.RunStrategy(context.Background(), StrategyLinear, 0.5)
	require.NoError(t, err)
	second, err := bench.RunStrategy(context.Background(), StrategyLinear, 0.5)
	require.NoError(t, err)

	assert.Equal(t, first.Accuracy, second.Accuracy)
	assert.Equal(t, 0.5, first.Portion)

	_, err = bench.RunStrategy(context.Background(), "svm", 0.5)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestBenchmark_LLMBackendUsesChooser(t *testing.T) {
	cfg := testConfig(t)
	cfg.ResultsDB = ""
	chooser := &testutil.MockChooser{}
	cfg.ZeroShot = ZeroShotConfig{Backend: ZeroShotBackendLLM, Chooser: chooser}
	bench, err := NewBenchmark(cfg)
	require.NoError(t, err)

	res, err := bench.RunStrategy(context.Background(), StrategyZeroShot, 1.0)
	require.NoError(t, err)

	// the mock always picks the first category
	assert.Equal(t, 0.25, res.Accuracy)
	assert.Equal(t, 8, chooser.CallCount)
}

func TestBenchmark_DefaultZeroShotNeedsKey(t *testing.T) {
	t.Setenv("VOYAGEAI_API_KEY", "")
	cfg := testConfig(t)
	cfg.ResultsDB = ""
	cfg.ZeroShot = ZeroShotConfig{}
	bench, err := NewBenchmark(cfg)
	require.NoError(t, err)

	_, err = bench.Strategy(StrategyZeroShot)
	assert.ErrorContains(t, err, "VOYAGEAI_API_KEY")

	_, err = bench.Strategy(StrategyLinear)
	assert.NoError(t, err, "other strategies need no API keys")
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
portions: [0.25, 1.0]
strategies: [linear, zeroshot]
categories:
  - name: sci.space
    description: space
  - name: rec.autos
    description: cars
linear:
  max_features: 500
  regression:
    c: 2.5
finetune:
  training:
    epochs: 3
zeroshot:
  backend: llm
  model: gpt-4.1-nano
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 1.0}, cfg.Portions)
	assert.Equal(t, []string{"linear", "zeroshot"}, cfg.Strategies)
	assert.Equal(t, "cars", cfg.Categories[1].Description)
	assert.Equal(t, 500, cfg.Linear.MaxFeatures)
	assert.Equal(t, 2.5, cfg.Linear.Regression.C)
	assert.Equal(t, 3, cfg.Finetune.Args.Epochs)
	assert.Equal(t, ZeroShotBackendLLM, cfg.ZeroShot.Backend)

	require.NoError(t, os.WriteFile(path, []byte("unknown_key: 1\n"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestBenchmark_CloseReleasesBuiltCollaborators(t *testing.T) {
	cfg := testConfig(t)
	cfg.ResultsDB = ""
	bench, err := NewBenchmark(cfg)
	require.NoError(t, err)

	closed := 0
	boom := errors.New("connection already closed")
	bench.closers = append(bench.closers,
		closerFunc(func() error { closed++; return nil }),
		closerFunc(func() error { closed++; return boom }),
	)

	err = bench.Close()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, closed, "a failing closer does not stop the others")
	assert.NoError(t, bench.Close())
	assert.Equal(t, 2, closed)
}

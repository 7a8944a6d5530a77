package finetune

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/FrenchMajesty/newsbench/corpus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var toyTexts = []string{
	"alpha beta", "gamma delta",
	"beta alpha alpha", "delta gamma gamma",
	"alpha", "delta",
	"beta beta", "gamma",
}

var toyLabels = []int{0, 1, 0, 1, 0, 1, 0, 1}

func toyDataset(t *testing.T) (*Tokenizer, *EncodedDataset) {
	t.Helper()
	tok, err := BuildVocab(toyTexts, 100)
	require.NoError(t, err)
	ds, err := NewEncodedDataset(tok.Encode(toyTexts, EncodeOptions{Padding: PadLongest, Truncation: true}), toyLabels)
	require.NoError(t, err)
	return tok, ds
}

func toyModel(t *testing.T, tok *Tokenizer) *Model {
	t.Helper()
	model, err := NewModel(ModelConfig{VocabSize: tok.VocabSize(), EmbeddingDim: 8, NumLabels: 2}, 7)
	require.NoError(t, err)
	return model
}

func TestNewEncodedDataset_LengthMismatch(t *testing.T) {
	_, err := NewEncodedDataset(Encoding{InputIDs: [][]int{{1}}, AttentionMask: [][]int{{1}}}, []int{0, 1})
	assert.Error(t, err)
}

func TestTrainer_LearnsSeparableData(t *testing.T) {
	tok, ds := toyDataset(t)
	out := t.TempDir()

	trainer, err := NewTrainer(TrainerConfig{
		Model:        toyModel(t, tok),
		Args:         TrainingArguments{OutputDir: out, LearningRate: 0.1, Epochs: 40, BatchSize: 4, LoggingSteps: 10},
		TrainDataset: ds,
		EvalDataset:  ds,
		Tokenizer:    tok,
	})
	require.NoError(t, err)

	result, err := trainer.Train(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 80, result.GlobalStep)

	metrics, err := trainer.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, metrics.Accuracy)
	assert.InDelta(t, 40.0, metrics.Epoch, 1e-9)
	assert.Less(t, metrics.Loss, result.TrainLoss)

	history := trainer.State().LogHistory
	require.Len(t, history, 8)
	assert.Less(t, history[len(history)-1].Loss, history[0].Loss)

	last := filepath.Join(out, "checkpoint-80")
	for _, name := range []string{modelFileName, stateFileName, vocabFileName} {
		_, err := os.Stat(filepath.Join(last, name))
		assert.NoError(t, err, name)
	}
	_, err = os.Stat(filepath.Join(out, "checkpoint-2", modelFileName))
	assert.NoError(t, err, "a checkpoint is written after every epoch")

	saved, err := LoadModel(filepath.Join(last, modelFileName))
	require.NoError(t, err)
	for i := 0; i < ds.Len(); i++ {
		assert.Equal(t, toyLabels[i], saved.Predict(ds.Get(i)))
	}
}

func TestTrainer_Errors(t *testing.T) {
	tok, ds := toyDataset(t)
	noSave := false
	args := TrainingArguments{OutputDir: t.TempDir(), SaveCheckpoints: &noSave}

	_, err := NewTrainer(TrainerConfig{})
	assert.Error(t, err)

	empty, err := NewTrainer(TrainerConfig{Model: toyModel(t, tok), Args: args})
	require.NoError(t, err)
	_, err = empty.Train(context.Background())
	assert.ErrorIs(t, err, ErrEmptyDataset)
	_, err = empty.Evaluate(context.Background())
	assert.ErrorIs(t, err, ErrEmptyDataset)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	trainer, err := NewTrainer(TrainerConfig{Model: toyModel(t, tok), Args: args, TrainDataset: ds})
	require.NoError(t, err)
	_, err = trainer.Train(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	bad, err := NewEncodedDataset(ds.encoding, []int{0, 1, 0, 1, 0, 1, 0, 5})
	require.NoError(t, err)
	trainer, err = NewTrainer(TrainerConfig{Model: toyModel(t, tok), Args: args, TrainDataset: bad})
	require.NoError(t, err)
	_, err = trainer.Train(context.Background())
	assert.ErrorContains(t, err, "out of range")
}

func TestModel_WithNumLabelsKeepsEmbeddings(t *testing.T) {
	tok, _ := toyDataset(t)
	model := toyModel(t, tok)

	assert.Same(t, model, model.WithNumLabels(2, 1))

	wider := model.WithNumLabels(4, 1)
	assert.Equal(t, 4, wider.Config.NumLabels)
	assert.Len(t, wider.Weights, 4*8)
	assert.Equal(t, model.Embeddings, wider.Embeddings)
}

func TestLoadModel_RejectsBadShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"config":{"vocab_size":2,"embedding_dim":2,"num_labels":2},"embeddings":[1],"weights":[],"bias":[]}`), 0o644))

	_, err := LoadModel(path)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func newsProvider(t *testing.T) (corpus.CategorySet, corpus.Provider) {
	t.Helper()
	cats := corpus.CategorySet{
		{Name: "rec.sport.baseball", Description: "baseball"},
		{Name: "sci.electronics", Description: "science, electronics"},
	}
	words := [][]string{
		{"pitcher", "inning", "batter", "homerun"},
		{"voltage", "circuit", "resistor", "diode"},
	}
	docs := func(n, offset int) []corpus.Document {
		var out []corpus.Document
		for i := 0; i < n; i++ {
			for label := range words {
				w := words[label]
				text := fmt.Sprintf("%s %s %s", w[(i+offset)%4], w[(i+offset+1)%4], w[(i+offset+2)%4])
				out = append(out, corpus.Document{Text: text, Label: label})
			}
		}
		return out
	}
	loader, err := corpus.NewLoader(&corpus.StaticSource{Train: docs(10, 0), Test: docs(4, 1)}, cats, corpus.LoaderConfig{})
	require.NoError(t, err)
	return cats, loader
}

func TestStrategy_RunIsDeterministic(t *testing.T) {
	cats, provider := newsProvider(t)
	strategy, err := NewStrategy(provider, cats, Config{
		EmbeddingDim: 8,
		Args:         TrainingArguments{OutputDir: t.TempDir(), Epochs: 3, BatchSize: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, "finetune", strategy.Name())

	first, err := strategy.Run(context.Background(), 0.5)
	require.NoError(t, err)
	second, metrics, err := strategy.RunWithMetrics(context.Background(), 0.5)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, first, 0.0)
	assert.LessOrEqual(t, first, 1.0)
	assert.Equal(t, first, second)
	assert.Equal(t, first, metrics["eval_accuracy"])
	assert.Contains(t, metrics, "eval_loss")
}

func TestStrategy_WarmStartsFromCheckpoint(t *testing.T) {
	cats, provider := newsProvider(t)
	out := t.TempDir()
	base, err := NewStrategy(provider, cats, Config{
		EmbeddingDim: 8,
		Args:         TrainingArguments{OutputDir: out, Epochs: 1, BatchSize: 4},
	})
	require.NoError(t, err)
	_, err = base.Run(context.Background(), 1.0)
	require.NoError(t, err)

	checkpoints, err := filepath.Glob(filepath.Join(out, "checkpoint-*"))
	require.NoError(t, err)
	require.Len(t, checkpoints, 1)

	warm, err := NewStrategy(provider, cats, Config{
		Pretrained: checkpoints[0],
		Args:       TrainingArguments{OutputDir: t.TempDir(), Epochs: 1, BatchSize: 4},
	})
	require.NoError(t, err)
	acc, err := warm.Run(context.Background(), 1.0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc, 0.0)
	assert.LessOrEqual(t, acc, 1.0)
}

func TestStrategy_EmptyPortionFails(t *testing.T) {
	cats, provider := newsProvider(t)
	strategy, err := NewStrategy(provider, cats, Config{Args: TrainingArguments{OutputDir: t.TempDir()}})
	require.NoError(t, err)

	_, err = strategy.Run(context.Background(), 0.01)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

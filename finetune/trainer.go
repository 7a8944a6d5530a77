package finetune

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/FrenchMajesty/newsbench/metrics"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

const (
	DefaultEpochs       = 5
	DefaultBatchSize    = 16
	DefaultLearningRate = 5e-3
	DefaultOutputDir    = "finetune_output"
	DefaultSeed         = 21
	DefaultLoggingSteps = 50

	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-8

	modelFileName   = "model.json"
	stateFileName   = "trainer_state.json"
	vocabFileName   = "vocab.txt"
	checkpointStyle = "checkpoint-%d"
)

// TrainingArguments configures a Trainer
type TrainingArguments struct {
	// OutputDir receives one checkpoint directory per epoch. If empty, uses DefaultOutputDir.
	OutputDir    string  `yaml:"output_dir" json:"output_dir"`
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`
	Epochs       int     `yaml:"epochs" json:"epochs"`
	BatchSize    int     `yaml:"batch_size" json:"batch_size"`
	Seed         int64   `yaml:"seed" json:"seed"`
	// LoggingSteps is how often the running loss is logged and recorded
	LoggingSteps int `yaml:"logging_steps" json:"logging_steps"`
	// SaveCheckpoints disables checkpoint writing when false. Nil means true.
	SaveCheckpoints *bool `yaml:"save_checkpoints" json:"save_checkpoints,omitempty"`
}

func (a *TrainingArguments) applyDefaults() {
	if a.OutputDir == "" {
		a.OutputDir = DefaultOutputDir
	}
	if a.LearningRate == 0 {
		a.LearningRate = DefaultLearningRate
	}
	if a.Epochs == 0 {
		a.Epochs = DefaultEpochs
	}
	if a.BatchSize == 0 {
		a.BatchSize = DefaultBatchSize
	}
	if a.Seed == 0 {
		a.Seed = DefaultSeed
	}
	if a.LoggingSteps == 0 {
		a.LoggingSteps = DefaultLoggingSteps
	}
	if a.SaveCheckpoints == nil {
		save := true
		a.SaveCheckpoints = &save
	}
}

// LogEntry is one point of the training log history
type LogEntry struct {
	Step         int     `json:"step"`
	Epoch        float64 `json:"epoch"`
	Loss         float64 `json:"loss"`
	LearningRate float64 `json:"learning_rate"`
}

// TrainerState is persisted next to every checkpoint
type TrainerState struct {
	GlobalStep int        `json:"global_step"`
	Epoch      float64    `json:"epoch"`
	MaxSteps   int        `json:"max_steps"`
	LogHistory []LogEntry `json:"log_history"`
}

// TrainOutput summarises a finished training run
type TrainOutput struct {
	GlobalStep int     `json:"global_step"`
	TrainLoss  float64 `json:"train_loss"`
}

// Metrics is the evaluation record
type Metrics struct {
	Accuracy         float64 `json:"eval_accuracy"`
	Loss             float64 `json:"eval_loss"`
	Runtime          float64 `json:"eval_runtime"`
	SamplesPerSecond float64 `json:"eval_samples_per_second"`
	Epoch            float64 `json:"epoch"`
}

// Map flattens the metrics for result recorders
func (m Metrics) Map() map[string]float64 {
	return map[string]float64{
		"eval_accuracy":           m.Accuracy,
		"eval_loss":               m.Loss,
		"eval_runtime":            m.Runtime,
		"eval_samples_per_second": m.SamplesPerSecond,
		"epoch":                   m.Epoch,
	}
}

// TrainerConfig wires a Trainer
type TrainerConfig struct {
	Model        *Model
	Args         TrainingArguments
	TrainDataset Dataset
	EvalDataset  Dataset
	// Tokenizer, when set, has its vocabulary saved into every checkpoint
	Tokenizer *Tokenizer
	Logger    *zap.Logger
}

// Trainer runs minibatch Adam on a Model
type Trainer struct {
	model     *Model
	args      TrainingArguments
	train     Dataset
	eval      Dataset
	tokenizer *Tokenizer
	logger    *zap.Logger
	rng       *rand.Rand

	state TrainerState
	adam  *adamState
}

// NewTrainer validates cfg and applies argument defaults
func NewTrainer(cfg TrainerConfig) (*Trainer, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("trainer model is nil")
	}
	cfg.Args.applyDefaults()
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Trainer{
		model:     cfg.Model,
		args:      cfg.Args,
		train:     cfg.TrainDataset,
		eval:      cfg.EvalDataset,
		tokenizer: cfg.Tokenizer,
		logger:    cfg.Logger,
		rng:       rand.New(rand.NewSource(cfg.Args.Seed)),
		adam:      newAdamState(cfg.Model),
	}, nil
}

// State returns the training log so far
func (t *Trainer) State() TrainerState {
	return t.state
}

// Train runs the configured number of epochs over the train dataset
func (t *Trainer) Train(ctx context.Context) (TrainOutput, error) {
	if t.train == nil || t.train.Len() == 0 {
		return TrainOutput{}, fmt.Errorf("train: %w", ErrEmptyDataset)
	}

	n := t.train.Len()
	stepsPerEpoch := (n + t.args.BatchSize - 1) / t.args.BatchSize
	t.state.MaxSteps = stepsPerEpoch * t.args.Epochs

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	var totalLoss, windowLoss float64
	windowSteps := 0
	for epoch := 0; epoch < t.args.Epochs; epoch++ {
		t.rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < n; start += t.args.BatchSize {
			if err := ctx.Err(); err != nil {
				return TrainOutput{}, err
			}
			batch := order[start:min(start+t.args.BatchSize, n)]
			lr := t.learningRate()
			loss, err := t.step(batch, lr)
			if err != nil {
				return TrainOutput{}, err
			}

			t.state.GlobalStep++
			t.state.Epoch = float64(epoch) + float64(min(start+t.args.BatchSize, n))/float64(n)
			totalLoss += loss
			windowLoss += loss
			windowSteps++

			if t.state.GlobalStep%t.args.LoggingSteps == 0 {
				t.record(windowLoss/float64(windowSteps), lr)
				windowLoss, windowSteps = 0, 0
			}
		}

		if *t.args.SaveCheckpoints {
			if err := t.saveCheckpoint(); err != nil {
				return TrainOutput{}, err
			}
		}
	}
	if windowSteps > 0 {
		t.record(windowLoss/float64(windowSteps), t.learningRate())
	}

	out := TrainOutput{GlobalStep: t.state.GlobalStep, TrainLoss: totalLoss / float64(t.state.GlobalStep)}
	t.logger.Info("training finished",
		zap.Int("global_step", out.GlobalStep),
		zap.Float64("train_loss", out.TrainLoss),
	)
	return out, nil
}

// learningRate decays linearly from the configured rate to zero
func (t *Trainer) learningRate() float64 {
	if t.state.MaxSteps == 0 {
		return t.args.LearningRate
	}
	return t.args.LearningRate * (1 - float64(t.state.GlobalStep)/float64(t.state.MaxSteps))
}

func (t *Trainer) record(loss, lr float64) {
	entry := LogEntry{Step: t.state.GlobalStep, Epoch: t.state.Epoch, Loss: loss, LearningRate: lr}
	t.state.LogHistory = append(t.state.LogHistory, entry)
	t.logger.Debug("training progress",
		zap.Int("step", entry.Step),
		zap.Float64("epoch", entry.Epoch),
		zap.Float64("loss", entry.Loss),
		zap.Float64("learning_rate", entry.LearningRate),
	)
}

func (t *Trainer) step(batch []int, lr float64) (float64, error) {
	grads := t.model.newGradients()
	scale := 1 / float64(len(batch))
	var loss float64
	for _, idx := range batch {
		r := t.train.Get(idx)
		if r.Label < 0 || r.Label >= t.model.Config.NumLabels {
			return 0, fmt.Errorf("record %d: label %d out of range for %d labels", idx, r.Label, t.model.Config.NumLabels)
		}
		loss += t.model.accumulate(grads, r, scale)
	}
	t.adam.apply(t.model, grads, lr)
	return loss * scale, nil
}

// Evaluate scores the eval dataset by argmax of the logits
func (t *Trainer) Evaluate(ctx context.Context) (Metrics, error) {
	if t.eval == nil || t.eval.Len() == 0 {
		return Metrics{}, fmt.Errorf("evaluate: %w", ErrEmptyDataset)
	}

	start := time.Now()
	n := t.eval.Len()
	labels := make([]int, n)
	preds := make([]int, n)
	var loss float64
	for i := 0; i < n; i++ {
		if i%t.args.BatchSize == 0 {
			if err := ctx.Err(); err != nil {
				return Metrics{}, err
			}
		}
		r := t.eval.Get(i)
		probs := t.model.Logits(r)
		preds[i] = floats.MaxIdx(probs)
		softmax(probs)
		if r.Label >= 0 && r.Label < len(probs) {
			loss -= math.Log(math.Max(probs[r.Label], 1e-300))
		}
		labels[i] = r.Label
	}

	acc, err := metrics.Accuracy(labels, preds)
	if err != nil {
		return Metrics{}, err
	}
	runtime := time.Since(start).Seconds()
	m := Metrics{
		Accuracy: acc,
		Loss:     loss / float64(n),
		Runtime:  runtime,
		Epoch:    t.state.Epoch,
	}
	if runtime > 0 {
		m.SamplesPerSecond = float64(n) / runtime
	}
	return m, nil
}

func (t *Trainer) saveCheckpoint() error {
	dir := filepath.Join(t.args.OutputDir, fmt.Sprintf(checkpointStyle, t.state.GlobalStep))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint dir: %w", err)
	}
	if err := t.model.Save(filepath.Join(dir, modelFileName)); err != nil {
		return err
	}
	if t.tokenizer != nil {
		if err := t.tokenizer.SaveVocab(filepath.Join(dir, vocabFileName)); err != nil {
			return fmt.Errorf("failed to save vocabulary: %w", err)
		}
	}

	state, err := json.MarshalIndent(t.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode trainer state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, stateFileName), state, 0o644); err != nil {
		return fmt.Errorf("failed to write trainer state: %w", err)
	}
	t.logger.Debug("saved checkpoint", zap.String("dir", dir))
	return nil
}

// adamState keeps first and second moments per parameter. Embedding rows
// are updated lazily, only when they receive a gradient.
type adamState struct {
	step int

	embM, embV   []float64
	embStep      []int
	wM, wV       []float64
	biasM, biasV []float64
}

func newAdamState(m *Model) *adamState {
	return &adamState{
		embM:    make([]float64, len(m.Embeddings)),
		embV:    make([]float64, len(m.Embeddings)),
		embStep: make([]int, m.Config.VocabSize),
		wM:      make([]float64, len(m.Weights)),
		wV:      make([]float64, len(m.Weights)),
		biasM:   make([]float64, len(m.Bias)),
		biasV:   make([]float64, len(m.Bias)),
	}
}

func adamUpdate(params, grads, mom, vel []float64, step int, lr float64) {
	c1 := 1 - math.Pow(adamBeta1, float64(step))
	c2 := 1 - math.Pow(adamBeta2, float64(step))
	for i, g := range grads {
		mom[i] = adamBeta1*mom[i] + (1-adamBeta1)*g
		vel[i] = adamBeta2*vel[i] + (1-adamBeta2)*g*g
		params[i] -= lr * (mom[i] / c1) / (math.Sqrt(vel[i]/c2) + adamEpsilon)
	}
}

func (a *adamState) apply(m *Model, g *gradients, lr float64) {
	a.step++
	adamUpdate(m.Weights, g.weights, a.wM, a.wV, a.step, lr)
	adamUpdate(m.Bias, g.bias, a.biasM, a.biasV, a.step, lr)

	dim := m.Config.EmbeddingDim
	for id, row := range g.embeddings {
		a.embStep[id]++
		lo, hi := id*dim, (id+1)*dim
		adamUpdate(m.Embeddings[lo:hi], row, a.embM[lo:hi], a.embV[lo:hi], a.embStep[id], lr)
	}
}

package linear

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// ErrSingleClass is returned when the training labels hold fewer than two classes
var ErrSingleClass = errors.New("training data needs samples of at least 2 classes")

const (
	DefaultC       = 1.0
	DefaultMaxIter = 100
	DefaultTol     = 1e-4
)

// LogisticRegressionConfig configures a LogisticRegression
type LogisticRegressionConfig struct {
	// C is the inverse L2 regularisation strength. If 0, uses DefaultC.
	C float64 `yaml:"c"`
	// MaxIter bounds L-BFGS iterations. If 0, uses DefaultMaxIter.
	MaxIter int `yaml:"max_iter"`
	// Tol is the gradient norm threshold. If 0, uses DefaultTol.
	Tol float64 `yaml:"tol"`
}

// FitInfo reports how the optimiser finished
type FitInfo struct {
	Iterations int
	Status     string
	Loss       float64
	// Err is set when L-BFGS stopped early (e.g. a line search failure) but still produced weights
	Err error
}

// LogisticRegression is a multinomial (softmax) classifier with an L2
// penalty on the weights and unpenalised intercepts.
type LogisticRegression struct {
	c       float64
	maxIter int
	tol     float64

	classes   []int
	nFeatures int
	// params holds one row of nFeatures weights plus an intercept per class
	params []float64
	info   FitInfo
}

// NewLogisticRegression creates an unfitted classifier
func NewLogisticRegression(cfg LogisticRegressionConfig) *LogisticRegression {
	if cfg.C == 0 {
		cfg.C = DefaultC
	}
	if cfg.MaxIter == 0 {
		cfg.MaxIter = DefaultMaxIter
	}
	if cfg.Tol == 0 {
		cfg.Tol = DefaultTol
	}
	return &LogisticRegression{c: cfg.C, maxIter: cfg.MaxIter, tol: cfg.Tol}
}

// Fit trains on rows X with labels y. nFeatures is the row width.
func (m *LogisticRegression) Fit(X []SparseVector, y []int, nFeatures int) error {
	if len(X) != len(y) {
		return fmt.Errorf("length mismatch: %d rows, %d labels", len(X), len(y))
	}

	classSet := make(map[int]struct{})
	for _, label := range y {
		classSet[label] = struct{}{}
	}
	if len(classSet) < 2 {
		return ErrSingleClass
	}
	classes := make([]int, 0, len(classSet))
	for label := range classSet {
		classes = append(classes, label)
	}
	sort.Ints(classes)
	classIndex := make(map[int]int, len(classes))
	for i, label := range classes {
		classIndex[label] = i
	}
	targets := make([]int, len(y))
	for i, label := range y {
		targets[i] = classIndex[label]
	}

	k := len(classes)
	stride := nFeatures + 1
	n := float64(len(X))
	alpha := 1 / (m.c * n)

	// Mean cross-entropy plus alpha/2 * ||W||^2
	lossAndGrad := func(grad, x []float64) float64 {
		if grad != nil {
			for i := range grad {
				grad[i] = 0
			}
		}
		logits := make([]float64, k)
		var loss float64
		for i, row := range X {
			for c := 0; c < k; c++ {
				w := x[c*stride : c*stride+nFeatures]
				logits[c] = row.Dot(w) + x[c*stride+nFeatures]
			}
			lse := floats.LogSumExp(logits)
			loss += lse - logits[targets[i]]
			if grad == nil {
				continue
			}
			for c := 0; c < k; c++ {
				g := math.Exp(logits[c] - lse)
				if c == targets[i] {
					g--
				}
				g /= n
				base := c * stride
				for j, idx := range row.Indices {
					grad[base+idx] += g * row.Values[j]
				}
				grad[base+nFeatures] += g
			}
		}
		loss /= n

		var penalty float64
		for c := 0; c < k; c++ {
			for j := 0; j < nFeatures; j++ {
				w := x[c*stride+j]
				penalty += w * w
				if grad != nil {
					grad[c*stride+j] += alpha * w
				}
			}
		}
		return loss + 0.5*alpha*penalty
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 { return lossAndGrad(nil, x) },
		Grad: func(grad, x []float64) { lossAndGrad(grad, x) },
	}
	settings := &optimize.Settings{
		MajorIterations:   m.maxIter,
		GradientThreshold: m.tol,
	}

	result, err := optimize.Minimize(problem, make([]float64, k*stride), settings, &optimize.LBFGS{})
	if result == nil || result.X == nil {
		if err == nil {
			err = errors.New("optimizer returned no result")
		}
		return fmt.Errorf("failed to fit logistic regression: %w", err)
	}

	m.classes = classes
	m.nFeatures = nFeatures
	m.params = result.X
	m.info = FitInfo{
		Iterations: result.Stats.MajorIterations,
		Status:     result.Status.String(),
		Loss:       result.F,
		Err:        err,
	}
	return nil
}

// Info describes the last Fit
func (m *LogisticRegression) Info() FitInfo {
	return m.info
}

// Classes returns the sorted class labels seen during Fit
func (m *LogisticRegression) Classes() []int {
	return m.classes
}

func (m *LogisticRegression) logits(row SparseVector) []float64 {
	stride := m.nFeatures + 1
	out := make([]float64, len(m.classes))
	for c := range m.classes {
		out[c] = row.Dot(m.params[c*stride:c*stride+m.nFeatures]) + m.params[c*stride+m.nFeatures]
	}
	return out
}

// PredictProba returns per-class probabilities in Classes order
func (m *LogisticRegression) PredictProba(X []SparseVector) ([][]float64, error) {
	if m.params == nil {
		return nil, ErrNotFitted
	}
	probs := make([][]float64, len(X))
	for i, row := range X {
		logits := m.logits(row)
		lse := floats.LogSumExp(logits)
		for c := range logits {
			logits[c] = math.Exp(logits[c] - lse)
		}
		probs[i] = logits
	}
	return probs, nil
}

// Predict returns the most likely class label per row; ties go to the lower label
func (m *LogisticRegression) Predict(X []SparseVector) ([]int, error) {
	if m.params == nil {
		return nil, ErrNotFitted
	}
	preds := make([]int, len(X))
	for i, row := range X {
		logits := m.logits(row)
		best := 0
		for c := 1; c < len(logits); c++ {
			if logits[c] > logits[best] {
				best = c
			}
		}
		preds[i] = m.classes[best]
	}
	return preds, nil
}

package results

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/FrenchMajesty/newsbench/experiment"
	"github.com/google/uuid"
)

// StrategySummary aggregates one strategy's sweep
type StrategySummary struct {
	Strategy      string        `json:"strategy"`
	Runs          int           `json:"runs"`
	BestPortion   float64       `json:"best_portion"`
	BestAccuracy  float64       `json:"best_accuracy"`
	MeanAccuracy  float64       `json:"mean_accuracy"`
	TotalDuration time.Duration `json:"total_duration"`
}

// Summarize groups results by strategy, in order of first appearance
func Summarize(results []experiment.Result) []StrategySummary {
	index := make(map[string]int)
	var summaries []StrategySummary
	for _, r := range results {
		i, ok := index[r.Strategy]
		if !ok {
			i = len(summaries)
			index[r.Strategy] = i
			summaries = append(summaries, StrategySummary{Strategy: r.Strategy, BestAccuracy: -1})
		}
		s := &summaries[i]
		s.Runs++
		s.MeanAccuracy += r.Accuracy
		s.TotalDuration += r.Duration
		if r.Accuracy > s.BestAccuracy {
			s.BestAccuracy = r.Accuracy
			s.BestPortion = r.Portion
		}
	}
	for i := range summaries {
		summaries[i].MeanAccuracy /= float64(summaries[i].Runs)
	}
	return summaries
}

func uniqueName(prefix string) string {
	timestamp := time.Now().Format("20060102_150405")
	random := uuid.New().String()[:8]
	return fmt.Sprintf("%s_%s_%s.json", prefix, timestamp, random)
}

func writeJSON(dir, prefix string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, uniqueName(prefix))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// SaveResults writes results to a uniquely named JSON file in dir
func SaveResults(dir string, results []experiment.Result) (string, error) {
	return writeJSON(dir, "results", results)
}

// SaveSummary writes the per-strategy summary of results to dir
func SaveSummary(dir string, results []experiment.Result) (string, error) {
	return writeJSON(dir, "metrics", Summarize(results))
}

// JSONRecorder buffers results for a single JSON dump at the end of a run
type JSONRecorder struct {
	dir string

	mu      sync.Mutex
	results []experiment.Result
}

var _ experiment.Recorder = (*JSONRecorder)(nil)

// NewJSONRecorder creates a recorder writing into dir
func NewJSONRecorder(dir string) *JSONRecorder {
	return &JSONRecorder{dir: dir}
}

// Record implements experiment.Recorder
func (r *JSONRecorder) Record(ctx context.Context, result experiment.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	return nil
}

// Results returns the buffered results in recording order
func (r *JSONRecorder) Results() []experiment.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]experiment.Result, len(r.results))
	copy(out, r.results)
	return out
}

// Flush writes the results and their summary. It returns the written paths.
// Nothing is written when no result was recorded.
func (r *JSONRecorder) Flush() ([]string, error) {
	results := r.Results()
	if len(results) == 0 {
		return nil, nil
	}
	resultsPath, err := SaveResults(r.dir, results)
	if err != nil {
		return nil, fmt.Errorf("failed to save results: %w", err)
	}
	summaryPath, err := SaveSummary(r.dir, results)
	if err != nil {
		return []string{resultsPath}, fmt.Errorf("failed to save summary: %w", err)
	}
	return []string{resultsPath, summaryPath}, nil
}

package experiment

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPortions is the training fraction sweep
var DefaultPortions = []float64{0.1, 0.5, 1.0}

// Strategy trains (if needed) on a portion of the corpus and returns test accuracy
type Strategy interface {
	Name() string
	Run(ctx context.Context, portion float64) (float64, error)
}

// MetricsRunner is implemented by strategies that report more than accuracy
type MetricsRunner interface {
	RunWithMetrics(ctx context.Context, portion float64) (float64, map[string]float64, error)
}

// Titled strategies provide the heading printed before their sweep
type Titled interface {
	Title() string
}

// Result is one (strategy, portion) measurement
type Result struct {
	RunID     string             `json:"run_id"`
	Strategy  string             `json:"strategy"`
	Portion   float64            `json:"portion"`
	Accuracy  float64            `json:"accuracy"`
	Duration  time.Duration      `json:"duration"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// Recorder receives every result as soon as it is measured
type Recorder interface {
	Record(ctx context.Context, result Result) error
}

// Config configures a Driver
type Config struct {
	// Portions to sweep, in order. If empty, uses DefaultPortions.
	Portions []float64
	// ChartsDir receives one PNG per strategy. If empty, no charts are rendered.
	ChartsDir string
	// Out receives the console report. If nil, uses os.Stdout.
	Out       io.Writer
	Recorders []Recorder
	Logger    *zap.Logger
}

func (c *Config) applyDefaults() {
	if len(c.Portions) == 0 {
		c.Portions = DefaultPortions
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Driver sweeps every strategy over every portion
type Driver struct {
	strategies []Strategy
	cfg        Config
	logger     *zap.Logger
}

// NewDriver creates a driver for strategies, run in the given order
func NewDriver(strategies []Strategy, cfg Config) (*Driver, error) {
	if len(strategies) == 0 {
		return nil, fmt.Errorf("no strategies to run")
	}
	for i, s := range strategies {
		if s == nil {
			return nil, fmt.Errorf("strategy %d is nil", i)
		}
	}
	cfg.applyDefaults()
	for _, p := range cfg.Portions {
		if p <= 0 || p > 1 {
			return nil, fmt.Errorf("portion %v is outside (0, 1]", p)
		}
	}

	return &Driver{strategies: strategies, cfg: cfg, logger: cfg.Logger}, nil
}

// Run executes the sweep strategy by strategy, rendering each strategy's
// chart once its portions are done. The first error stops the sweep; the
// results gathered so far are returned with it.
func (d *Driver) Run(ctx context.Context) ([]Result, error) {
	runID := uuid.New().String()
	var results []Result

	for i, strategy := range d.strategies {
		if i > 0 {
			fmt.Fprintln(d.cfg.Out)
		}
		fmt.Fprintf(d.cfg.Out, "%s results:\n", title(strategy))

		series := make([]Result, 0, len(d.cfg.Portions))
		for _, portion := range d.cfg.Portions {
			fmt.Fprintf(d.cfg.Out, "Portion: %v\n", portion)

			result, err := d.runOne(ctx, strategy, portion)
			if err != nil {
				return results, fmt.Errorf("%s at portion %v: %w", strategy.Name(), portion, err)
			}
			result.RunID = runID
			fmt.Fprintln(d.cfg.Out, result.Accuracy)

			for _, rec := range d.cfg.Recorders {
				if err := rec.Record(ctx, result); err != nil {
					return results, fmt.Errorf("failed to record result: %w", err)
				}
			}
			series = append(series, result)
			results = append(results, result)
		}

		if d.cfg.ChartsDir != "" {
			path, err := RenderChart(d.cfg.ChartsDir, i+1, strategy.Name(), series)
			if err != nil {
				return results, err
			}
			d.logger.Info("chart written", zap.String("strategy", strategy.Name()), zap.String("path", path))
		}
	}
	return results, nil
}

func (d *Driver) runOne(ctx context.Context, strategy Strategy, portion float64) (Result, error) {
	start := time.Now()
	result := Result{Strategy: strategy.Name(), Portion: portion, Timestamp: start.UTC()}

	var err error
	if mr, ok := strategy.(MetricsRunner); ok {
		result.Accuracy, result.Metrics, err = mr.RunWithMetrics(ctx, portion)
	} else {
		result.Accuracy, err = strategy.Run(ctx, portion)
	}
	if err != nil {
		return Result{}, err
	}
	result.Duration = time.Since(start)

	d.logger.Debug("portion finished",
		zap.String("strategy", result.Strategy),
		zap.Float64("portion", portion),
		zap.Float64("accuracy", result.Accuracy),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func title(s Strategy) string {
	if t, ok := s.(Titled); ok {
		return t.Title()
	}
	return s.Name()
}

package experiment

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

type palette struct {
	points color.Color
	line   color.Color
}

// palettes cycle by model number
var palettes = []palette{
	{points: color.RGBA{R: 0, G: 128, B: 128, A: 255}, line: color.RGBA{R: 32, G: 178, B: 170, A: 255}},
	{points: color.RGBA{R: 102, G: 51, B: 153, A: 255}, line: color.RGBA{R: 147, G: 112, B: 219, A: 255}},
	{points: color.RGBA{R: 255, G: 99, B: 71, A: 255}, line: color.RGBA{R: 255, G: 160, B: 122, A: 255}},
}

// ChartTitle is the title of the n-th strategy's chart (1-based)
func ChartTitle(n int) string {
	return fmt.Sprintf("Model #%d: accuracy as a function of portions", n)
}

// NewChart builds the accuracy-vs-portion plot: one point per result and
// a line through them in sweep order.
func NewChart(n int, results []Result) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = ChartTitle(n)
	p.X.Label.Text = "portion"
	p.Y.Label.Text = "accuracy"

	xys := make(plotter.XYs, len(results))
	for i, r := range results {
		xys[i].X = r.Portion
		xys[i].Y = r.Accuracy
	}

	colors := palettes[(n-1+len(palettes))%len(palettes)]
	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return nil, fmt.Errorf("failed to build chart series: %w", err)
	}
	line.Color = colors.line
	points.Color = colors.points
	points.Shape = draw.CircleGlyph{}
	points.Radius = vg.Points(3)

	p.Add(line, points)
	p.Legend.Add("accuracy", line)
	p.Legend.Top = false
	p.Legend.Left = false
	return p, nil
}

// RenderChart writes the n-th strategy's chart as a PNG under dir and
// returns its path.
func RenderChart(dir string, n int, strategy string, results []Result) (string, error) {
	p, err := NewChart(n, results)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create charts dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("model-%d-%s.png", n, strategy))
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return "", fmt.Errorf("failed to save chart: %w", err)
	}
	return path, nil
}

// Package plot renders learning curves of simulated episodes as an HTML page.
package plot

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/pkg/errors"
)

var ErrNoSeries = errors.New("no series to plot")

// Series is the per-episode history of one run.
type Series struct {
	Name    string
	Returns []float64
	Steps   []int
}

// MovingAverage smooths values over the trailing window. The first entries
// average over the values seen so far.
func MovingAverage(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		out[i] = sum / float64(min(i+1, window))
	}
	return out
}

// LearningCurves writes a page with two line charts, smoothed returns and
// smoothed episode lengths, with one line per series.
func LearningCurves(w io.Writer, title string, window int, series ...Series) error {
	if len(series) == 0 {
		return ErrNoSeries
	}
	episodes := 0
	for _, s := range series {
		episodes = max(episodes, len(s.Returns), len(s.Steps))
	}
	xs := make([]string, episodes)
	for i := range xs {
		xs[i] = fmt.Sprintf("%d", i+1)
	}

	returns := newLine(title+": return", window, xs)
	steps := newLine(title+": steps", window, xs)
	for _, s := range series {
		returns.AddSeries(s.Name, lineData(MovingAverage(s.Returns, window)))

		lengths := make([]float64, len(s.Steps))
		for i, n := range s.Steps {
			lengths[i] = float64(n)
		}
		steps.AddSeries(s.Name, lineData(MovingAverage(lengths, window)))
	}

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(returns, steps)
	return errors.Wrap(page.Render(w), "render learning curves")
}

// WriteFile renders LearningCurves into path, creating its directory.
func WriteFile(path, title string, window int, series ...Series) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := LearningCurves(f, title, window, series...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newLine(title string, window int, xs []string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("moving average over %d episodes", window),
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)
	line.SetXAxis(xs)
	return line
}

func lineData(values []float64) []opts.LineData {
	items := make([]opts.LineData, 0, len(values))
	for _, v := range values {
		items = append(items, opts.LineData{Value: v})
	}
	return items
}

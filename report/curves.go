// Package report renders training diagnostics.
package report

import (
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

// Plot size.
var (
	Width  = 8 * vg.Inch
	Height = 5 * vg.Inch
)

// LearningCurve plots every series of history (metric name → value per
// round) against the 1-based round number and saves it to path. The
// format follows the extension (.png, .svg, .pdf).
func LearningCurve(path, title string, history map[string][]float64) error {
	names := make([]string, 0, len(history))
	for name, v := range history {
		if len(v) > 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return errors.NewValueError("LearningCurve", "no evaluation history")
	}
	sort.Strings(names)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "round"
	p.Y.Label.Text = "rmse"
	p.Add(plotter.NewGrid())

	for i, name := range names {
		values := history[name]
		pts := make(plotter.XYs, len(values))
		for r, v := range values {
			pts[r].X = float64(r + 1)
			pts[r].Y = v
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "plot %s", name)
		}
		line.LineStyle.Color = plotutil.Color(i)
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(name, line)
	}
	p.Legend.Top = true

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	if err := p.Save(Width, Height, path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}

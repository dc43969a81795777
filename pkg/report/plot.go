package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"rockdissolution/internal/models"
)

// PlotTable draws every column of t except xColumn as a line against
// xColumn and saves the chart to path. The image format follows the
// extension (.png, .svg, .pdf).
func PlotTable(t *Table, xColumn, title, path string) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.Rows() == 0 {
		return fmt.Errorf("%w: %q has no rows to plot", ErrEmptyTable, t.Name)
	}
	x, ok := t.Column(xColumn)
	if !ok {
		return fmt.Errorf("%w: %q has no column %q", ErrEmptyTable, t.Name, xColumn)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xColumn
	p.Y.Label.Text = "Voxels"

	series := 0
	for _, c := range t.Columns {
		if c.Name == xColumn {
			continue
		}
		pts := make(plotter.XYs, len(c.Values))
		for i, v := range c.Values {
			pts[i] = plotter.XY{X: float64(x.Values[i]), Y: float64(v)}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(series)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(c.Name, line)
		series++
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("%w: save plot %s: %v", models.ErrIOFailure, path, err)
	}
	return nil
}

// Package skyplot draws a skyline plot: the median relative genetic
// diversity through time and its 95% interval.
package skyplot

import (
	"errors"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"bitbucket.org/Davydov/bsky/skyline"
)

// BandColor is the fill color of the 95% interval.
var BandColor = color.RGBA{127, 188, 165, 255}

// Draw saves a step plot of band over the windows. The image format
// is taken from the file extension (png, svg, pdf, ...). Windows
// without covered samples are left out.
func Draw(fileName string, ws []skyline.Window, band []skyline.Summary) error {
	if len(ws) != len(band) {
		return errors.New("number of windows and summaries differ")
	}

	var median, upper, lower plotter.XYs
	for k, w := range ws {
		s := band[k]
		if s.N == 0 {
			continue
		}
		median = append(median, plotter.XY{X: w.Start, Y: s.Median}, plotter.XY{X: w.End, Y: s.Median})
		upper = append(upper, plotter.XY{X: w.Start, Y: s.Upper}, plotter.XY{X: w.End, Y: s.Upper})
		lower = append(lower, plotter.XY{X: w.Start, Y: s.Lower}, plotter.XY{X: w.End, Y: s.Lower})
	}
	if len(median) == 0 {
		return errors.New("no window is covered by the trees, nothing to plot")
	}

	p := plot.New()
	p.X.Label.Text = "date"
	p.Y.Label.Text = "relative genetic diversity"

	// upper bound forward, lower bound backward
	outline := make(plotter.XYs, 0, len(upper)+len(lower))
	outline = append(outline, upper...)
	for i := len(lower) - 1; i >= 0; i-- {
		outline = append(outline, lower[i])
	}
	poly, err := plotter.NewPolygon(outline)
	if err != nil {
		return err
	}
	poly.Color = BandColor
	poly.LineStyle.Width = 0

	line, err := plotter.NewLine(median)
	if err != nil {
		return err
	}

	p.Add(poly, line)
	p.Legend.Add("median", line)
	p.Legend.Add("95% interval", poly)

	return p.Save(6*vg.Inch, 4*vg.Inch, fileName)
}

package report

import (
	"image/color"
	"io"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/nvr-ai/go-track/tracking"
)

var pathColor = color.RGBA{R: 200, G: 30, B: 30, A: 255}

// segments splits a trajectory into runs of consecutive detections. Points
// use image coordinates with Y flipped so row 0 is drawn at the top.
func segments(t tracking.Trajectory, height int) []plotter.XYs {
	var (
		out []plotter.XYs
		cur plotter.XYs
	)
	for _, c := range t {
		if !c.Present {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: float64(c.Col), Y: float64(height - 1 - c.Row)})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// Path builds a plot of the animal's path. Detection gaps break the line.
func Path(t tracking.Trajectory, height, width int, title string) (*plot.Plot, error) {
	if height <= 0 || width <= 0 {
		return nil, ErrEmptyMap
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Column (px)"
	p.Y.Label.Text = "Row from bottom (px)"
	p.X.Min, p.X.Max = 0, float64(width-1)
	p.Y.Min, p.Y.Max = 0, float64(height-1)
	p.Add(plotter.NewGrid())

	for _, seg := range segments(t, height) {
		if len(seg) == 1 {
			sc, err := plotter.NewScatter(seg)
			if err != nil {
				return nil, errors.Wrap(err, "report: path point")
			}
			sc.GlyphStyle.Color = pathColor
			sc.GlyphStyle.Radius = vg.Points(1.5)
			p.Add(sc)
			continue
		}
		line, err := plotter.NewLine(seg)
		if err != nil {
			return nil, errors.Wrap(err, "report: path line")
		}
		line.Color = pathColor
		line.Width = vg.Points(1)
		p.Add(line)
	}
	return p, nil
}

// WritePath renders the trajectory path plot.
func WritePath(w io.Writer, t tracking.Trajectory, height, width int, config PlotConfig) error {
	p, err := Path(t, height, width, config.Title)
	if err != nil {
		return err
	}
	return save(p, w, height, width, config)
}

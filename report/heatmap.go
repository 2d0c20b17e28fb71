// Package report - Static run reports: occupancy heatmap and trajectory path
// plots rendered with gonum/plot, and the per-frame trajectory CSV table.
package report

import (
	"fmt"
	"image/color"
	"io"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/nvr-ai/go-track/tracking"
)

// ErrEmptyMap is returned when a map has no cells.
var ErrEmptyMap = errors.New("report: empty map")

// PlotConfig contains the output parameters of a plot image.
type PlotConfig struct {
	// Title is drawn above the plot.
	Title string `json:"title" yaml:"title"`
	// Width is the image width in inches. The height follows the map's aspect
	// ratio.
	Width float64 `json:"width" yaml:"width"`
	// Format is the image format, one of png, jpg, svg, pdf or eps.
	Format string `json:"format" yaml:"format"`
	// Colors is the number of palette steps of a heatmap.
	Colors int `json:"colors" yaml:"colors"`
}

// DefaultPlotConfig returns a default configuration for report plots.
func DefaultPlotConfig() PlotConfig {
	return PlotConfig{
		Title:  "Occupancy time (frames)",
		Width:  8,
		Format: "png",
		Colors: 16,
	}
}

// grid adapts an image-oriented matrix to plotter.GridXYZ. Image row 0 is
// drawn at the top.
type grid struct {
	m mat.Matrix
}

func (g grid) Dims() (c, r int) {
	r, c = g.m.Dims()
	return c, r
}

func (g grid) Z(c, r int) float64 {
	rows, _ := g.m.Dims()
	return g.m.At(rows-1-r, c)
}

func (g grid) X(c int) float64 { return float64(c) }

func (g grid) Y(r int) float64 { return float64(r) }

// Heatmap builds a heatmap plot of a per-pixel map.
//
// Arguments:
//   - m: Rows are image rows, columns are image columns.
//   - config: Title and palette size.
//
// Returns:
//   - *plot.Plot: The plot.
//   - error: ErrEmptyMap.
func Heatmap(m mat.Matrix, config PlotConfig) (*plot.Plot, error) {
	rows, cols := m.Dims()
	if rows == 0 || cols == 0 {
		return nil, ErrEmptyMap
	}
	if config.Colors < 2 {
		config.Colors = 2
	}

	hm := plotter.NewHeatMap(grid{m: m}, palette.Heat(config.Colors, 1))
	if hm.Min == hm.Max {
		hm.Max = hm.Min + 1
	}

	p := plot.New()
	p.Title.Text = config.Title
	p.X.Label.Text = "Column (px)"
	p.Y.Label.Text = fmt.Sprintf("Row from bottom (px, %d rows)", rows)
	p.BackgroundColor = color.White
	p.Add(hm)
	return p, nil
}

// WriteHeatmap renders the occupancy-time map of a run.
//
// Arguments:
//   - w: Destination of the encoded image.
//   - maps: The run's maps.
//   - config: Image parameters.
//
// Returns:
//   - error: ErrEmptyMap, an unknown format or a write failure.
//
// @example
// f, _ := os.Create("heatmap.png")
// defer f.Close()
// err := report.WriteHeatmap(f, maps, report.DefaultPlotConfig())
func WriteHeatmap(w io.Writer, maps *tracking.Maps, config PlotConfig) error {
	if maps == nil {
		return ErrEmptyMap
	}
	p, err := Heatmap(maps.Time, config)
	if err != nil {
		return err
	}
	rows, cols := maps.Dims()
	return save(p, w, rows, cols, config)
}

func save(p *plot.Plot, w io.Writer, rows, cols int, config PlotConfig) error {
	if config.Width <= 0 {
		config.Width = DefaultPlotConfig().Width
	}
	if config.Format == "" {
		config.Format = "png"
	}
	width := vg.Length(config.Width) * vg.Inch
	// Leave room for the title and axis labels on top of the map's aspect.
	height := width*vg.Length(rows)/vg.Length(cols) + vg.Inch

	wt, err := p.WriterTo(width, height, config.Format)
	if err != nil {
		return errors.Wrapf(err, "report: %s writer", config.Format)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "report: write plot")
	}
	return nil
}

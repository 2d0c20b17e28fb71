package report

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot/plotter"

	"github.com/nvr-ai/go-track/detector"
	"github.com/nvr-ai/go-track/tracking"
)

func sampleTrajectory() tracking.Trajectory {
	return tracking.Trajectory{
		detector.At(2, 3),
		detector.At(2, 4),
		detector.Absent,
		detector.At(6, 5),
		detector.At(7, 5),
		detector.Absent,
		detector.At(1, 1),
	}
}

func TestWriteHeatmapPNG(t *testing.T) {
	maps, err := tracking.NewMaps(sampleTrajectory(), 10, 16, tracking.GapBreak)
	require.NoError(t, err)

	var buf bytes.Buffer
	cfg := DefaultPlotConfig()
	cfg.Width = 3
	require.NoError(t, WriteHeatmap(&buf, maps, cfg))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	b := img.Bounds()
	assert.Greater(t, b.Dx(), b.Dy(), "wide map gives a wide image")
}

func TestHeatmapConstantMap(t *testing.T) {
	p, err := Heatmap(mat.NewDense(4, 4, nil), DefaultPlotConfig())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, save(p, &buf, 4, 4, PlotConfig{Width: 2, Format: "png"}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestGridFlipsRows(t *testing.T) {
	g := grid{m: mat.NewDense(2, 3, []float64{
		1, 2, 3,
		4, 5, 6,
	})}
	c, r := g.Dims()
	assert.Equal(t, 3, c)
	assert.Equal(t, 2, r)
	assert.Equal(t, 4.0, g.Z(0, 0))
	assert.Equal(t, 3.0, g.Z(2, 1))
}

func TestWriteHeatmapErrors(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, WriteHeatmap(&buf, nil, DefaultPlotConfig()), ErrEmptyMap)

	maps, err := tracking.NewMaps(nil, 4, 4, tracking.GapBreak)
	require.NoError(t, err)
	cfg := DefaultPlotConfig()
	cfg.Format = "bmp"
	assert.Error(t, WriteHeatmap(&buf, maps, cfg))
}

func TestPathSegments(t *testing.T) {
	segs := segments(sampleTrajectory(), 10)
	want := []plotter.XYs{
		{{X: 3, Y: 7}, {X: 4, Y: 7}},
		{{X: 5, Y: 3}, {X: 5, Y: 2}},
		{{X: 1, Y: 8}},
	}
	if diff := cmp.Diff(want, segs); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestWritePath(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultPlotConfig()
	cfg.Title = "Path"
	cfg.Width = 2
	require.NoError(t, WritePath(&buf, sampleTrajectory(), 10, 16, cfg))
	_, err := png.Decode(&buf)
	require.NoError(t, err)

	assert.ErrorIs(t, WritePath(&buf, nil, 0, 16, cfg), ErrEmptyMap)
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTrajectory()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "frame,row,col,present", lines[0])
	assert.Equal(t, "0,2,3,true", lines[1])
	assert.Equal(t, "2,,,false", lines[3])

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, sampleTrajectory(), got)
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "Empty", input: ""},
		{name: "Wrong header", input: "f,r,c,p\n"},
		{name: "Missing column", input: "frame,row,col,present\n0,1,2\n"},
		{name: "Out of order", input: "frame,row,col,present\n1,1,2,true\n"},
		{name: "Bad flag", input: "frame,row,col,present\n0,1,2,maybe\n"},
		{name: "Bad position", input: "frame,row,col,present\n0,x,2,true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrBadCSV)
		})
	}
}

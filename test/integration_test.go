package test

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-track/config"
	"github.com/nvr-ai/go-track/controller"
	"github.com/nvr-ai/go-track/detector"
	"github.com/nvr-ai/go-track/measure"
	"github.com/nvr-ai/go-track/report"
	"github.com/nvr-ai/go-track/store"
	"github.com/nvr-ai/go-track/tracking"
	"github.com/nvr-ai/go-track/util"
	"github.com/nvr-ai/go-track/video"
)

// restThenRun is an empty first frame, ten frames resting at column 20 row
// 15, then five frames moving right two columns per frame.
func restThenRun() []image.Point {
	path := []image.Point{Absent}
	for i := 0; i < 10; i++ {
		path = append(path, image.Pt(20, 15))
	}
	return append(path, Line(image.Pt(22, 15), image.Pt(2, 0), 5)...)
}

func TestTrackAndMeasure(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	gen := NewMockFrameGenerator(60, 40)
	path := restThenRun()

	cfg := config.Default()
	cfg.Video.Subsample = 1
	cfg.Track.CmPerPixel = 0.5
	cfg.Output = config.OutputConfig{
		Heatmap:  filepath.Join(dir, "heatmap.png"),
		CSV:      filepath.Join(dir, "track.csv"),
		Database: filepath.Join(dir, "runs.db"),
	}

	clip, err := video.Prepare(ctx, gen.Sequence(path), video.SourceInfo{FrameRate: 10}, cfg.Video)
	require.NoError(t, err)

	runs, err := store.Open(cfg.Output.Database, nil)
	require.NoError(t, err)
	defer runs.Close()

	ctrl, err := controller.New(cfg, nil)
	require.NoError(t, err)
	ctrl.Store = runs
	res, err := ctrl.Run(ctx, clip, "arena")
	require.NoError(t, err)

	assert.Equal(t, detector.Absent, res.Trajectory[0])
	assert.Equal(t, detector.At(15, 20), res.Trajectory[1])
	assert.Equal(t, detector.At(15, 30), res.Trajectory[15])
	assert.Equal(t, 1, res.Summary.Gaps)
	assert.InDelta(t, 5.0, res.Summary.DistanceCm, 1e-9)

	// Reload the run the way the measurement tool does.
	run, err := runs.LoadRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Trajectory, run.Trajectory)
	maps, err := run.Maps()
	require.NoError(t, err)

	session, err := measure.NewSession(maps, run.FrameRate, run.CmPerPixel, nil)
	require.NoError(t, err)
	start, end, err := measure.ParseSelection("15,10,26,21")
	require.NoError(t, err)
	m, err := session.Select(start, end)
	require.NoError(t, err)

	// Twelve frames inside, two 2 pixel moves ending inside.
	assert.InDelta(t, 1.2, m.Seconds, 1e-9)
	assert.InDelta(t, 2.0, m.Cm, 1e-9)
	assert.Contains(t, m.Caption(), "(15, 10) --> (26, 21)")

	f, err := os.Open(cfg.Output.CSV)
	require.NoError(t, err)
	defer f.Close()
	fromCSV, err := report.ReadCSV(f)
	require.NoError(t, err)
	assert.Equal(t, res.Trajectory, fromCSV)
}

func TestGapPoliciesEndToEnd(t *testing.T) {
	gen := NewMockFrameGenerator(60, 40)
	gen.Wall = 1
	path := Line(image.Pt(15, 15), image.Pt(3, 0), 6)
	path[2] = Absent

	distance := map[tracking.GapPolicy]float64{}
	for _, policy := range []tracking.GapPolicy{tracking.GapBreak, tracking.GapBridge} {
		cfg := config.Default()
		cfg.Video.Subsample = 1
		cfg.Output = config.OutputConfig{}
		cfg.Region.Mode = detector.RegionBorderCrop
		cfg.Track.GapPolicy = policy

		clip, err := video.Prepare(context.Background(), gen.Sequence(path), video.SourceInfo{FrameRate: 5}, cfg.Video)
		require.NoError(t, err)
		ctrl, err := controller.New(cfg, nil)
		require.NoError(t, err)
		res, err := ctrl.Run(context.Background(), clip, "")
		require.NoError(t, err)
		distance[policy] = res.Summary.DistancePixels
	}

	// Break drops the move across the gap, bridge counts it as one 6 pixel step.
	assert.InDelta(t, 9.0, distance[tracking.GapBreak], 1e-9)
	assert.InDelta(t, 15.0, distance[tracking.GapBridge], 1e-9)
}

func TestDirectoryFrameSource(t *testing.T) {
	dir := t.TempDir()
	gen := NewMockFrameGenerator(40, 30)
	path := append([]image.Point{Absent}, Line(image.Pt(10, 10), image.Pt(2, 1), 4)...)
	require.NoError(t, WriteFrames(dir, gen.Sequence(path)))

	frames, err := util.LoadDirectoryImages(dir)
	require.NoError(t, err)
	require.Len(t, frames, len(path))

	cfg := config.Default()
	cfg.Video.Subsample = 1
	cfg.Output = config.OutputConfig{}
	clip, err := video.Prepare(context.Background(), frames, video.SourceInfo{FrameRate: 10}, cfg.Video)
	require.NoError(t, err)

	ctrl, err := controller.New(cfg, nil)
	require.NoError(t, err)
	res, err := ctrl.Run(context.Background(), clip, dir)
	require.NoError(t, err)
	for i, p := range path[1:] {
		assert.Equal(t, detector.At(p.Y, p.X), res.Trajectory[i+1], "frame %d", i+1)
	}
}

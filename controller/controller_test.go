package controller

import (
	"bytes"
	"context"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-track/config"
	"github.com/nvr-ai/go-track/detector"
	"github.com/nvr-ai/go-track/images"
	"github.com/nvr-ai/go-track/profiler"
	"github.com/nvr-ai/go-track/report"
	"github.com/nvr-ai/go-track/store"
	"github.com/nvr-ai/go-track/test"
	"github.com/nvr-ai/go-track/tracking"
	"github.com/nvr-ai/go-track/video"
)

// recordingSink keeps every written frame and fails from failAt on.
type recordingSink struct {
	frames []image.Image
	failAt int
}

func (s *recordingSink) Write(img image.Image) error {
	if s.failAt > 0 && len(s.frames) >= s.failAt {
		return errors.New("sink full")
	}
	s.frames = append(s.frames, img)
	return nil
}

// memoryStore keeps saved runs in memory.
type memoryStore struct {
	runs []*store.Run
	err  error
}

func (m *memoryStore) SaveRun(_ context.Context, run *store.Run) (uuid.UUID, error) {
	if m.err != nil {
		return uuid.Nil, m.err
	}
	run.ID = uuid.New()
	m.runs = append(m.runs, run)
	return run.ID, nil
}

func testConfig(mutate func(*config.Config)) *config.Config {
	cfg := config.Default()
	cfg.Video.Subsample = 1
	cfg.Track.Workers = 2
	cfg.Track.CmPerPixel = 0.5
	cfg.Output = config.OutputConfig{}
	if mutate != nil {
		mutate(cfg)
	}
	return cfg
}

func prepare(t *testing.T, frames []image.Image, cfg *config.Config) *video.Clip {
	t.Helper()
	clip, err := video.Prepare(context.Background(), frames, video.SourceInfo{FrameRate: 10}, cfg.Video)
	require.NoError(t, err)
	return clip
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestRunBorderCrop(t *testing.T) {
	gen := test.NewMockFrameGenerator(40, 30)
	gen.Wall = 1
	path := test.Line(image.Pt(8, 8), image.Pt(2, 1), 8)
	path[3] = test.Absent

	cfg := testConfig(func(c *config.Config) { c.Region.Mode = detector.RegionBorderCrop })
	logger, _ := bufferLogger()
	ctrl, err := New(cfg, logger)
	require.NoError(t, err)
	sink := &recordingSink{}
	runs := &memoryStore{}
	ctrl.Sink = sink
	ctrl.Store = runs

	res, err := ctrl.Run(context.Background(), prepare(t, gen.Sequence(path), cfg), "synthetic")
	require.NoError(t, err)

	require.Len(t, res.Trajectory, len(path))
	for i, p := range path {
		want := detector.At(p.Y, p.X)
		if p == test.Absent {
			want = detector.Absent
		}
		assert.Equal(t, want, res.Trajectory[i], "frame %d", i)
	}
	assert.Equal(t, 38*28, res.Region.Mask.Count())
	assert.Equal(t, 8, res.Summary.Frames)
	assert.Equal(t, 1, res.Summary.Gaps)
	assert.Len(t, sink.frames, 8)
	assert.Equal(t, 8, res.FramesWritten)

	h, w := res.Maps.Dims()
	assert.Equal(t, 30, h)
	assert.Equal(t, 40, w)

	require.Len(t, runs.runs, 1)
	run := runs.runs[0]
	assert.Equal(t, res.RunID, run.ID)
	assert.Equal(t, "synthetic", run.Source)
	assert.Equal(t, 10.0, run.FrameRate)
	assert.Equal(t, 0.5, run.CmPerPixel)
	assert.Equal(t, tracking.GapBreak, run.GapPolicy)
	assert.Equal(t, res.Region.Mask.Count(), run.RegionPixels)
	assert.Contains(t, run.Config, "mode: border-crop")

	var names []string
	for _, s := range ctrl.Profiler.Stages() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		profiler.StageRegion, profiler.StageBuild, profiler.StageMaps,
		profiler.StageRender, profiler.StageOutput,
	}, names)
}

func TestRunSegmentedRegion(t *testing.T) {
	gen := test.NewMockFrameGenerator(60, 40)
	path := append([]image.Point{test.Absent}, gen.Circle(12, 10)...)

	cfg := testConfig(nil)
	ctrl, err := New(cfg, nil)
	require.NoError(t, err)

	res, err := ctrl.Run(context.Background(), prepare(t, gen.Sequence(path), cfg), "")
	require.NoError(t, err)

	// The floor inside the 2 pixel wall, eroded once.
	assert.Equal(t, (60-6)*(40-6), res.Region.Mask.Count())
	assert.Equal(t, detector.Absent, res.Trajectory[0])
	for i, p := range path[1:] {
		assert.Equal(t, detector.At(p.Y, p.X), res.Trajectory[i+1], "frame %d", i+1)
	}
	assert.Equal(t, 0, res.FramesWritten)
	assert.Equal(t, uuid.Nil, res.RunID)
}

func TestRunBlackAnimal(t *testing.T) {
	gen := test.NewMockFrameGenerator(60, 40)
	gen.Black = true
	path := append([]image.Point{test.Absent}, test.Line(image.Pt(15, 12), image.Pt(3, 2), 6)...)

	cfg := testConfig(func(c *config.Config) { c.Video.AnimalColor = video.AnimalBlack })
	ctrl, err := New(cfg, nil)
	require.NoError(t, err)

	res, err := ctrl.Run(context.Background(), prepare(t, gen.Sequence(path), cfg), "")
	require.NoError(t, err)
	for i, p := range path[1:] {
		assert.Equal(t, detector.At(p.Y, p.X), res.Trajectory[i+1], "frame %d", i+1)
	}
}

func TestRunRegionFallback(t *testing.T) {
	// A uniform 10x10 frame is below the region's minimum component size.
	gen := test.NewMockFrameGenerator(10, 10)
	gen.WallLevel = gen.FloorLevel
	frames := gen.Sequence([]image.Point{test.Absent, test.Absent, test.Absent})

	cfg := testConfig(nil)
	ctrl, err := New(cfg, nil)
	require.NoError(t, err)
	_, err = ctrl.Run(context.Background(), prepare(t, frames, cfg), "")
	assert.ErrorIs(t, err, detector.ErrNoValidRegion)

	cfg = testConfig(func(c *config.Config) { c.Region.FallbackToBorderCrop = true })
	logger, buf := bufferLogger()
	ctrl, err = New(cfg, logger)
	require.NoError(t, err)
	res, err := ctrl.Run(context.Background(), prepare(t, frames, cfg), "")
	require.NoError(t, err)
	assert.Equal(t, 64, res.Region.Mask.Count())
	assert.Equal(t, 1.0, res.Summary.GapFraction)
	assert.Contains(t, buf.String(), "falling back to border crop")
	assert.Contains(t, buf.String(), "many frames without detection")
}

func TestRunErrors(t *testing.T) {
	gen := test.NewMockFrameGenerator(40, 30)
	gen.Wall = 1
	path := test.Line(image.Pt(8, 8), image.Pt(1, 1), 5)
	cfg := testConfig(func(c *config.Config) { c.Region.Mode = detector.RegionBorderCrop })
	clip := prepare(t, gen.Sequence(path), cfg)

	t.Run("Empty clip", func(t *testing.T) {
		ctrl, err := New(cfg, nil)
		require.NoError(t, err)
		_, err = ctrl.Run(context.Background(), nil, "")
		assert.ErrorIs(t, err, tracking.ErrEmptyVideo)
		_, err = ctrl.Run(context.Background(), &video.Clip{}, "")
		assert.ErrorIs(t, err, tracking.ErrEmptyVideo)
	})

	t.Run("Sink failure", func(t *testing.T) {
		ctrl, err := New(cfg, nil)
		require.NoError(t, err)
		ctrl.Sink = &recordingSink{failAt: 2}
		res, err := ctrl.Run(context.Background(), clip, "")
		assert.Error(t, err)
		require.NotNil(t, res)
		assert.Equal(t, 2, res.FramesWritten)
	})

	t.Run("Store failure", func(t *testing.T) {
		ctrl, err := New(cfg, nil)
		require.NoError(t, err)
		ctrl.Store = &memoryStore{err: errors.New("disk full")}
		_, err = ctrl.Run(context.Background(), clip, "")
		assert.ErrorContains(t, err, "disk full")
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctrl, err := New(cfg, nil)
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = ctrl.Run(ctx, clip, "")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Mismatched region", func(t *testing.T) {
		other := prepare(t, test.NewMockFrameGenerator(20, 20).Sequence([]image.Point{test.Absent}), cfg)
		bad := *clip
		bad.Gray = []*images.Frame{clip.Gray[0], other.Gray[0]}
		ctrl, err := New(cfg, nil)
		require.NoError(t, err)
		_, err = ctrl.Run(context.Background(), &bad, "")
		assert.ErrorIs(t, err, detector.ErrDimensionMismatch)
	})
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Track.CmPerPixel = -1
	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, config.ErrInvalid)

	ctrl, err := New(nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, ctrl.Profiler)
}

func TestWriteReports(t *testing.T) {
	gen := test.NewMockFrameGenerator(40, 30)
	gen.Wall = 1
	path := test.Line(image.Pt(8, 8), image.Pt(2, 1), 6)
	path[2] = test.Absent

	dir := t.TempDir()
	cfg := testConfig(func(c *config.Config) {
		c.Region.Mode = detector.RegionBorderCrop
		c.Output = config.OutputConfig{
			Heatmap: filepath.Join(dir, "heat.png"),
			Path:    filepath.Join(dir, "path.svg"),
			CSV:     filepath.Join(dir, "track.csv"),
			Region:  filepath.Join(dir, "region.png"),
		}
	})
	ctrl, err := New(cfg, nil)
	require.NoError(t, err)
	res, err := ctrl.Run(context.Background(), prepare(t, gen.Sequence(path), cfg), "")
	require.NoError(t, err)

	for _, name := range []string{"heat.png", "path.svg", "track.csv", "region.png"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}

	f, err := os.Open(filepath.Join(dir, "track.csv"))
	require.NoError(t, err)
	defer f.Close()
	traj, err := report.ReadCSV(f)
	require.NoError(t, err)
	assert.Equal(t, res.Trajectory, traj)

	err = WriteReports(config.OutputConfig{CSV: filepath.Join(dir, "missing", "x.csv")}, res, 30, 40)
	assert.Error(t, err)
}

// Package controller - Runs a tracking job: valid region, trajectory, maps,
// annotated frames, reports and persistence, in that order.
package controller

import (
	"context"
	"image"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-track/config"
	"github.com/nvr-ai/go-track/detector"
	"github.com/nvr-ai/go-track/profiler"
	"github.com/nvr-ai/go-track/store"
	"github.com/nvr-ai/go-track/tracking"
	"github.com/nvr-ai/go-track/video"
)

// FrameSink receives the annotated output frames in order.
type FrameSink interface {
	Write(img image.Image) error
}

// RunStore persists finished runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *store.Run) (uuid.UUID, error)
}

// Result is the outcome of one run.
type Result struct {
	Region     *detector.Region
	Trajectory tracking.Trajectory
	Maps       *tracking.Maps
	Summary    tracking.Summary
	// RunID is set when the run was persisted.
	RunID uuid.UUID
	// FramesWritten counts frames handed to the sink.
	FramesWritten int
}

// Controller runs tracking jobs. Sink, Store and Profiler are optional.
type Controller struct {
	Config   *config.Config
	Sink     FrameSink
	Store    RunStore
	Profiler *profiler.Profiler
	Logger   *slog.Logger
}

// New creates a controller for a validated configuration.
//
// Arguments:
//   - cfg: The run configuration.
//   - logger: Destination for run diagnostics; nil uses slog.Default().
//
// Returns:
//   - *Controller: The controller with a fresh profiler.
//   - error: The configuration's validation error.
func New(cfg *config.Config, logger *slog.Logger) (*Controller, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		Config:   cfg,
		Profiler: profiler.New(profiler.Options{}, logger),
		Logger:   logger,
	}, nil
}

// Run tracks the animal across a prepared clip.
//
// Setup problems (empty clip, no valid region, mismatched frame sizes, bad
// parameters) are returned before any per-frame work. Frames without a
// detection are never fatal; their share is logged and warned about above
// the configured fraction.
//
// Arguments:
//   - ctx: Cancellation for the run.
//   - clip: Frames prepared by the video package.
//   - source: Name of the input, recorded with the persisted run.
//
// Returns:
//   - *Result: Region, trajectory, maps and summary.
//   - error: The first failing stage's error.
//
// @example
// ctrl, _ := controller.New(cfg, logger)
// ctrl.Sink = sink
// res, err := ctrl.Run(ctx, clip, "mouse.mp4")
func (c *Controller) Run(ctx context.Context, clip *video.Clip, source string) (*Result, error) {
	c.defaults()
	cfg := c.Config

	if clip == nil || clip.Len() == 0 {
		return nil, tracking.ErrEmptyVideo
	}
	if c.Sink != nil && len(clip.Color) != clip.Len() {
		return nil, errors.Errorf("controller: clip has %d color and %d gray frames", len(clip.Color), clip.Len())
	}

	region, err := c.region(clip)
	if err != nil {
		return nil, err
	}

	done := c.Profiler.StartStage(profiler.StageBuild)
	builder := tracking.NewBuilder(tracking.BuildConfig{Workers: cfg.Track.Workers}, c.Logger)
	traj, err := builder.Build(ctx, clip.Gray, region, cfg.Segment)
	done()
	if err != nil {
		return nil, errors.Wrap(err, "controller: build trajectory")
	}

	done = c.Profiler.StartStage(profiler.StageMaps)
	maps, err := tracking.NewMaps(traj, clip.Height, clip.Width, cfg.Track.GapPolicy)
	if err != nil {
		done()
		return nil, errors.Wrap(err, "controller: maps")
	}
	summary, err := tracking.Summarize(traj, cfg.Track.GapPolicy, clip.FrameRate, cfg.Track.CmPerPixel)
	done()
	if err != nil {
		return nil, errors.Wrap(err, "controller: summary")
	}
	c.diagnose(summary)

	res := &Result{Region: region, Trajectory: traj, Maps: maps, Summary: summary}

	if c.Sink != nil {
		done = c.Profiler.StartStage(profiler.StageRender)
		res.FramesWritten, err = c.render(ctx, clip, traj)
		done()
		if err != nil {
			return res, err
		}
	}

	done = c.Profiler.StartStage(profiler.StageOutput)
	defer done()
	if err := WriteReports(cfg.Output, res, clip.Height, clip.Width); err != nil {
		return res, err
	}
	if c.Store != nil {
		id, err := c.save(ctx, clip, source, res)
		if err != nil {
			return res, err
		}
		res.RunID = id
		c.Logger.Info("run saved", "id", id, "source", source)
	}
	return res, nil
}

func (c *Controller) defaults() {
	if c.Config == nil {
		c.Config = config.Default()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Profiler == nil {
		c.Profiler = profiler.New(profiler.Options{}, c.Logger)
	}
}

// region estimates the valid region on the first frame.
func (c *Controller) region(clip *video.Clip) (*detector.Region, error) {
	defer c.Profiler.StartStage(profiler.StageRegion)()

	cfg := c.Config.Region
	region, err := detector.EstimateRegion(clip.Gray[0], cfg)
	if errors.Is(err, detector.ErrNoValidRegion) && cfg.FallbackToBorderCrop {
		c.Logger.Warn("no valid floor region, falling back to border crop", "err", err)
		region, err = detector.BorderCrop(clip.Width, clip.Height)
	}
	if err != nil {
		return nil, errors.Wrap(err, "controller: valid region")
	}

	pixels := region.Mask.Count()
	c.Profiler.RecordMetric("region_pixels", float64(pixels))
	c.Logger.Info("valid region",
		"mode", cfg.Mode,
		"pixels", pixels,
		"height", region.Height,
		"width", region.Width)
	return region, nil
}

// diagnose logs the detection coverage of the run.
func (c *Controller) diagnose(s tracking.Summary) {
	c.Profiler.RecordMetric("frames", float64(s.Frames))
	c.Profiler.RecordMetric("detections", float64(s.Detections))
	c.Profiler.RecordMetric("gap_fraction", s.GapFraction)

	attrs := []any{
		"frames", s.Frames,
		"gaps", s.Gaps,
		"gap_fraction", s.GapFraction,
		"distance_cm", s.DistanceCm,
		"duration_s", s.DurationSeconds,
	}
	if s.GapFraction > c.Config.Track.GapWarnFraction {
		c.Logger.Warn("many frames without detection", attrs...)
		return
	}
	c.Logger.Info("trajectory built", attrs...)
}

// render streams the annotated frames to the sink.
func (c *Controller) render(ctx context.Context, clip *video.Clip, traj tracking.Trajectory) (int, error) {
	r, err := tracking.NewRenderer(traj, clip.Width, clip.Height, c.Config.Render)
	if err != nil {
		return 0, errors.Wrap(err, "controller: renderer")
	}
	for i := 0; i < r.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		frame, err := r.Frame(i, clip.Color[i])
		if err != nil {
			return i, errors.Wrapf(err, "controller: render frame %d", i)
		}
		if err := c.Sink.Write(frame); err != nil {
			return i, errors.Wrapf(err, "controller: write frame %d", i)
		}
	}
	return r.Len(), nil
}

func (c *Controller) save(ctx context.Context, clip *video.Clip, source string, res *Result) (uuid.UUID, error) {
	data, err := c.Config.Marshal()
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "controller: marshal config")
	}
	run := &store.Run{
		Source:       source,
		FrameRate:    clip.FrameRate,
		CmPerPixel:   c.Config.Track.CmPerPixel,
		Width:        clip.Width,
		Height:       clip.Height,
		GapPolicy:    c.Config.Track.GapPolicy,
		RegionPixels: res.Region.Mask.Count(),
		Config:       string(data),
		Trajectory:   res.Trajectory,
	}
	id, err := c.Store.SaveRun(ctx, run)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "controller: save run")
	}
	return id, nil
}

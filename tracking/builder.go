package tracking

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-track/detector"
	"github.com/nvr-ai/go-track/images"
)

// BuildConfig contains the worker pool parameters of trajectory building.
type BuildConfig struct {
	// Workers bounds concurrent frame detections; 0 uses runtime.NumCPU.
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultBuildConfig returns a default configuration for trajectory building.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{Workers: runtime.NumCPU()}
}

// Builder runs detection across the frames of one video.
type Builder struct {
	config BuildConfig
	logger *slog.Logger
}

// NewBuilder creates a trajectory builder.
//
// Arguments:
//   - config: Worker pool parameters.
//   - logger: Destination for run diagnostics; nil uses slog.Default().
//
// Returns:
//   - *Builder: The builder.
func NewBuilder(config BuildConfig, logger *slog.Logger) *Builder {
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{config: config, logger: logger}
}

// Build detects the animal in every frame and returns the ordered trajectory.
//
// Every frame is checked against the region before any detection starts, so
// malformed input fails fast. Detection then runs as a scatter/gather over a
// bounded pool: each worker reads its own frame plus the shared read-only
// region and writes only its own result slot, which keeps the trajectory in
// frame order. Cancelling ctx stops submitting the remaining frames.
//
// Arguments:
//   - ctx: Cancellation for the run.
//   - frames: Grayscale frames in video order.
//   - region: The video's valid region.
//   - seg: Segmentation parameters.
//
// Returns:
//   - Trajectory: One centroid per frame, absent where nothing was detected.
//   - error: ErrEmptyVideo, ErrDimensionMismatch, ErrNoValidRegion,
//     ErrInvalidConfig or the context error.
//
// @example
// b := tracking.NewBuilder(tracking.DefaultBuildConfig(), logger)
// traj, err := b.Build(ctx, frames, region, detector.DefaultSegmentConfig())
func (b *Builder) Build(ctx context.Context, frames []*images.Frame, region *detector.Region, seg detector.SegmentConfig) (Trajectory, error) {
	if len(frames) == 0 {
		return nil, ErrEmptyVideo
	}
	for i, f := range frames {
		if f == nil {
			return nil, errors.Wrapf(ErrEmptyVideo, "frame %d is nil", i)
		}
		if err := region.Check(f.Width, f.Height); err != nil {
			return nil, errors.Wrapf(err, "frame %d", i)
		}
	}
	det, err := detector.New(region, seg)
	if err != nil {
		return nil, err
	}

	out := make(Trajectory, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.config.Workers)
	for i, f := range frames {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			c, err := det.Detect(f)
			if err != nil {
				return errors.Wrapf(err, "frame %d", i)
			}
			out[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.logger.Debug("trajectory built",
		slog.Int("frames", len(out)),
		slog.Int("detections", out.Detections()),
		slog.Int("workers", b.config.Workers))
	return out, nil
}

package video

import (
	"context"
	"image"
	"math"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-track/images"
	"github.com/nvr-ai/go-track/util"
)

// SourceInfo describes the decoded frames handed to Prepare.
type SourceInfo struct {
	// FrameRate is the container frame rate, 0 when unknown.
	FrameRate float64
	// Duration is the container duration in seconds, 0 when unknown.
	Duration float64
}

// Clip is a prepared video ready for tracking.
type Clip struct {
	// Color holds the kept frames after downsampling, in their original
	// colors, for drawing the output video.
	Color []image.Image
	// Gray holds the segmentation input in [0,1], inverted for dark animals.
	Gray []*images.Frame
	// FrameRate is the effective rate of the kept frames.
	FrameRate float64
	// SourceFrameRate is the corrected source rate before subsampling.
	SourceFrameRate float64
	// StartFrame is the source index of the first kept frame.
	StartFrame int
	Width      int
	Height     int
}

// Len returns the number of kept frames.
func (c *Clip) Len() int { return len(c.Gray) }

// Prepare trims, subsamples, downsamples and converts decoded frames.
//
// A source rate above MaxFrameRate is treated as bogus container metadata and
// replaced by round(frames / duration). Start and end offsets are converted
// to frames with the corrected rate. Conversion runs as a scatter/gather over
// a bounded pool where each worker writes only its own output slot.
//
// Arguments:
//   - ctx: Cancellation for the conversion.
//   - frames: Decoded frames in order.
//   - info: Source frame rate and duration.
//   - opts: Preparation options.
//
// Returns:
//   - *Clip: The prepared clip.
//   - error: ErrInvalidOptions, ErrNoFrameRate, ErrEmptyClip or the context
//     error.
//
// @example
// clip, err := video.Prepare(ctx, frames, video.SourceInfo{FrameRate: 30}, video.DefaultOptions())
func Prepare(ctx context.Context, frames []image.Image, info SourceInfo, opts Options) (*Clip, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, ErrEmptyClip
	}

	fps, err := EffectiveFrameRate(len(frames), info, opts)
	if err != nil {
		return nil, err
	}

	start, end, err := trimRange(len(frames), fps, opts)
	if err != nil {
		return nil, err
	}

	var keep []int
	for i := start; i < end; i += opts.Subsample {
		keep = append(keep, i)
	}

	clip := &Clip{
		Color:           make([]image.Image, len(keep)),
		Gray:            make([]*images.Frame, len(keep)),
		FrameRate:       fps / float64(opts.Subsample),
		SourceFrameRate: fps,
		StartFrame:      start,
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for slot, src := range keep {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			img := images.Downsample(frames[src], opts.DownRatio)
			gray := images.FromImage(img)
			if opts.AnimalColor == AnimalBlack {
				gray = images.Invert(gray, 1)
			}
			clip.Color[slot] = img
			clip.Gray[slot] = gray
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clip.Width, clip.Height = clip.Gray[0].Width, clip.Gray[0].Height
	for i, f := range clip.Gray {
		if f.Width != clip.Width || f.Height != clip.Height {
			return nil, errors.Errorf("video: frame %d is %dx%d, first frame is %dx%d", keep[i], f.Width, f.Height, clip.Width, clip.Height)
		}
	}
	return clip, nil
}

// trimRange converts the Start and End time codes to a frame range [start, end)
// at the given rate.
func trimRange(frames int, fps float64, opts Options) (int, int, error) {
	start, end := 0, frames
	if opts.Start != "" {
		d, err := util.ParseTimecode(opts.Start)
		if err != nil {
			return 0, 0, errors.Wrap(ErrInvalidOptions, err.Error())
		}
		start = int(d.Seconds() * fps)
	}
	if opts.End != "" {
		d, err := util.ParseTimecode(opts.End)
		if err != nil {
			return 0, 0, errors.Wrap(ErrInvalidOptions, err.Error())
		}
		end = min(int(d.Seconds()*fps), frames)
	}
	if start >= end {
		return 0, 0, errors.Wrapf(ErrEmptyClip, "frames [%d,%d) of %d", start, end, frames)
	}
	return start, end, nil
}

// EffectiveFrameRate resolves the source frame rate before subsampling.
func EffectiveFrameRate(frames int, info SourceInfo, opts Options) (float64, error) {
	fps := info.FrameRate
	if opts.FrameRate > 0 {
		return opts.FrameRate, nil
	}
	if !(fps > 0) {
		return 0, ErrNoFrameRate
	}
	if opts.MaxFrameRate > 0 && fps > opts.MaxFrameRate && info.Duration > 0 {
		fps = math.Round(float64(frames) / info.Duration)
		if fps < 1 {
			return 0, errors.Wrapf(ErrNoFrameRate, "%d frames over %vs", frames, info.Duration)
		}
	}
	return fps, nil
}

package video

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Info describes a video file.
type Info struct {
	Width      int
	Height     int
	FrameRate  float64
	TotalFrame int
	Codec      string
}

// NewInfoFromPath reads the container metadata of a video file.
func NewInfoFromPath(path string) (*Info, error) {
	capture, err := gocv.OpenVideoCapture(path)
	if err != nil {
		return nil, errors.Wrapf(err, "video: open %s", path)
	}
	defer capture.Close()
	if !capture.IsOpened() {
		return nil, errors.Errorf("video: cannot open %s", path)
	}

	return &Info{
		Width:      int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(capture.Get(gocv.VideoCaptureFrameHeight)),
		FrameRate:  capture.Get(gocv.VideoCaptureFPS),
		TotalFrame: int(capture.Get(gocv.VideoCaptureFrameCount)),
		Codec:      capture.CodecString(),
	}, nil
}

// Decode reads every frame of a video file.
//
// Arguments:
//   - ctx: Cancellation, checked between frames.
//   - path: The video file.
//
// Returns:
//   - []image.Image: Decoded RGBA frames.
//   - SourceInfo: Container frame rate and the duration up to the end of
//     the last frame.
//   - error: An open or decode failure, or the context error.
func Decode(ctx context.Context, path string) ([]image.Image, SourceInfo, error) {
	capture, err := gocv.OpenVideoCapture(path)
	if err != nil {
		return nil, SourceInfo{}, errors.Wrapf(err, "video: open %s", path)
	}
	defer capture.Close()
	if !capture.IsOpened() {
		return nil, SourceInfo{}, errors.Errorf("video: cannot open %s", path)
	}

	info := SourceInfo{FrameRate: capture.Get(gocv.VideoCaptureFPS)}
	frame := gocv.NewMat()
	defer frame.Close()

	var (
		frames []image.Image
		lastMs float64
	)
	for capture.Read(&frame) {
		if err := ctx.Err(); err != nil {
			return nil, SourceInfo{}, err
		}
		if frame.Empty() {
			continue
		}
		img, err := frame.ToImage()
		if err != nil {
			return nil, SourceInfo{}, errors.Wrapf(err, "video: frame %d of %s", len(frames), path)
		}
		frames = append(frames, img)
		lastMs = capture.Get(gocv.VideoCapturePosMsec)
	}

	if info.FrameRate > 0 && len(frames) > 0 {
		info.Duration = lastMs/1000 + 1/info.FrameRate
	}
	return frames, info, nil
}

// Read decodes and prepares a video file.
//
// @example
// clip, err := video.Read(ctx, "arena.mp4", video.DefaultOptions())
func Read(ctx context.Context, path string, opts Options) (*Clip, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	frames, info, err := Decode(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, errors.Wrapf(ErrEmptyClip, "%s has no frames", path)
	}
	return Prepare(ctx, frames, info, opts)
}

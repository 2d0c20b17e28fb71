package video

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// DefaultCodec is the FourCC used for output videos.
const DefaultCodec = "mp4v"

// Sink encodes frames to a video file.
type Sink struct {
	writer     *gocv.VideoWriter
	width      int
	height     int
	targetPath string
	frames     int
}

// NewSink opens a color video writer.
//
// Arguments:
//   - targetPath: Output file.
//   - codec: FourCC such as "mp4v" or "MJPG"; empty uses DefaultCodec.
//   - fps: Output frame rate.
//   - width: Frame width in pixels.
//   - height: Frame height in pixels.
//
// Returns:
//   - *Sink: The sink; Close it to finish the file.
//   - error: A writer failure.
func NewSink(targetPath, codec string, fps float64, width, height int) (*Sink, error) {
	if codec == "" {
		codec = DefaultCodec
	}
	if !(fps > 0) || width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrInvalidOptions, "sink %dx%d at %v fps", width, height, fps)
	}
	writer, err := gocv.VideoWriterFile(targetPath, codec, fps, width, height, true)
	if err != nil {
		return nil, errors.Wrapf(err, "video: create %s", targetPath)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, errors.Errorf("video: cannot write %s with codec %s", targetPath, codec)
	}
	return &Sink{writer: writer, width: width, height: height, targetPath: targetPath}, nil
}

// Write encodes one frame.
func (s *Sink) Write(img image.Image) error {
	b := img.Bounds()
	if b.Dx() != s.width || b.Dy() != s.height {
		return errors.Errorf("video: frame %d is %dx%d, sink is %dx%d", s.frames, b.Dx(), b.Dy(), s.width, s.height)
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return errors.Wrapf(err, "video: convert frame %d", s.frames)
	}
	defer mat.Close()
	if err := s.writer.Write(mat); err != nil {
		return errors.Wrapf(err, "video: write frame %d to %s", s.frames, s.targetPath)
	}
	s.frames++
	return nil
}

// Frames returns the number of frames written.
func (s *Sink) Frames() int { return s.frames }

// Close finishes the file.
func (s *Sink) Close() error {
	return s.writer.Close()
}

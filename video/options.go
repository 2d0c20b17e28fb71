// Package video - Video decode and encode through gocv, plus clip preparation:
// trimming, frame rate correction, subsampling, downsampling, animal color
// inversion and parallel grayscale conversion.
package video

import (
	"runtime"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-track/util"
)

var (
	// ErrInvalidOptions is returned when clip options are out of range.
	ErrInvalidOptions = errors.New("video: invalid options")
	// ErrEmptyClip is returned when no frames remain after trimming.
	ErrEmptyClip = errors.New("video: empty clip")
	// ErrNoFrameRate is returned when neither the source nor the options
	// provide a frame rate.
	ErrNoFrameRate = errors.New("video: unknown frame rate")
)

// AnimalColor states whether the animal is brighter or darker than the floor.
type AnimalColor int

const (
	// AnimalWhite is a bright animal on a dark floor.
	AnimalWhite AnimalColor = iota
	// AnimalBlack is a dark animal on a bright floor; frames are inverted
	// before segmentation.
	AnimalBlack
)

func (c AnimalColor) String() string {
	switch c {
	case AnimalWhite:
		return "white"
	case AnimalBlack:
		return "black"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c AnimalColor) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText parses "white" or "black".
func (c *AnimalColor) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "white":
		*c = AnimalWhite
	case "black":
		*c = AnimalBlack
	default:
		return errors.Wrapf(ErrInvalidOptions, "animal color %q", text)
	}
	return nil
}

// Options contains the clip preparation parameters.
type Options struct {
	// Start is the mm:ss offset of the first frame; empty starts at 0.
	Start string `json:"start" yaml:"start"`
	// End is the mm:ss offset after the last frame; empty runs to the end.
	End string `json:"end" yaml:"end"`
	// Subsample keeps every Nth frame.
	Subsample int `json:"subsample" yaml:"subsample"`
	// DownRatio shrinks each frame by this integer factor.
	DownRatio int `json:"down_ratio" yaml:"down_ratio"`
	// AnimalColor inverts frames for dark animals.
	AnimalColor AnimalColor `json:"animal_color" yaml:"animal_color"`
	// MaxFrameRate is the highest plausible container frame rate; above it the
	// rate is recomputed from frame count and duration. 0 disables the check.
	MaxFrameRate float64 `json:"max_frame_rate" yaml:"max_frame_rate"`
	// FrameRate overrides the source frame rate when positive. Image
	// directories carry no rate and need it.
	FrameRate float64 `json:"frame_rate" yaml:"frame_rate"`
	// Workers bounds concurrent frame conversions; 0 uses runtime.NumCPU.
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultOptions returns a default configuration for clip preparation.
func DefaultOptions() Options {
	return Options{
		Subsample:    3,
		DownRatio:    1,
		AnimalColor:  AnimalWhite,
		MaxFrameRate: 60,
		Workers:      runtime.NumCPU(),
	}
}

// Validate reports the first out-of-range option.
func (o Options) Validate() error {
	if o.Subsample < 1 {
		return errors.Wrapf(ErrInvalidOptions, "subsample %d", o.Subsample)
	}
	if o.DownRatio < 1 {
		return errors.Wrapf(ErrInvalidOptions, "down ratio %d", o.DownRatio)
	}
	if o.AnimalColor != AnimalWhite && o.AnimalColor != AnimalBlack {
		return errors.Wrapf(ErrInvalidOptions, "animal color %d", int(o.AnimalColor))
	}
	if o.MaxFrameRate < 0 || o.FrameRate < 0 {
		return errors.Wrapf(ErrInvalidOptions, "frame rates %v/%v", o.MaxFrameRate, o.FrameRate)
	}
	if o.Workers < 0 {
		return errors.Wrapf(ErrInvalidOptions, "workers %d", o.Workers)
	}
	for _, code := range []string{o.Start, o.End} {
		if code == "" {
			continue
		}
		if _, err := util.ParseTimecode(code); err != nil {
			return errors.Wrap(ErrInvalidOptions, err.Error())
		}
	}
	return nil
}

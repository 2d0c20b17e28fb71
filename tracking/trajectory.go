// Package tracking - Builds the per-video centroid trajectory and derives the
// occupancy-time map, cumulative-distance map, rectangle statistics and the
// fading-trail overlay video from it.
package tracking

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-track/detector"
)

var (
	// ErrEmptyVideo is returned when there are no frames to process.
	ErrEmptyVideo = errors.New("tracking: no frames")
	// ErrInvalidFrameRate is returned for a non-positive frame rate.
	ErrInvalidFrameRate = errors.New("tracking: frame rate must be positive")
	// ErrInvalidCalibration is returned for a negative cm-per-pixel factor.
	ErrInvalidCalibration = errors.New("tracking: pixel calibration must not be negative")
	// ErrOutOfBounds is returned when a centroid lies outside the map.
	ErrOutOfBounds = errors.New("tracking: centroid outside map bounds")
)

// Trajectory holds one centroid per frame, indexed by frame number. Absent
// entries mark frames without a detection.
type Trajectory []detector.Centroid

// Detections returns the number of frames with a detection.
func (t Trajectory) Detections() int {
	n := 0
	for _, c := range t {
		if c.Present {
			n++
		}
	}
	return n
}

// Gaps returns the number of frames without a detection.
func (t Trajectory) Gaps() int {
	return len(t) - t.Detections()
}

// GapFraction returns Gaps divided by the trajectory length.
func (t Trajectory) GapFraction() float64 {
	if len(t) == 0 {
		return 0
	}
	return float64(t.Gaps()) / float64(len(t))
}

// GapIndices returns the frame indices without a detection.
func (t Trajectory) GapIndices() []int {
	var out []int
	for i, c := range t {
		if !c.Present {
			out = append(out, i)
		}
	}
	return out
}

package tracking

import (
	"image"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Clip canonicalizes the rectangle spanned by two corner points and clips it
// to the map. X is the column and Y the row; the rectangle is half-open.
func (m *Maps) Clip(start, end image.Point) image.Rectangle {
	h, w := m.Dims()
	return image.Rectangle{Min: start, Max: end}.Canon().Intersect(image.Rect(0, 0, w, h))
}

// RectangleStats returns the time spent and distance travelled inside a
// rectangle.
//
// Arguments:
//   - start: One corner, X column and Y row.
//   - end: The opposite corner, exclusive.
//   - frameRate: Effective frames per second of the trajectory.
//   - cmPerPixel: Length calibration.
//
// Returns:
//   - float64: Seconds spent inside the rectangle.
//   - float64: Centimetres travelled inside the rectangle.
//   - error: ErrInvalidFrameRate, ErrInvalidCalibration.
//
// @example
// secs, cm, err := maps.RectangleStats(image.Pt(10, 10), image.Pt(50, 40), 30, 0.12)
func (m *Maps) RectangleStats(start, end image.Point, frameRate, cmPerPixel float64) (float64, float64, error) {
	if !(frameRate > 0) {
		return 0, 0, errors.Wrapf(ErrInvalidFrameRate, "%v", frameRate)
	}
	if cmPerPixel < 0 {
		return 0, 0, errors.Wrapf(ErrInvalidCalibration, "%v", cmPerPixel)
	}
	r := m.Clip(start, end)
	if r.Empty() {
		return 0, 0, nil
	}
	frames := mat.Sum(m.Time.Slice(r.Min.Y, r.Max.Y, r.Min.X, r.Max.X))
	pixels := mat.Sum(m.Distance.Slice(r.Min.Y, r.Max.Y, r.Min.X, r.Max.X))
	return frames / frameRate, pixels * cmPerPixel, nil
}

// Summary describes a whole run.
type Summary struct {
	Frames      int     `json:"frames"`
	Detections  int     `json:"detections"`
	Gaps        int     `json:"gaps"`
	GapFraction float64 `json:"gap_fraction"`
	// DistancePixels is the total path length under the gap policy.
	DistancePixels float64 `json:"distance_pixels"`
	DistanceCm     float64 `json:"distance_cm"`
	// MaxStepPixels is the largest single-frame jump, useful to spot
	// mis-detections.
	MaxStepPixels   float64 `json:"max_step_pixels"`
	MeanStepPixels  float64 `json:"mean_step_pixels"`
	StepStdPixels   float64 `json:"step_std_pixels"`
	DurationSeconds float64 `json:"duration_seconds"`
	MeanSpeedCmS    float64 `json:"mean_speed_cm_s"`
}

// Summarize computes the run summary.
//
// Arguments:
//   - t: The trajectory.
//   - policy: Distance attribution across gaps.
//   - frameRate: Effective frames per second.
//   - cmPerPixel: Length calibration.
//
// Returns:
//   - Summary: The summary.
//   - error: ErrInvalidFrameRate, ErrInvalidCalibration.
func Summarize(t Trajectory, policy GapPolicy, frameRate, cmPerPixel float64) (Summary, error) {
	if !(frameRate > 0) {
		return Summary{}, errors.Wrapf(ErrInvalidFrameRate, "%v", frameRate)
	}
	if cmPerPixel < 0 {
		return Summary{}, errors.Wrapf(ErrInvalidCalibration, "%v", cmPerPixel)
	}
	s := Summary{
		Frames:          len(t),
		Detections:      t.Detections(),
		Gaps:            t.Gaps(),
		GapFraction:     t.GapFraction(),
		DurationSeconds: float64(len(t)) / frameRate,
	}
	steps := Steps(t, policy)
	if len(steps) > 0 {
		d := make([]float64, len(steps))
		for i, st := range steps {
			d[i] = st.Distance
		}
		s.DistancePixels = floats.Sum(d)
		s.MaxStepPixels = floats.Max(d)
		s.MeanStepPixels = stat.Mean(d, nil)
		if len(d) > 1 {
			s.StepStdPixels = stat.StdDev(d, nil)
		}
	}
	s.DistanceCm = s.DistancePixels * cmPerPixel
	if s.DurationSeconds > 0 {
		s.MeanSpeedCmS = s.DistanceCm / s.DurationSeconds
	}
	return s, nil
}

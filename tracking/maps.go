package tracking

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/nvr-ai/go-track/detector"
)

// Centroid is the per-frame detection result carried by a Trajectory.
type Centroid = detector.Centroid

// GapPolicy decides how distance is attributed across frames without a
// detection.
type GapPolicy int

const (
	// GapBreak resets the previous position at every absence, so the first
	// detection after a gap contributes no distance.
	GapBreak GapPolicy = iota
	// GapBridge keeps the last detection across absences and attributes the
	// jump to the next detection's pixel.
	GapBridge
)

var gapPolicyNames = map[GapPolicy]string{
	GapBreak:  "break",
	GapBridge: "bridge",
}

// ErrInvalidGapPolicy is returned for an unknown gap policy name or value.
var ErrInvalidGapPolicy = errors.New("tracking: invalid gap policy")

func (p GapPolicy) String() string {
	if s, ok := gapPolicyNames[p]; ok {
		return s
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (p GapPolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText parses a gap policy name.
func (p *GapPolicy) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for v, name := range gapPolicyNames {
		if name == s {
			*p = v
			return nil
		}
	}
	return errors.Wrapf(ErrInvalidGapPolicy, "%q", s)
}

// Validate reports an unknown gap policy value.
func (p GapPolicy) Validate() error {
	if _, ok := gapPolicyNames[p]; !ok {
		return errors.Wrapf(ErrInvalidGapPolicy, "value %d", int(p))
	}
	return nil
}

// Step is the distance travelled into one frame.
type Step struct {
	Frame    int
	To       Centroid
	Distance float64
}

// Steps returns the movement steps of a trajectory under the gap policy. Only
// frames with a detection and a usable previous position produce a step.
func Steps(t Trajectory, policy GapPolicy) []Step {
	var (
		steps   []Step
		prev    Centroid
		hasPrev bool
	)
	for i, c := range t {
		if !c.Present {
			if policy == GapBreak {
				hasPrev = false
			}
			continue
		}
		if hasPrev {
			steps = append(steps, Step{
				Frame:    i,
				To:       c,
				Distance: math.Hypot(float64(c.Row-prev.Row), float64(c.Col-prev.Col)),
			})
		}
		prev, hasPrev = c, true
	}
	return steps
}

// Maps holds the per-pixel aggregates of one trajectory. Rows index image rows
// and columns index image columns.
type Maps struct {
	// Time counts the frames the animal's centroid spent on each pixel.
	Time *mat.Dense
	// Distance sums the step distances in pixels, attributed to the pixel the
	// animal moved into.
	Distance *mat.Dense
	// Policy is the gap policy the distance map was built with.
	Policy GapPolicy
}

// NewMaps builds the occupancy-time and cumulative-distance maps.
//
// Arguments:
//   - t: The trajectory.
//   - height: Frame height in pixels.
//   - width: Frame width in pixels.
//   - policy: Distance attribution across gaps.
//
// Returns:
//   - *Maps: The maps.
//   - error: ErrEmptyVideo for non-positive dimensions, ErrOutOfBounds for a
//     centroid outside the frame, ErrInvalidGapPolicy.
//
// @example
// maps, err := tracking.NewMaps(traj, 480, 640, tracking.GapBreak)
func NewMaps(t Trajectory, height, width int, policy GapPolicy) (*Maps, error) {
	if height <= 0 || width <= 0 {
		return nil, errors.Wrapf(ErrEmptyVideo, "map size %dx%d", width, height)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	for i, c := range t {
		if c.Present && (c.Row < 0 || c.Row >= height || c.Col < 0 || c.Col >= width) {
			return nil, errors.Wrapf(ErrOutOfBounds, "frame %d at %s in %dx%d", i, c, width, height)
		}
	}

	m := &Maps{
		Time:     mat.NewDense(height, width, nil),
		Distance: mat.NewDense(height, width, nil),
		Policy:   policy,
	}
	for _, c := range t {
		if c.Present {
			m.Time.Set(c.Row, c.Col, m.Time.At(c.Row, c.Col)+1)
		}
	}
	for _, s := range Steps(t, policy) {
		m.Distance.Set(s.To.Row, s.To.Col, m.Distance.At(s.To.Row, s.To.Col)+s.Distance)
	}
	return m, nil
}

// Dims returns the map height and width.
func (m *Maps) Dims() (height, width int) {
	return m.Time.Dims()
}

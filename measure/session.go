// Package measure - Rectangle measurement session owned by the interactive
// region-selection collaborator. A Session replaces process-wide frame rate,
// calibration and map state with one explicit object per loaded run.
package measure

import (
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-track/tracking"
)

var (
	// ErrSelectionTooSmall is returned for a rectangle narrower or shorter
	// than the session's minimum span.
	ErrSelectionTooSmall = errors.New("measure: selection too small")
	// ErrBadSelection is returned for an unparsable rectangle.
	ErrBadSelection = errors.New("measure: malformed selection")
)

// DefaultMinSpan is the smallest accepted selection width and height in pixels.
const DefaultMinSpan = 5

// Measurement is the result of one rectangle selection.
type Measurement struct {
	// Start and End are the corners as selected.
	Start image.Point `json:"start"`
	End   image.Point `json:"end"`
	// Rect is the canonical rectangle clipped to the maps.
	Rect      image.Rectangle `json:"rect"`
	Seconds   float64         `json:"seconds"`
	Cm        float64         `json:"cm"`
	FrameRate float64         `json:"frame_rate"`
}

// Caption renders the measurement as the three-line plot title.
func (m Measurement) Caption() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Coordinate of the selected rectangle (%d, %d) --> (%d, %d)\n", m.Start.X, m.Start.Y, m.End.X, m.End.Y)
	fmt.Fprintf(&b, "Time spent in selected region: %.1fs at a framerate of %.1f\n", m.Seconds, m.FrameRate)
	fmt.Fprintf(&b, "Travel distance in the selected region: %.2f cm", m.Cm)
	return b.String()
}

// Session answers rectangle queries against one run's maps.
// A Session is not safe for concurrent use.
type Session struct {
	maps       *tracking.Maps
	frameRate  float64
	cmPerPixel float64
	minSpan    int
	history    []Measurement
	logger     *slog.Logger
}

// NewSession creates a measurement session.
//
// Arguments:
//   - maps: The run's occupancy-time and distance maps.
//   - frameRate: Effective frames per second of the run.
//   - cmPerPixel: Length calibration.
//   - logger: Destination for selection logs; nil uses slog.Default().
//
// Returns:
//   - *Session: The session, with DefaultMinSpan.
//   - error: tracking.ErrInvalidFrameRate or tracking.ErrInvalidCalibration.
func NewSession(maps *tracking.Maps, frameRate, cmPerPixel float64, logger *slog.Logger) (*Session, error) {
	if maps == nil {
		return nil, errors.Wrap(tracking.ErrEmptyVideo, "measure: no maps")
	}
	if !(frameRate > 0) {
		return nil, errors.Wrapf(tracking.ErrInvalidFrameRate, "%v", frameRate)
	}
	if cmPerPixel < 0 {
		return nil, errors.Wrapf(tracking.ErrInvalidCalibration, "%v", cmPerPixel)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		maps:       maps,
		frameRate:  frameRate,
		cmPerPixel: cmPerPixel,
		minSpan:    DefaultMinSpan,
		logger:     logger,
	}, nil
}

// SetMinSpan changes the smallest accepted selection span; 0 accepts any.
func (s *Session) SetMinSpan(px int) {
	s.minSpan = max(px, 0)
}

// FrameRate returns the session's frame rate.
func (s *Session) FrameRate() float64 { return s.frameRate }

// CmPerPixel returns the session's length calibration.
func (s *Session) CmPerPixel() float64 { return s.cmPerPixel }

// Select measures the rectangle spanned by two corners and records it.
//
// Arguments:
//   - start: Press position, X column and Y row.
//   - end: Release position, exclusive.
//
// Returns:
//   - Measurement: Time spent and distance travelled inside the rectangle.
//   - error: ErrSelectionTooSmall.
//
// @example
// m, err := session.Select(image.Pt(10, 20), image.Pt(60, 80))
// fmt.Println(m.Caption())
func (s *Session) Select(start, end image.Point) (Measurement, error) {
	canon := image.Rectangle{Min: start, Max: end}.Canon()
	if canon.Dx() < s.minSpan || canon.Dy() < s.minSpan {
		return Measurement{}, errors.Wrapf(ErrSelectionTooSmall, "%v is under %d px", canon, s.minSpan)
	}

	secs, cm, err := s.maps.RectangleStats(start, end, s.frameRate, s.cmPerPixel)
	if err != nil {
		return Measurement{}, err
	}
	m := Measurement{
		Start:     start,
		End:       end,
		Rect:      s.maps.Clip(start, end),
		Seconds:   secs,
		Cm:        cm,
		FrameRate: s.frameRate,
	}
	s.history = append(s.history, m)
	s.logger.Debug("rectangle selected",
		slog.String("rect", m.Rect.String()),
		slog.Float64("seconds", secs),
		slog.Float64("cm", cm))
	return m, nil
}

// Measurements returns the selections made so far, oldest first.
func (s *Session) Measurements() []Measurement {
	return append([]Measurement(nil), s.history...)
}

// ParseSelection parses "x1,y1,x2,y2" into two corner points.
func ParseSelection(text string) (image.Point, image.Point, error) {
	parts := strings.Split(text, ",")
	if len(parts) != 4 {
		return image.Point{}, image.Point{}, errors.Wrapf(ErrBadSelection, "%q needs 4 values", text)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Point{}, image.Point{}, errors.Wrapf(ErrBadSelection, "%q: %v", text, err)
		}
		v[i] = n
	}
	return image.Pt(v[0], v[1]), image.Pt(v[2], v[3]), nil
}

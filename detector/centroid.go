package detector

import (
	"fmt"

	"github.com/nvr-ai/go-track/images"
)

// Centroid is the detected animal position of one frame in pixel
// coordinates. The zero value is an absent detection.
type Centroid struct {
	Row     int  `json:"row" yaml:"row"`
	Col     int  `json:"col" yaml:"col"`
	Present bool `json:"present" yaml:"present"`
}

// Absent is the no-detection centroid.
var Absent = Centroid{}

// At returns a present centroid.
func At(row, col int) Centroid {
	return Centroid{Row: row, Col: col, Present: true}
}

func (c Centroid) String() string {
	if !c.Present {
		return "absent"
	}
	return fmt.Sprintf("(%d, %d)", c.Row, c.Col)
}

// SelectCandidate returns the candidate with the largest pixel count. Ties go
// to the first candidate encountered, which is the lowest label.
func SelectCandidate(candidates []images.Component) (images.Component, bool) {
	var best images.Component
	found := false
	for _, c := range candidates {
		if !found || c.Size > best.Size {
			best = c
			found = true
		}
	}
	return best, found
}

// Extract picks the most plausible animal component of a segmentation and
// returns its centroid.
//
// The largest candidate is chosen. When it holds more than twice
// minComponentSize pixels it is eroded once more to tighten a ragged boundary.
// If that erosion removes every pixel, policy decides between reporting an
// absent centroid and falling back to the pre-erosion pixels. The centroid is
// the mean row and column of the remaining pixels, truncated to integers.
//
// Arguments:
//   - seg: The frame's segmentation.
//   - minComponentSize: The smallest plausible blob size.
//   - policy: Handling of a component that erodes away.
//
// Returns:
//   - Centroid: The detection, or Absent.
//   - error: An erosion failure.
func Extract(seg *Segmentation, minComponentSize int, policy DegeneratePolicy) (Centroid, error) {
	if seg == nil {
		return Absent, nil
	}
	best, ok := SelectCandidate(seg.Candidates)
	if !ok {
		return Absent, nil
	}

	pixels := seg.Labels.Mask(best.Label)
	if best.Size > 2*minComponentSize {
		eroded, err := images.Erode(pixels, images.FootprintCross)
		if err != nil {
			return Absent, err
		}
		switch {
		case !eroded.Empty():
			pixels = eroded
		case policy == DegenerateAbsent:
			return Absent, nil
		}
	}

	row, col, ok := pixels.Centroid()
	if !ok {
		return Absent, nil
	}
	return At(row, col), nil
}

package detector

import (
	"github.com/nvr-ai/go-track/images"
)

// Detector binds a valid region and segmentation parameters. It holds no
// per-frame state, so one Detector may serve any number of goroutines.
type Detector struct {
	region *Region
	config SegmentConfig
}

// New creates a detector for one video.
//
// Arguments:
//   - region: The video's valid region, shared read-only.
//   - config: Segmentation parameters.
//
// Returns:
//   - *Detector: The detector.
//   - error: ErrNoValidRegion for an empty region or ErrInvalidConfig.
//
// @example
// det, err := detector.New(region, detector.DefaultSegmentConfig())
// centroid, err := det.Detect(frame)
func New(region *Region, config SegmentConfig) (*Detector, error) {
	if region.Empty() {
		return nil, ErrNoValidRegion
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Detector{region: region, config: config}, nil
}

// Detect segments one frame and extracts the animal centroid. A frame
// without a plausible blob yields Absent and a nil error.
func (d *Detector) Detect(frame *images.Frame) (Centroid, error) {
	seg, err := Segment(frame, d.region, d.config)
	if err != nil {
		return Absent, err
	}
	return Extract(seg, d.config.MinComponentSize, d.config.Degenerate)
}

// Region returns the detector's valid region.
func (d *Detector) Region() *Region {
	return d.region
}

// Config returns the detector's segmentation parameters.
func (d *Detector) Config() SegmentConfig {
	return d.config
}

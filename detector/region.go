package detector

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-track/images"
)

var (
	// ErrNoValidRegion is returned when no arena floor component survives size
	// filtering. The accompanying Region is empty with zero Height and Width.
	ErrNoValidRegion = errors.New("detector: no valid region found")
	// ErrDimensionMismatch is returned when a frame does not match the region.
	ErrDimensionMismatch = errors.New("detector: frame dimensions do not match valid region")
)

// Region is the static mask of arena pixels eligible for detection. It is
// computed once per video and shared read-only by every frame.
type Region struct {
	// Mask has the frame's dimensions; set pixels are valid.
	Mask *images.Mask
	// Height is the row span (max minus min) of the valid pixels.
	Height int
	// Width is the column span (max minus min) of the valid pixels.
	Width int
}

func newRegion(m *images.Mask) *Region {
	h, w := m.Extent()
	return &Region{Mask: m, Height: h, Width: w}
}

// Empty reports whether the region has no valid pixel.
func (r *Region) Empty() bool {
	return r == nil || r.Mask == nil || r.Mask.Empty()
}

// Check returns ErrDimensionMismatch unless the region matches the frame size.
func (r *Region) Check(width, height int) error {
	if r.Empty() {
		return ErrNoValidRegion
	}
	if !r.Mask.SameSize(width, height) {
		return errors.Wrapf(ErrDimensionMismatch, "frame %dx%d, region %dx%d",
			width, height, r.Mask.Width, r.Mask.Height)
	}
	return nil
}

// BorderCrop marks every pixel valid except the outermost row and column on
// each side.
//
// Arguments:
//   - width: The frame width.
//   - height: The frame height.
//
// Returns:
//   - *Region: The cropped region.
//   - error: ErrNoValidRegion when the frame is too small to keep any pixel.
func BorderCrop(width, height int) (*Region, error) {
	m := images.NewMask(width, height)
	for r := 1; r < height-1; r++ {
		for c := 1; c < width-1; c++ {
			m.Set(r, c, true)
		}
	}
	region := newRegion(m)
	if region.Empty() {
		return &Region{Mask: m}, errors.Wrapf(ErrNoValidRegion, "%dx%d frame too small to crop", width, height)
	}
	return region, nil
}

// EstimateRegion computes the valid arena region from a calibration frame.
//
// In segmentation mode the frame is normalized to [0,255], floor pixels are
// selected by DarkThreshold and Polarity, components smaller than
// MinComponentSize are dropped, the largest remaining component is kept and
// finally eroded once with a 3x3 square so the region pulls away from the
// arena walls.
//
// Arguments:
//   - frame: A representative grayscale frame.
//   - cfg: Region estimation parameters.
//
// Returns:
//   - *Region: The valid region. On ErrNoValidRegion it is empty with zero
//     Height and Width.
//   - error: ErrNoValidRegion or ErrInvalidConfig.
//
// @example
// region, err := detector.EstimateRegion(frames[0], detector.DefaultRegionConfig())
//
//	if errors.Is(err, detector.ErrNoValidRegion) {
//	    region, err = detector.BorderCrop(frames[0].Width, frames[0].Height)
//	}
func EstimateRegion(frame *images.Frame, cfg RegionConfig) (*Region, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Mode == RegionBorderCrop {
		return BorderCrop(frame.Width, frame.Height)
	}

	empty := &Region{Mask: images.NewMask(frame.Width, frame.Height)}
	norm := images.NormalizeTo8Bit(frame)

	var floor *images.Mask
	if cfg.Polarity == FloorBright {
		floor = images.Above(norm, cfg.DarkThreshold)
	} else {
		floor = images.Below(norm, cfg.DarkThreshold)
	}

	labels := images.Label(floor, cfg.Connectivity)
	labels.RemoveSmall(cfg.MinComponentSize)
	largest, ok := labels.Largest()
	if !ok {
		return empty, errors.Wrapf(ErrNoValidRegion, "no floor component of at least %d pixels", cfg.MinComponentSize)
	}

	mask, err := images.Erode(labels.Mask(largest.Label), images.FootprintSquare)
	if err != nil {
		return empty, err
	}
	if mask.Empty() {
		return empty, errors.Wrapf(ErrNoValidRegion, "floor component of %d pixels vanished after erosion", largest.Size)
	}
	return newRegion(mask), nil
}

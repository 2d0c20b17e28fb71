package detector

import (
	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-track/images"
)

// Segmentation is the transient per-frame result of foreground segmentation.
type Segmentation struct {
	// Labels is the component labelling of the final foreground mask.
	Labels *images.Labels
	// Candidates lists plausible components ordered by label.
	Candidates []images.Component
	// Foreground is the number of foreground pixels after the erosion gate.
	Foreground int
	// Threshold is the 8-bit level the foreground was cut at.
	Threshold float32
	// Policy is the threshold policy that produced this result. For
	// PolicyFixedThenRelative it records which pass was kept.
	Policy SegmentationPolicy
}

// RelativeThreshold returns floor((max + mean) / 2) of a normalized frame.
func RelativeThreshold(norm *images.Frame) float32 {
	_, hi := norm.MinMax()
	return math32.Floor((hi + float32(norm.Mean())) / 2)
}

// Segment produces the candidate animal components of one frame.
//
// The pipeline is:
//
// ┌──────────────────────────────┐
// │ mask by region, clip range   │
// └──────┬───────────────────────┘
// ┌──────────────────────────────┐
// │ optional blur, norm [0,255]  │
// └──────┬───────────────────────┘
// ┌──────────────────────────────┐
// │ threshold (policy), re-mask  │
// └──────┬───────────────────────┘
// ┌──────────────────────────────┐
// │ erode if fg > 2*min size     │
// └──────┬───────────────────────┘
// ┌──────────────────────────────┐
// │ label, drop small if crowded │
// └──────┬───────────────────────┘
// ┌──────────────────────────────┐
// │ candidate list               │
// └──────────────────────────────┘
//
// Erosion and small-object removal only run when the foreground holds more
// than twice MinComponentSize pixels, so a small but real animal blob is not
// erased outright.
//
// Arguments:
//   - frame: The grayscale frame.
//   - region: The valid region, same dimensions as frame.
//   - cfg: Segmentation parameters.
//
// Returns:
//   - *Segmentation: Labels and candidates. An empty candidate list means no
//     detection and is not an error.
//   - error: ErrDimensionMismatch, ErrNoValidRegion or an erosion failure.
func Segment(frame *images.Frame, region *Region, cfg SegmentConfig) (*Segmentation, error) {
	if err := region.Check(frame.Width, frame.Height); err != nil {
		return nil, err
	}

	lo, hi := frame.MinMax()
	masked := images.Clip(images.ApplyMask(frame, region.Mask), lo, hi)
	if cfg.BlurSigma > 0 {
		masked = images.GaussianBlur(masked, cfg.BlurSigma)
	}
	norm := images.NormalizeTo8Bit(masked)

	switch cfg.Policy {
	case PolicyFixedThreshold:
		return threshold(norm, region, cfg, cfg.FixedThreshold, PolicyFixedThreshold)
	case PolicyFixedThenRelative:
		seg, err := threshold(norm, region, cfg, cfg.FixedThreshold, PolicyFixedThreshold)
		if err != nil || len(seg.Candidates) > 0 {
			return seg, err
		}
		return threshold(norm, region, cfg, RelativeThreshold(norm), PolicyRelativeBrightness)
	default:
		return threshold(norm, region, cfg, RelativeThreshold(norm), PolicyRelativeBrightness)
	}
}

func threshold(norm *images.Frame, region *Region, cfg SegmentConfig, level float32, policy SegmentationPolicy) (*Segmentation, error) {
	fg := images.Above(norm, level)
	fg.And(region.Mask)

	gate := 2 * cfg.MinComponentSize
	count := fg.Count()
	if count > gate {
		eroded, err := images.Erode(fg, images.FootprintCross)
		if err != nil {
			return nil, err
		}
		fg = eroded
		count = fg.Count()
	}

	labels := images.Label(fg, cfg.Connectivity)
	if labels.Count() >= 2 && count > gate {
		labels.RemoveSmall(cfg.MinComponentSize)
	}

	candidates := labels.Components()
	if cfg.MaxComponentSize > 0 {
		kept := candidates[:0]
		for _, c := range candidates {
			if c.Size <= cfg.MaxComponentSize {
				kept = append(kept, c)
			}
		}
		candidates = kept
	}

	return &Segmentation{
		Labels:     labels,
		Candidates: candidates,
		Foreground: count,
		Threshold:  level,
		Policy:     policy,
	}, nil
}

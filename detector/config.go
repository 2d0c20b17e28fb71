// Package detector - Classical single-animal detection: valid arena region
// estimation, per-frame foreground segmentation and centroid extraction.
package detector

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-track/images"
)

// ErrInvalidConfig is returned when detector parameters are out of range.
var ErrInvalidConfig = errors.New("detector: invalid configuration")

// RegionMode selects how the valid arena region is derived.
type RegionMode int

const (
	// RegionSegmentation segments the arena floor from a calibration frame.
	RegionSegmentation RegionMode = iota
	// RegionBorderCrop treats the whole frame minus a one pixel border as valid,
	// for inputs already cropped tightly to the enclosure.
	RegionBorderCrop
)

// FloorPolarity states whether the arena floor is darker or brighter than the
// walls in the calibration frame.
type FloorPolarity int

const (
	// FloorDark selects pixels below the threshold as floor.
	FloorDark FloorPolarity = iota
	// FloorBright selects pixels above the threshold as floor.
	FloorBright
)

// SegmentationPolicy selects how each frame's foreground threshold is chosen.
type SegmentationPolicy int

const (
	// PolicyRelativeBrightness thresholds at floor((max+mean)/2) of the masked
	// frame, adapting to per-frame lighting drift.
	PolicyRelativeBrightness SegmentationPolicy = iota
	// PolicyFixedThreshold thresholds at SegmentConfig.FixedThreshold.
	PolicyFixedThreshold
	// PolicyFixedThenRelative tries the fixed threshold first and falls back to
	// the relative threshold when the fixed pass yields no candidate.
	PolicyFixedThenRelative
)

// DegeneratePolicy decides what happens when the final erosion of the
// selected component removes every pixel.
type DegeneratePolicy int

const (
	// DegenerateAbsent reports no detection for the frame.
	DegenerateAbsent DegeneratePolicy = iota
	// DegenerateRevert computes the centroid from the pre-erosion pixels.
	DegenerateRevert
)

var (
	regionModeNames = map[RegionMode]string{
		RegionSegmentation: "segmentation",
		RegionBorderCrop:   "border-crop",
	}
	floorPolarityNames = map[FloorPolarity]string{
		FloorDark:   "dark",
		FloorBright: "bright",
	}
	policyNames = map[SegmentationPolicy]string{
		PolicyRelativeBrightness: "relative-brightness",
		PolicyFixedThreshold:     "fixed-threshold",
		PolicyFixedThenRelative:  "fixed-then-relative",
	}
	degenerateNames = map[DegeneratePolicy]string{
		DegenerateAbsent: "absent",
		DegenerateRevert: "revert",
	}
)

func enumString[T ~int](names map[T]string, v T) string {
	if s, ok := names[v]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", int(v))
}

func parseEnum[T ~int](names map[T]string, kind string, text []byte) (T, error) {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for v, name := range names {
		if name == s {
			return v, nil
		}
	}
	var zero T
	return zero, errors.Wrapf(ErrInvalidConfig, "unknown %s %q", kind, s)
}

// String returns the configuration name of the mode.
func (m RegionMode) String() string { return enumString(regionModeNames, m) }

// MarshalText implements encoding.TextMarshaler.
func (m RegionMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// String returns the configuration name of the polarity.
func (p FloorPolarity) String() string { return enumString(floorPolarityNames, p) }

// MarshalText implements encoding.TextMarshaler.
func (p FloorPolarity) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// String returns the configuration name of the policy.
func (p SegmentationPolicy) String() string { return enumString(policyNames, p) }

// MarshalText implements encoding.TextMarshaler.
func (p SegmentationPolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// String returns the configuration name of the policy.
func (p DegeneratePolicy) String() string { return enumString(degenerateNames, p) }

// MarshalText implements encoding.TextMarshaler.
func (p DegeneratePolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText parses a region mode name.
func (m *RegionMode) UnmarshalText(text []byte) (err error) {
	*m, err = parseEnum(regionModeNames, "region mode", text)
	return err
}

// UnmarshalText parses a floor polarity name.
func (p *FloorPolarity) UnmarshalText(text []byte) (err error) {
	*p, err = parseEnum(floorPolarityNames, "floor polarity", text)
	return err
}

// UnmarshalText parses a segmentation policy name.
func (p *SegmentationPolicy) UnmarshalText(text []byte) (err error) {
	*p, err = parseEnum(policyNames, "segmentation policy", text)
	return err
}

// UnmarshalText parses a degenerate component policy name.
func (p *DegeneratePolicy) UnmarshalText(text []byte) (err error) {
	*p, err = parseEnum(degenerateNames, "degenerate policy", text)
	return err
}

// RegionConfig contains the parameters of valid region estimation.
type RegionConfig struct {
	// Mode selects border cropping or floor segmentation.
	Mode RegionMode `json:"mode" yaml:"mode"`
	// DarkThreshold is the 8-bit level separating floor from walls.
	DarkThreshold float32 `json:"dark_threshold" yaml:"dark_threshold"`
	// MinComponentSize discards floor candidates with fewer pixels.
	MinComponentSize int `json:"min_component_size" yaml:"min_component_size"`
	// Polarity states which side of DarkThreshold is floor.
	Polarity FloorPolarity `json:"polarity" yaml:"polarity"`
	// Connectivity used when labelling floor candidates.
	Connectivity images.Connectivity `json:"connectivity" yaml:"connectivity"`
	// FallbackToBorderCrop substitutes a border crop when segmentation finds
	// no region, instead of failing the run.
	FallbackToBorderCrop bool `json:"fallback_to_border_crop" yaml:"fallback_to_border_crop"`
}

// DefaultRegionConfig returns a default configuration for region estimation.
func DefaultRegionConfig() RegionConfig {
	return RegionConfig{
		Mode:             RegionSegmentation,
		DarkThreshold:    32,
		MinComponentSize: 128,
		Polarity:         FloorDark,
		Connectivity:     images.Connectivity8,
	}
}

// Validate reports the first out-of-range parameter.
func (c RegionConfig) Validate() error {
	if _, ok := regionModeNames[c.Mode]; !ok {
		return errors.Wrapf(ErrInvalidConfig, "region mode %d", c.Mode)
	}
	if c.DarkThreshold < 0 || c.DarkThreshold > images.MaxLevel {
		return errors.Wrapf(ErrInvalidConfig, "dark threshold %v outside [0,255]", c.DarkThreshold)
	}
	if c.MinComponentSize < 0 {
		return errors.Wrapf(ErrInvalidConfig, "region min component size %d", c.MinComponentSize)
	}
	return validateConnectivity(c.Connectivity)
}

// SegmentConfig contains the per-frame segmentation and extraction parameters.
type SegmentConfig struct {
	// Policy selects the foreground threshold strategy.
	Policy SegmentationPolicy `json:"policy" yaml:"policy"`
	// FixedThreshold is the 8-bit level used by the fixed policies.
	FixedThreshold float32 `json:"fixed_threshold" yaml:"fixed_threshold"`
	// MinComponentSize is the smallest plausible animal blob in pixels. Twice
	// this value gates the erosion and small-object removal steps.
	MinComponentSize int `json:"min_component_size" yaml:"min_component_size"`
	// MaxComponentSize excludes larger components from selection; 0 disables.
	MaxComponentSize int `json:"max_component_size" yaml:"max_component_size"`
	// BlurSigma applies a Gaussian pre-blur when positive.
	BlurSigma float32 `json:"blur_sigma" yaml:"blur_sigma"`
	// Connectivity used for labelling foreground components.
	Connectivity images.Connectivity `json:"connectivity" yaml:"connectivity"`
	// Degenerate decides the outcome when the final erosion empties a blob.
	Degenerate DegeneratePolicy `json:"degenerate" yaml:"degenerate"`
}

// DefaultSegmentConfig returns a default configuration for frame segmentation.
func DefaultSegmentConfig() SegmentConfig {
	return SegmentConfig{
		Policy:           PolicyRelativeBrightness,
		FixedThreshold:   128,
		MinComponentSize: 64,
		Connectivity:     images.Connectivity8,
		Degenerate:       DegenerateAbsent,
	}
}

// Validate reports the first out-of-range parameter.
func (c SegmentConfig) Validate() error {
	if _, ok := policyNames[c.Policy]; !ok {
		return errors.Wrapf(ErrInvalidConfig, "segmentation policy %d", c.Policy)
	}
	if _, ok := degenerateNames[c.Degenerate]; !ok {
		return errors.Wrapf(ErrInvalidConfig, "degenerate policy %d", c.Degenerate)
	}
	if c.FixedThreshold < 0 || c.FixedThreshold > images.MaxLevel {
		return errors.Wrapf(ErrInvalidConfig, "fixed threshold %v outside [0,255]", c.FixedThreshold)
	}
	if c.MinComponentSize < 0 {
		return errors.Wrapf(ErrInvalidConfig, "min component size %d", c.MinComponentSize)
	}
	if c.MaxComponentSize < 0 || (c.MaxComponentSize > 0 && c.MaxComponentSize < c.MinComponentSize) {
		return errors.Wrapf(ErrInvalidConfig, "max component size %d below min %d", c.MaxComponentSize, c.MinComponentSize)
	}
	if c.BlurSigma < 0 {
		return errors.Wrapf(ErrInvalidConfig, "blur sigma %v", c.BlurSigma)
	}
	return validateConnectivity(c.Connectivity)
}

func validateConnectivity(c images.Connectivity) error {
	if c != images.Connectivity4 && c != images.Connectivity8 {
		return errors.Wrapf(ErrInvalidConfig, "connectivity %d, want 4 or 8", c)
	}
	return nil
}

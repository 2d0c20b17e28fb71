package tracking

import (
	"image"
	"image/color"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-track/images"
)

// RenderConfig contains the parameters of the fading-trail overlay.
type RenderConfig struct {
	// FadeLength is the number of previous centroids drawn behind the marker.
	FadeLength int `json:"fade_length" yaml:"fade_length"`
	// FadeStep is the intensity lost per frame of age.
	FadeStep int `json:"fade_step" yaml:"fade_step"`
	// MarkerRadius is the disk radius in pixels.
	MarkerRadius int `json:"marker_radius" yaml:"marker_radius"`
}

// DefaultRenderConfig returns a default configuration for track rendering.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		FadeLength:   30,
		FadeStep:     5,
		MarkerRadius: 4,
	}
}

// ErrInvalidRenderConfig is returned for negative render parameters.
var ErrInvalidRenderConfig = errors.New("tracking: invalid render configuration")

// Validate reports the first out-of-range parameter.
func (c RenderConfig) Validate() error {
	if c.FadeLength < 0 || c.FadeStep < 0 || c.MarkerRadius < 0 {
		return errors.Wrapf(ErrInvalidRenderConfig, "%+v", c)
	}
	return nil
}

// Renderer draws the trail overlay one frame at a time, so output can be
// streamed to a video writer.
type Renderer struct {
	trajectory Trajectory
	width      int
	height     int
	config     RenderConfig
	overlay    []uint8
}

// NewRenderer creates a renderer for a trajectory on width x height frames.
func NewRenderer(t Trajectory, width, height int, config RenderConfig) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrEmptyVideo, "render size %dx%d", width, height)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Renderer{
		trajectory: t,
		width:      width,
		height:     height,
		config:     config,
		overlay:    make([]uint8, width*height),
	}, nil
}

// Len returns the number of frames the renderer produces.
func (r *Renderer) Len() int { return len(r.trajectory) }

// Frame renders frame i. The red channel of the result is the per-pixel max
// of the base frame's red channel and the trail; green and blue come from the
// base frame. A nil base renders on black. A Renderer is not safe for
// concurrent use.
func (r *Renderer) Frame(i int, base image.Image) (*image.RGBA, error) {
	if i < 0 || i >= len(r.trajectory) {
		return nil, errors.Errorf("tracking: frame %d outside trajectory of %d", i, len(r.trajectory))
	}
	if base != nil {
		b := base.Bounds()
		if b.Dx() != r.width || b.Dy() != r.height {
			return nil, errors.Errorf("tracking: base frame %d is %dx%d, want %dx%d", i, b.Dx(), b.Dy(), r.width, r.height)
		}
	}

	clear(r.overlay)
	for k := 0; k <= r.config.FadeLength && i-k >= 0; k++ {
		c := r.trajectory[i-k]
		v := 255 - r.config.FadeStep*k
		if !c.Present || v <= 0 {
			continue
		}
		if c.Row < 0 || c.Row >= r.height || c.Col < 0 || c.Col >= r.width {
			continue
		}
		j := c.Row*r.width + c.Col
		r.overlay[j] = max(r.overlay[j], uint8(v))
	}
	// Grow every centroid into its marker disk; overlaps keep the brightest.
	if err := images.DilateGray(r.overlay, r.width, r.height, r.config.MarkerRadius); err != nil {
		return nil, errors.Wrapf(err, "tracking: marker disks for frame %d", i)
	}

	out := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	for y := 0; y < r.height; y++ {
		for x := 0; x < r.width; x++ {
			px := color.RGBA{A: 255}
			if base != nil {
				b := base.Bounds()
				c := color.RGBAModel.Convert(base.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
				px.R, px.G, px.B = c.R, c.G, c.B
			}
			px.R = max(px.R, r.overlay[y*r.width+x])
			out.SetRGBA(x, y, px)
		}
	}
	return out, nil
}

// RenderTrack renders the whole trail video.
//
// Arguments:
//   - t: The trajectory.
//   - base: Frames to draw on, one per trajectory entry, or nil for black.
//   - width: Frame width in pixels.
//   - height: Frame height in pixels.
//   - config: Trail parameters.
//
// Returns:
//   - []*image.RGBA: One opaque frame per trajectory entry.
//   - error: A size mismatch or invalid configuration.
//
// @example
// out, err := tracking.RenderTrack(traj, nil, 640, 480, tracking.DefaultRenderConfig())
func RenderTrack(t Trajectory, base []image.Image, width, height int, config RenderConfig) ([]*image.RGBA, error) {
	if base != nil && len(base) != len(t) {
		return nil, errors.Errorf("tracking: %d base frames for %d centroids", len(base), len(t))
	}
	r, err := NewRenderer(t, width, height, config)
	if err != nil {
		return nil, err
	}
	out := make([]*image.RGBA, len(t))
	for i := range t {
		var b image.Image
		if base != nil {
			b = base[i]
		}
		if out[i], err = r.Frame(i, b); err != nil {
			return nil, err
		}
	}
	return out, nil
}

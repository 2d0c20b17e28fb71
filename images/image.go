// Package images - Grayscale frame, binary mask and label grids shared by the
// segmentation and tracking pipeline.
package images

import (
	"image"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// ErrSizeMismatch is returned when pixel data does not match the declared
// grid dimensions.
var ErrSizeMismatch = errors.New("images: pixel data does not match dimensions")

// Frame is a single grayscale video frame stored row-major.
//
// A frame is treated as immutable once it has been captured from the source
// video; every operation in this package returns a new frame.
type Frame struct {
	// The width of the frame in pixels.
	Width int `json:"width" yaml:"width"`
	// The height of the frame in pixels.
	Height int `json:"height" yaml:"height"`
	// Pix holds Width*Height intensities, row-major.
	Pix []float32 `json:"-" yaml:"-"`
}

// NewFrame allocates a zeroed frame.
func NewFrame(width, height int) *Frame {
	return &Frame{Width: width, Height: height, Pix: make([]float32, width*height)}
}

// FrameFromSlice wraps existing pixel data in a Frame.
//
// Arguments:
//   - width: The width of the frame.
//   - height: The height of the frame.
//   - pix: Row-major intensities, len(pix) must equal width*height.
//
// Returns:
//   - *Frame: The frame backed by pix.
//   - error: ErrSizeMismatch when the slice length is wrong.
func FrameFromSlice(width, height int, pix []float32) (*Frame, error) {
	if width <= 0 || height <= 0 || len(pix) != width*height {
		return nil, errors.Wrapf(ErrSizeMismatch, "%dx%d frame with %d pixels", width, height, len(pix))
	}
	return &Frame{Width: width, Height: height, Pix: pix}, nil
}

// At returns the intensity at (row, col).
func (f *Frame) At(row, col int) float32 {
	return f.Pix[row*f.Width+col]
}

// Set writes the intensity at (row, col).
func (f *Frame) Set(row, col int, v float32) {
	f.Pix[row*f.Width+col] = v
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	pix := make([]float32, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{Width: f.Width, Height: f.Height, Pix: pix}
}

// Bounds returns the frame rectangle with X = column and Y = row.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// MinMax returns the smallest and largest intensity in the frame.
func (f *Frame) MinMax() (float32, float32) {
	if len(f.Pix) == 0 {
		return 0, 0
	}
	lo, hi := math32.Inf(1), math32.Inf(-1)
	for _, v := range f.Pix {
		lo = math32.Min(lo, v)
		hi = math32.Max(hi, v)
	}
	return lo, hi
}

// Mean returns the arithmetic mean intensity, accumulated in float64.
func (f *Frame) Mean() float64 {
	if len(f.Pix) == 0 {
		return 0
	}
	var sum float64
	for _, v := range f.Pix {
		sum += float64(v)
	}
	return sum / float64(len(f.Pix))
}

// Mask is a binary grid with the same layout as Frame.
type Mask struct {
	Width  int
	Height int
	Pix    []bool
}

// NewMask allocates an all-false mask.
func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Pix: make([]bool, width*height)}
}

// FullMask allocates an all-true mask.
func FullMask(width, height int) *Mask {
	m := NewMask(width, height)
	for i := range m.Pix {
		m.Pix[i] = true
	}
	return m
}

// At reports whether (row, col) is set.
func (m *Mask) At(row, col int) bool {
	return m.Pix[row*m.Width+col]
}

// Set writes the value at (row, col).
func (m *Mask) Set(row, col int, v bool) {
	m.Pix[row*m.Width+col] = v
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	pix := make([]bool, len(m.Pix))
	copy(pix, m.Pix)
	return &Mask{Width: m.Width, Height: m.Height, Pix: pix}
}

// Count returns the number of set pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// Empty reports whether no pixel is set.
func (m *Mask) Empty() bool {
	for _, v := range m.Pix {
		if v {
			return false
		}
	}
	return true
}

// SameSize reports whether the mask has the given dimensions.
func (m *Mask) SameSize(width, height int) bool {
	return m.Width == width && m.Height == height
}

// And clears every pixel that is not set in other. Both masks must share
// dimensions.
func (m *Mask) And(other *Mask) {
	for i, v := range other.Pix {
		if !v {
			m.Pix[i] = false
		}
	}
}

// Extent returns the row and column span (max minus min) of the set pixels.
// An empty mask has a zero extent.
func (m *Mask) Extent() (height, width int) {
	minR, maxR, minC, maxC := m.Height, -1, m.Width, -1
	for r := 0; r < m.Height; r++ {
		row := m.Pix[r*m.Width : (r+1)*m.Width]
		for c, v := range row {
			if !v {
				continue
			}
			minR = min(minR, r)
			maxR = max(maxR, r)
			minC = min(minC, c)
			maxC = max(maxC, c)
		}
	}
	if maxR < 0 {
		return 0, 0
	}
	return maxR - minR, maxC - minC
}

// Centroid returns the truncated mean (row, col) of the set pixels. ok is false
// when the mask is empty.
func (m *Mask) Centroid() (row, col int, ok bool) {
	var sumR, sumC float64
	n := 0
	for i, v := range m.Pix {
		if !v {
			continue
		}
		sumR += float64(i / m.Width)
		sumC += float64(i % m.Width)
		n++
	}
	if n == 0 {
		return 0, 0, false
	}
	return int(sumR / float64(n)), int(sumC / float64(n)), true
}

package images

import (
	"image"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"
)

// Luminance weights for RGB to gray conversion (ITU-R BT.709).
const (
	lumaR = 0.2125
	lumaG = 0.7154
	lumaB = 0.0721
)

// FromImage converts any image to a grayscale frame with intensities in [0,1].
//
// *image.Gray inputs take a fast path; other color models are reduced with
// BT.709 luminance weights.
//
// Arguments:
//   - img: The decoded video frame.
//
// Returns:
//   - *Frame: The grayscale frame.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	f := NewFrame(b.Dx(), b.Dy())
	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < f.Height; y++ {
			row := g.Pix[y*g.Stride : y*g.Stride+f.Width]
			for x, v := range row {
				f.Pix[y*f.Width+x] = float32(v) / MaxLevel
			}
		}
		return f
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			v := lumaR*float32(r) + lumaG*float32(g) + lumaB*float32(bl)
			f.Pix[(y-b.Min.Y)*f.Width+(x-b.Min.X)] = v / 0xffff
		}
	}
	return f
}

// ToGray renders the frame as an 8-bit image after normalizing it to [0,255].
func (f *Frame) ToGray() *image.Gray {
	n := NormalizeTo8Bit(f)
	g := image.NewGray(f.Bounds())
	for i, v := range n.Pix {
		g.Pix[i] = uint8(v)
	}
	return g
}

// ToGray renders the mask as a black and white image.
func (m *Mask) ToGray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		if v {
			g.Pix[i] = MaxLevel
		}
	}
	return g
}

// Downsample shrinks img by an integer ratio with bilinear interpolation.
// A ratio of 1 or less returns img unchanged.
func Downsample(img image.Image, ratio int) image.Image {
	if ratio <= 1 {
		return img
	}
	b := img.Bounds()
	w := uint(math32.Max(1, float32(b.Dx()/ratio)))
	h := uint(math32.Max(1, float32(b.Dy()/ratio)))
	return resize.Resize(w, h, img, resize.Bilinear)
}

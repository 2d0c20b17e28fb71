package images

import "github.com/chewxy/math32"

// gaussianTruncate is the kernel half-width in standard deviations.
const gaussianTruncate = 4.0

// gaussianKernel returns normalized 1-D weights for the given sigma.
func gaussianKernel(sigma float32) []float32 {
	radius := int(gaussianTruncate*sigma + 0.5)
	weights := make([]float32, 2*radius+1)
	var sum float32
	for i := -radius; i <= radius; i++ {
		x := float32(i)
		w := math32.Exp(-(x * x) / (2 * sigma * sigma))
		weights[i+radius] = w
		sum += w
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

// GaussianBlur smooths a frame with a separable Gaussian of the given sigma.
//
// Samples outside the frame repeat the nearest edge pixel, and intensities
// are not rescaled, so the output stays in the input's range. A sigma of zero
// or less returns a copy of the input.
//
// Arguments:
//   - f: The frame to blur.
//   - sigma: Standard deviation in pixels.
//
// Returns:
//   - *Frame: The blurred frame.
func GaussianBlur(f *Frame, sigma float32) *Frame {
	if sigma <= 0 {
		return f.Clone()
	}
	k := gaussianKernel(sigma)
	radius := len(k) / 2
	tmp := NewFrame(f.Width, f.Height)
	out := NewFrame(f.Width, f.Height)

	// Horizontal pass.
	for r := 0; r < f.Height; r++ {
		row := f.Pix[r*f.Width : (r+1)*f.Width]
		for c := 0; c < f.Width; c++ {
			var acc float32
			for i, w := range k {
				cc := clampIndex(c+i-radius, f.Width)
				acc += w * row[cc]
			}
			tmp.Pix[r*f.Width+c] = acc
		}
	}

	// Vertical pass.
	for r := 0; r < f.Height; r++ {
		for c := 0; c < f.Width; c++ {
			var acc float32
			for i, w := range k {
				rr := clampIndex(r+i-radius, f.Height)
				acc += w * tmp.Pix[rr*f.Width+c]
			}
			out.Pix[r*f.Width+c] = acc
		}
	}
	return out
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

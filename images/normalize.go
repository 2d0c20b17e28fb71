package images

import "github.com/chewxy/math32"

// MaxLevel is the top of the 8-bit intensity scale used for thresholding.
const MaxLevel = 255

// NormalizeTo8Bit linearly rescales a frame so its minimum maps to 0 and its
// maximum to 255, truncating to integer levels.
//
// A constant frame (max == min) normalizes to all zeros rather than dividing
// by zero.
//
// Arguments:
//   - f: The frame to normalize.
//
// Returns:
//   - *Frame: A new frame with integer levels in [0,255].
func NormalizeTo8Bit(f *Frame) *Frame {
	out := NewFrame(f.Width, f.Height)
	lo, hi := f.MinMax()
	span := hi - lo
	if span <= 0 {
		return out
	}
	for i, v := range f.Pix {
		out.Pix[i] = math32.Floor((v - lo) / span * MaxLevel)
	}
	return out
}

// Clip returns a copy of the frame with every intensity limited to [lo, hi].
func Clip(f *Frame, lo, hi float32) *Frame {
	out := f.Clone()
	for i, v := range out.Pix {
		out.Pix[i] = math32.Max(lo, math32.Min(hi, v))
	}
	return out
}

// ApplyMask returns a copy of the frame with pixels outside m set to zero.
func ApplyMask(f *Frame, m *Mask) *Frame {
	out := f.Clone()
	for i, valid := range m.Pix {
		if !valid {
			out.Pix[i] = 0
		}
	}
	return out
}

// Invert mirrors intensities around the given scale maximum (1 for [0,1]
// frames, 255 for 8-bit frames).
func Invert(f *Frame, scale float32) *Frame {
	out := NewFrame(f.Width, f.Height)
	for i, v := range f.Pix {
		out.Pix[i] = scale - v
	}
	return out
}

// Above returns the mask of pixels strictly greater than threshold.
func Above(f *Frame, threshold float32) *Mask {
	m := NewMask(f.Width, f.Height)
	for i, v := range f.Pix {
		m.Pix[i] = v > threshold
	}
	return m
}

// Below returns the mask of pixels strictly less than threshold.
func Below(f *Frame, threshold float32) *Mask {
	m := NewMask(f.Width, f.Height)
	for i, v := range f.Pix {
		m.Pix[i] = v < threshold
	}
	return m
}

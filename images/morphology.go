package images

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Footprint selects the structuring element used for binary erosion.
type Footprint int

const (
	// FootprintCross is the 3x3 plus-shaped element (4-neighbourhood).
	FootprintCross Footprint = iota
	// FootprintSquare is the full 3x3 element (8-neighbourhood).
	FootprintSquare
)

func (fp Footprint) shape() gocv.MorphShape {
	if fp == FootprintSquare {
		return gocv.MorphRect
	}
	return gocv.MorphCross
}

// String returns the footprint name.
func (fp Footprint) String() string {
	if fp == FootprintSquare {
		return "square"
	}
	return "cross"
}

// Erode performs one binary erosion pass.
//
// A pixel survives when it and every in-bounds neighbour under the footprint
// are set. OpenCV pads the border with the erosion identity, so edges are not
// eaten by the frame border.
//
// Arguments:
//   - m: The mask to erode.
//   - fp: The structuring element.
//
// Returns:
//   - *Mask: A new, eroded mask.
//   - error: An OpenCV failure.
func Erode(m *Mask, fp Footprint) (*Mask, error) {
	if len(m.Pix) == 0 {
		return NewMask(m.Width, m.Height), nil
	}
	src, err := gocv.NewMatFromBytes(m.Height, m.Width, gocv.MatTypeCV8U, m.bytes())
	if err != nil {
		return nil, errors.Wrap(err, "images: mask to mat")
	}
	defer src.Close()

	kernel := gocv.GetStructuringElement(fp.shape(), image.Pt(3, 3))
	defer kernel.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	if err := gocv.Erode(src, &dst, kernel); err != nil {
		return nil, errors.Wrap(err, "images: erode")
	}
	return maskFromBytes(m.Width, m.Height, dst.ToBytes()), nil
}

// DiskOffsets returns the offsets (X = column, Y = row) of a filled disk with
// the given radius, centre included.
func DiskOffsets(radius int) []image.Point {
	if radius < 0 {
		return nil
	}
	pts := make([]image.Point, 0, (2*radius+1)*(2*radius+1))
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				pts = append(pts, image.Pt(dx, dy))
			}
		}
	}
	return pts
}

// diskKernel builds the structuring element for DiskOffsets(radius).
// gocv.MorphEllipse is wider than the Euclidean disk from radius 2 on.
func diskKernel(radius int) (gocv.Mat, error) {
	size := 2*radius + 1
	buf := make([]byte, size*size)
	for _, o := range DiskOffsets(radius) {
		buf[(o.Y+radius)*size+o.X+radius] = 1
	}
	return gocv.NewMatFromBytes(size, size, gocv.MatTypeCV8U, buf)
}

// DilateGray replaces every pixel of an 8-bit plane with the maximum of the
// plane under a disk of the given radius centred on it. pix is updated in
// place.
//
// Arguments:
//   - pix: Row-major intensities, len(pix) must equal width*height.
//   - width: The width of the plane.
//   - height: The height of the plane.
//   - radius: The disk radius in pixels.
//
// Returns:
//   - error: ErrSizeMismatch, a negative radius or an OpenCV failure.
func DilateGray(pix []uint8, width, height, radius int) error {
	if width <= 0 || height <= 0 || len(pix) != width*height {
		return errors.Wrapf(ErrSizeMismatch, "%dx%d plane with %d pixels", width, height, len(pix))
	}
	if radius < 0 {
		return errors.Errorf("images: negative dilation radius %d", radius)
	}
	if radius == 0 {
		return nil
	}

	src, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8U, pix)
	if err != nil {
		return errors.Wrap(err, "images: plane to mat")
	}
	defer src.Close()

	kernel, err := diskKernel(radius)
	if err != nil {
		return errors.Wrap(err, "images: disk kernel")
	}
	defer kernel.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	if err := gocv.Dilate(src, &dst, kernel); err != nil {
		return errors.Wrap(err, "images: dilate")
	}
	copy(pix, dst.ToBytes())
	return nil
}

// Dilate grows every set pixel by a disk of the given radius.
func Dilate(m *Mask, radius int) (*Mask, error) {
	buf := m.bytes()
	if err := DilateGray(buf, m.Width, m.Height, radius); err != nil {
		return nil, err
	}
	return maskFromBytes(m.Width, m.Height, buf), nil
}

// bytes returns the mask as an 8-bit plane with set pixels at 255.
func (m *Mask) bytes() []byte {
	buf := make([]byte, len(m.Pix))
	for i, v := range m.Pix {
		if v {
			buf[i] = 255
		}
	}
	return buf
}

func maskFromBytes(width, height int, buf []byte) *Mask {
	out := NewMask(width, height)
	for i := range out.Pix {
		out.Pix[i] = buf[i] != 0
	}
	return out
}

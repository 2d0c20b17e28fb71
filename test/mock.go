// Package test - Deterministic synthetic arena videos for end-to-end tests.
package test

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Absent marks a path step where the animal is out of view.
var Absent = image.Point{X: -1, Y: -1}

// MockFrameGenerator draws top-down arena frames: bright walls around a dark
// floor with a square animal. With Black set the levels are mirrored, giving
// a dark animal on a bright floor.
//
// Arguments:
// - None.
//
// Returns:
// - A generator for frames with a controlled animal path.
//
// @example
// gen := test.NewMockFrameGenerator(80, 60)
// frames := gen.Sequence(gen.Circle(20, 15))
type MockFrameGenerator struct {
	Width  int
	Height int
	// Wall is the wall thickness in pixels.
	Wall int
	// Size is the animal's side length in pixels; odd sizes keep the
	// centroid on the given point.
	Size       int
	FloorLevel uint8
	WallLevel  uint8
	Animal     uint8
	Black      bool
}

// NewMockFrameGenerator creates a generator with a 2 pixel wall and a 5x5
// white animal.
//
// Arguments:
// - width: Frame width in pixels.
// - height: Frame height in pixels.
//
// Returns:
// - A configured MockFrameGenerator instance.
func NewMockFrameGenerator(width, height int) *MockFrameGenerator {
	return &MockFrameGenerator{
		Width:      width,
		Height:     height,
		Wall:       2,
		Size:       5,
		FloorLevel: 20,
		WallLevel:  200,
		Animal:     250,
	}
}

func (g *MockFrameGenerator) level(v uint8) uint8 {
	if g.Black {
		return 255 - v
	}
	return v
}

// Arena returns the empty arena.
func (g *MockFrameGenerator) Arena() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	floor, wall := g.level(g.FloorLevel), g.level(g.WallLevel)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			v := floor
			if x < g.Wall || y < g.Wall || x >= g.Width-g.Wall || y >= g.Height-g.Wall {
				v = wall
			}
			img.Pix[y*img.Stride+x] = v
		}
	}
	return img
}

// Frame returns the arena with the animal centered on p (X is the column).
// Absent yields the empty arena.
func (g *MockFrameGenerator) Frame(p image.Point) *image.Gray {
	img := g.Arena()
	if p == Absent {
		return img
	}
	half := g.Size / 2
	body := image.Rect(p.X-half, p.Y-half, p.X-half+g.Size, p.Y-half+g.Size).Intersect(img.Bounds())
	animal := g.level(g.Animal)
	for y := body.Min.Y; y < body.Max.Y; y++ {
		for x := body.Min.X; x < body.Max.X; x++ {
			img.Pix[y*img.Stride+x] = animal
		}
	}
	return img
}

// Sequence renders one frame per path step.
func (g *MockFrameGenerator) Sequence(path []image.Point) []image.Image {
	out := make([]image.Image, len(path))
	for i, p := range path {
		out[i] = g.Frame(p)
	}
	return out
}

// Circle returns n points evenly spaced on a circle around the arena center.
func (g *MockFrameGenerator) Circle(n int, radius float64) []image.Point {
	cx, cy := float64(g.Width/2), float64(g.Height/2)
	out := make([]image.Point, n)
	for i := range out {
		a := 2 * math.Pi * float64(i) / float64(n)
		out[i] = image.Point{
			X: int(math.Round(cx + radius*math.Cos(a))),
			Y: int(math.Round(cy + radius*math.Sin(a))),
		}
	}
	return out
}

// Line returns n points stepping by d from start.
func Line(start, d image.Point, n int) []image.Point {
	out := make([]image.Point, n)
	for i := range out {
		out[i] = start.Add(d.Mul(i))
	}
	return out
}

// WriteFrames saves frames as frame-NNNN.png files in dir.
func WriteFrames(dir string, frames []image.Image) error {
	for i, img := range frames {
		path := filepath.Join(dir, fmt.Sprintf("frame-%04d.png", i))
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrap(err, "test: create frame")
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return errors.Wrapf(err, "test: encode %s", path)
		}
		if err := f.Close(); err != nil {
			return errors.Wrapf(err, "test: close %s", path)
		}
	}
	return nil
}

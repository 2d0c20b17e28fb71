package images

import (
	"image"
	"sort"
)

// Connectivity selects which neighbours join pixels into one component.
type Connectivity int

const (
	// Connectivity4 joins edge-adjacent pixels only.
	Connectivity4 Connectivity = 4
	// Connectivity8 also joins diagonal neighbours.
	Connectivity8 Connectivity = 8
)

func (c Connectivity) offsets() []image.Point {
	if c == Connectivity4 {
		return crossOffsets
	}
	return squareOffsets
}

// Component is one labelled region and its pixel count.
type Component struct {
	Label int32 `json:"label" yaml:"label"`
	Size  int   `json:"size" yaml:"size"`
}

// Labels is a connected-component labelling of a mask. Zero is background;
// positive values identify components in raster order of their first pixel.
type Labels struct {
	Width  int
	Height int
	Pix    []int32
	// Sizes maps each live label to its pixel count.
	Sizes map[int32]int
}

// Label assigns a component id to every set pixel of m using a breadth-first
// flood fill.
//
// Arguments:
//   - m: The binary mask to label.
//   - conn: Neighbourhood used to join pixels.
//
// Returns:
//   - *Labels: The labelling with component sizes.
func Label(m *Mask, conn Connectivity) *Labels {
	l := &Labels{
		Width:  m.Width,
		Height: m.Height,
		Pix:    make([]int32, len(m.Pix)),
		Sizes:  make(map[int32]int),
	}
	offsets := conn.offsets()
	queue := make([]int, 0, 64)
	var next int32

	for start, set := range m.Pix {
		if !set || l.Pix[start] != 0 {
			continue
		}
		next++
		l.Pix[start] = next
		queue = append(queue[:0], start)
		size := 0
		for k := 0; k < len(queue); k++ {
			idx := queue[k]
			size++
			r, c := idx/m.Width, idx%m.Width
			for _, o := range offsets {
				nr, nc := r+o.Y, c+o.X
				if nr < 0 || nr >= m.Height || nc < 0 || nc >= m.Width {
					continue
				}
				n := nr*m.Width + nc
				if m.Pix[n] && l.Pix[n] == 0 {
					l.Pix[n] = next
					queue = append(queue, n)
				}
			}
		}
		l.Sizes[next] = size
	}
	return l
}

// Count returns the number of live components (background excluded).
func (l *Labels) Count() int {
	return len(l.Sizes)
}

// Foreground returns the number of labelled pixels.
func (l *Labels) Foreground() int {
	n := 0
	for _, s := range l.Sizes {
		n += s
	}
	return n
}

// RemoveSmall clears every component with fewer than minSize pixels.
func (l *Labels) RemoveSmall(minSize int) {
	removed := make(map[int32]bool)
	for id, s := range l.Sizes {
		if s < minSize {
			removed[id] = true
			delete(l.Sizes, id)
		}
	}
	if len(removed) == 0 {
		return
	}
	for i, id := range l.Pix {
		if removed[id] {
			l.Pix[i] = 0
		}
	}
}

// Components returns the live components ordered by label.
func (l *Labels) Components() []Component {
	out := make([]Component, 0, len(l.Sizes))
	for id, s := range l.Sizes {
		out = append(out, Component{Label: id, Size: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Largest returns the component with the most pixels; ties go to the lowest
// label. ok is false when there are no components.
func (l *Labels) Largest() (Component, bool) {
	var best Component
	found := false
	for _, c := range l.Components() {
		if !found || c.Size > best.Size {
			best = c
			found = true
		}
	}
	return best, found
}

// Mask returns the pixels belonging to one label.
func (l *Labels) Mask(label int32) *Mask {
	m := NewMask(l.Width, l.Height)
	for i, id := range l.Pix {
		m.Pix[i] = id == label
	}
	return m
}

// Binary returns the mask of all labelled pixels.
func (l *Labels) Binary() *Mask {
	m := NewMask(l.Width, l.Height)
	for i, id := range l.Pix {
		m.Pix[i] = id != 0
	}
	return m
}

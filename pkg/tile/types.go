package tile

import (
	"image"
	"math"
)

// Bounds is a page rectangle in page-space units (points).
type Bounds struct {
	X, Y          float64
	Width, Height float64
}

// Valid reports whether the bounds enclose a non-empty area.
func (b Bounds) Valid() bool {
	return b.Width > 0 && b.Height > 0 &&
		!math.IsInf(b.Width, 0) && !math.IsInf(b.Height, 0)
}

// LongEdge returns the larger of width and height.
func (b Bounds) LongEdge() float64 {
	return math.Max(b.Width, b.Height)
}

// Scale returns the extent of the bounds rendered at the given scale.
func (b Bounds) Scale(scale float64) Extent {
	return Extent{
		Width:  b.Width * scale,
		Height: b.Height * scale,
	}
}

// Extent is the size of a rendered page in device pixels. It is real valued;
// Pixels gives the integer bitmap size.
type Extent struct {
	Width, Height float64
}

// Pixels rounds the extent to whole pixels. Each edge is at least one pixel
// and at most MaxEdgePixels; use Within to reject extents beyond that.
func (e Extent) Pixels() image.Point {
	return image.Pt(roundEdge(e.Width), roundEdge(e.Height))
}

// Within reports whether the extent is finite and its rounded pixel area
// does not exceed limit. The area is computed in floating point so that
// huge extents cannot wrap around.
func (e Extent) Within(limit int) bool {
	if !finite(e.Width) || !finite(e.Height) {
		return false
	}
	w := math.Max(1, math.Round(e.Width))
	h := math.Max(1, math.Round(e.Height))
	return w <= MaxEdgePixels && h <= MaxEdgePixels && w*h <= float64(limit)
}

// Grid describes an equal-sized tiling of an extent.
type Grid struct {
	Columns    int
	Rows       int
	TileWidth  float64
	TileHeight float64
}

// Len returns the number of cells in the grid.
func (g Grid) Len() int {
	return g.Columns * g.Rows
}

// Cell is one tile of a grid, addressed in rendered-pixel space.
type Cell struct {
	Index  int
	Column int
	Row    int
	Rect   image.Rectangle
}

// MaxEdgePixels bounds pixel edges and grid dimensions so that products of
// two of them always fit in an int.
const MaxEdgePixels = math.MaxInt32

func roundEdge(v float64) int {
	return saturate(math.Round(v))
}

// saturate converts v to an int in [1, MaxEdgePixels].
func saturate(v float64) int {
	switch {
	case math.IsNaN(v) || v < 1:
		return 1
	case v > MaxEdgePixels:
		return MaxEdgePixels
	}
	return int(v)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

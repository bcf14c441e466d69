package tile

import (
	"image"
	"math"
)

// planEpsilon absorbs floating point noise in W/maxEdge so that an extent of
// exactly n tile edges does not plan n+1 columns.
const planEpsilon = 1e-9

// Plan derives the tile grid for an extent and a maximum tile edge.
//
// The second result is false when no split is needed (the extent fits in a
// single tile, or maxEdge is not positive). Callers fall back to the single
// image path in that case instead of using a 1x1 grid.
func Plan(e Extent, maxEdge float64) (Grid, bool) {
	if maxEdge <= 0 || e.Width <= 0 || e.Height <= 0 {
		return Grid{}, false
	}

	columns := divCeil(e.Width, maxEdge)
	rows := divCeil(e.Height, maxEdge)
	if columns <= 1 && rows <= 1 {
		return Grid{}, false
	}

	return Grid{
		Columns:    columns,
		Rows:       rows,
		TileWidth:  e.Width / float64(columns),
		TileHeight: e.Height / float64(rows),
	}, true
}

// Cells enumerates the grid cells over the pixel extent of e, outer loop
// over columns and inner loop over rows.
//
// Cell edges are rounded from the equal real-valued tile edges, so adjacent
// cells share an edge and the cells exactly cover the pixel extent.
func (g Grid) Cells(e Extent) []Cell {
	if g.Columns <= 0 || g.Rows <= 0 {
		return nil
	}

	size := e.Pixels()
	cells := make([]Cell, 0, g.Len())
	for col := 0; col < g.Columns; col++ {
		x0 := gridEdge(col, g.Columns, size.X)
		x1 := gridEdge(col+1, g.Columns, size.X)
		for row := 0; row < g.Rows; row++ {
			y0 := gridEdge(row, g.Rows, size.Y)
			y1 := gridEdge(row+1, g.Rows, size.Y)
			cells = append(cells, Cell{
				Index:  len(cells),
				Column: col,
				Row:    row,
				Rect:   image.Rect(x0, y0, x1, y1),
			})
		}
	}
	return cells
}

func divCeil(total, edge float64) int {
	return saturate(math.Ceil(total/edge - planEpsilon))
}

// gridEdge returns the k-th of n edges over total pixels.
func gridEdge(k, n, total int) int {
	if k >= n {
		return total
	}
	return int(math.Round(float64(k) * float64(total) / float64(n)))
}

package grid

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Converter maps between world coordinates (x, z) in metres and grid cells.
// Cell (0,0) is centred on Origin; columns advance along +x and rows along +z.
type Converter struct {
	Origin   r2.Vec
	CellSize float64
	Rows     int
	Cols     int
}

// NewConverter builds a Converter sized to g.
func NewConverter(g *Grid, origin r2.Vec, cellSize float64) Converter {
	rows, cols := g.Dimensions()
	return Converter{Origin: origin, CellSize: cellSize, Rows: rows, Cols: cols}
}

// WorldToGrid returns the nearest cell to (x, z), clamped into the grid.
func (cv Converter) WorldToGrid(x, z float64) Cell {
	d := r2.Scale(1/cv.CellSize, r2.Sub(r2.Vec{X: x, Y: z}, cv.Origin))
	col := clamp(int(math.Round(d.X)), 0, cv.Cols-1)
	row := clamp(int(math.Round(d.Y)), 0, cv.Rows-1)
	return Cell{Row: row, Col: col}
}

// GridToWorld returns the world position of the centre of c. The returned
// vector's Y component is the world z coordinate.
func (cv Converter) GridToWorld(c Cell) r2.Vec {
	return r2.Add(cv.Origin, r2.Scale(cv.CellSize, r2.Vec{X: float64(c.Col), Y: float64(c.Row)}))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

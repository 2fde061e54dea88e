// Package grid models the static line map the robot drives on: which cells
// are traversable, how cells map to world coordinates, and how a map table is
// loaded at startup. A Grid is immutable after construction and safe to share.
package grid

import (
	"errors"
	"fmt"
)

const (
	// Pathable marks a cell on the black line network.
	Pathable = 0
	// Blocked marks white space.
	Blocked = 1
)

var ErrMalformedMap = errors.New("malformed grid map")

// Grid is a rectangular, read-only pathability table.
type Grid struct {
	rows  int
	cols  int
	cells []uint8
}

// New validates a row-major table and copies it into a Grid. Every row must
// have the same non-zero length and every value must be Pathable or Blocked.
func New(table [][]int) (*Grid, error) {
	if len(table) == 0 || len(table[0]) == 0 {
		return nil, fmt.Errorf("%w: empty table", ErrMalformedMap)
	}
	rows, cols := len(table), len(table[0])
	g := &Grid{rows: rows, cols: cols, cells: make([]uint8, 0, rows*cols)}
	for r, row := range table {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrMalformedMap, r, len(row), cols)
		}
		for c, v := range row {
			if v != Pathable && v != Blocked {
				return nil, fmt.Errorf("%w: cell (%d,%d) has value %d", ErrMalformedMap, r, c, v)
			}
			g.cells = append(g.cells, uint8(v))
		}
	}
	return g, nil
}

// MustNew is New for static tables; it panics on a malformed table.
func MustNew(table [][]int) *Grid {
	g, err := New(table)
	if err != nil {
		panic(err)
	}
	return g
}

// Dimensions returns (rows, cols).
func (g *Grid) Dimensions() (int, int) {
	return g.rows, g.cols
}

// InBounds reports whether c addresses a cell of the table.
func (g *Grid) InBounds(c Cell) bool {
	return c.Row >= 0 && c.Row < g.rows && c.Col >= 0 && c.Col < g.cols
}

// IsPathable reports whether c is in bounds and on the line network.
func (g *Grid) IsPathable(c Cell) bool {
	return g.InBounds(c) && g.cells[c.Row*g.cols+c.Col] == Pathable
}

// neighborOffsets is the expansion order: right, left, down, up.
var neighborOffsets = [4]Cell{{0, 1}, {0, -1}, {1, 0}, {-1, 0}}

// Neighbors appends the pathable 4-connected neighbours of c to dst, in the
// fixed order right, left, down, up, and returns the extended slice.
func (g *Grid) Neighbors(dst []Cell, c Cell) []Cell {
	for _, d := range neighborOffsets {
		if n := c.Add(d); g.IsPathable(n) {
			dst = append(dst, n)
		}
	}
	return dst
}

// PathableCells returns every pathable cell in row-major order.
func (g *Grid) PathableCells() []Cell {
	var out []Cell
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if g.cells[r*g.cols+c] == Pathable {
				out = append(out, Cell{r, c})
			}
		}
	}
	return out
}

// ValidateEndpoints fails when a configured endpoint (goal, initial cell) is
// outside the table or off the line network.
func (g *Grid) ValidateEndpoints(named map[string]Cell) error {
	for name, c := range named {
		if !g.InBounds(c) {
			return fmt.Errorf("%s %v is outside the %dx%d grid", name, c, g.rows, g.cols)
		}
		if !g.IsPathable(c) {
			return fmt.Errorf("%s %v is not on a pathable line", name, c)
		}
	}
	return nil
}

// Default returns the built-in 15x21 competition map (0 = line, 1 = space).
func Default() *Grid {
	return MustNew([][]int{
		{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 1, 0, 1, 0, 1, 0},
		{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 1, 0, 1, 0, 1, 0},
		{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		{0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0},
		{0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0},
		{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0},
		{0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0},
		{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		{0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0},
		{0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		{0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0},
		{0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0},
		{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		{0, 1, 0, 1, 0, 1, 0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		{0, 1, 0, 1, 0, 1, 0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
	})
}

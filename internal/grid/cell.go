package grid

import (
	"encoding/json"
	"fmt"
)

// Cell is a (row, col) address on the navigation map. On the wire it is the
// two-element array [row, col].
type Cell struct {
	Row int
	Col int
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Add returns c offset by d.
func (c Cell) Add(d Cell) Cell {
	return Cell{Row: c.Row + d.Row, Col: c.Col + d.Col}
}

// Sub returns the offset from o to c.
func (c Cell) Sub(o Cell) Cell {
	return Cell{Row: c.Row - o.Row, Col: c.Col - o.Col}
}

// Chebyshev returns max(|Δrow|, |Δcol|) between two cells.
func (c Cell) Chebyshev(o Cell) int {
	return max(abs(c.Row-o.Row), abs(c.Col-o.Col))
}

// IsUnitStep reports whether c, read as an offset, moves exactly one row or
// one column, never both.
func (c Cell) IsUnitStep() bool {
	return abs(c.Row)+abs(c.Col) == 1
}

// MarshalJSON encodes the cell as [row, col].
func (c Cell) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{c.Row, c.Col})
}

// UnmarshalJSON accepts exactly two integers.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var raw []json.Number
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("grid cell: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("grid cell: want [row, col], got %d elements", len(raw))
	}
	row, err := raw[0].Int64()
	if err != nil {
		return fmt.Errorf("grid cell row %q: %w", raw[0], err)
	}
	col, err := raw[1].Int64()
	if err != nil {
		return fmt.Errorf("grid cell col %q: %w", raw[1], err)
	}
	c.Row, c.Col = int(row), int(col)
	return nil
}

// Path is an ordered walk of adjacent pathable cells. An empty Path means
// "no plan".
type Path []Cell

// Index returns the position of c in p, or -1.
func (p Path) Index(c Cell) int {
	for i, pc := range p {
		if pc == c {
			return i
		}
	}
	return -1
}

// Last returns the final cell. It panics on an empty path.
func (p Path) Last() Cell {
	return p[len(p)-1]
}

// Validate checks the Path invariant against g: every step is a unit cardinal
// move and every cell is pathable.
func (p Path) Validate(g *Grid) error {
	for i, c := range p {
		if !g.IsPathable(c) {
			return fmt.Errorf("path cell %d %v is not pathable", i, c)
		}
		if i > 0 && !c.Sub(p[i-1]).IsUnitStep() {
			return fmt.Errorf("path step %d %v -> %v is not a unit cardinal step", i, p[i-1], c)
		}
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

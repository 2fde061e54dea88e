// Package navviz renders the planner's view of the grid for the debug
// routes: an interactive go-echarts page and a static gonum/plot PNG.
package navviz

import (
	"github.com/banshee-data/gridnav/internal/grid"
	"github.com/banshee-data/gridnav/internal/planning"
)

// Layers splits a grid and a planner snapshot into the cell sets that are
// drawn, one series each. Obstacles are not repeated in Free.
type Layers struct {
	Rows, Cols int
	Free       []grid.Cell
	Blocked    []grid.Cell
	Obstacles  []grid.Cell
	Path       grid.Path
	Cursor     int
	Robot      *grid.Cell
	Goal       *grid.Cell
}

// BuildLayers collects the drawable layers. snap may be nil.
func BuildLayers(g *grid.Grid, snap *planning.Snapshot) Layers {
	l := Layers{}
	l.Rows, l.Cols = g.Dimensions()

	reported := map[grid.Cell]bool{}
	if snap != nil {
		for _, c := range snap.Obstacles {
			reported[c] = true
		}
		l.Obstacles = append(l.Obstacles, snap.Obstacles...)
		l.Path = append(l.Path, snap.Tracker.Path...)
		l.Cursor = snap.Tracker.Cursor
		l.Robot = snap.Tracker.Actual
		l.Goal = snap.Tracker.Goal
	}

	for r := 0; r < l.Rows; r++ {
		for c := 0; c < l.Cols; c++ {
			cell := grid.Cell{Row: r, Col: c}
			switch {
			case reported[cell]:
			case g.IsPathable(cell):
				l.Free = append(l.Free, cell)
			default:
				l.Blocked = append(l.Blocked, cell)
			}
		}
	}
	return l
}

// Remaining returns the part of the path from the cursor on.
func (l Layers) Remaining() grid.Path {
	if l.Cursor < 0 || l.Cursor >= len(l.Path) {
		return nil
	}
	return l.Path[l.Cursor:]
}

package planning

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/banshee-data/gridnav/internal/grid"
)

var (
	// ErrInvalidEndpoint is returned when start or goal is out of bounds or
	// not pathable. Callers must not retry with the same endpoints.
	ErrInvalidEndpoint = errors.New("invalid path endpoint")

	// ErrNoPathFound labels an exhausted search in logs and the run journal.
	// Plan itself reports it as an empty Path with a nil error.
	ErrNoPathFound = errors.New("no path found")
)

// PlanStats describes one search.
type PlanStats struct {
	Explored int
}

// Planner computes uniform-cost shortest paths over a Grid.
type Planner struct {
	grid *grid.Grid
}

// NewPlanner returns a Planner over g.
func NewPlanner(g *grid.Grid) *Planner {
	return &Planner{grid: g}
}

// Plan returns a shortest 4-connected path from start to goal, both
// inclusive. An unreachable goal yields an empty Path and a nil error.
func (p *Planner) Plan(start, goal grid.Cell) (grid.Path, error) {
	path, _, err := p.PlanWithStats(start, goal)
	return path, err
}

// PlanWithStats is Plan plus search statistics.
//
// Nodes are expanded by non-decreasing cost; equal costs expand in the
// order they were pushed, so identical inputs always produce the identical
// path.
func (p *Planner) PlanWithStats(start, goal grid.Cell) (grid.Path, PlanStats, error) {
	var stats PlanStats
	if !p.grid.IsPathable(start) {
		return nil, stats, fmt.Errorf("%w: start %v", ErrInvalidEndpoint, start)
	}
	if !p.grid.IsPathable(goal) {
		return nil, stats, fmt.Errorf("%w: goal %v", ErrInvalidEndpoint, goal)
	}

	cameFrom := map[grid.Cell]grid.Cell{}
	cost := map[grid.Cell]int{start: 0}
	closed := map[grid.Cell]bool{}

	frontier := &costHeap{}
	var seq uint64
	heap.Push(frontier, frontierItem{cell: start, cost: 0, seq: seq})

	found := false
	neighbors := make([]grid.Cell, 0, 4)
	for frontier.Len() > 0 {
		item := heap.Pop(frontier).(frontierItem)
		if closed[item.cell] {
			// stale entry superseded by a cheaper push
			continue
		}
		closed[item.cell] = true
		stats.Explored++

		if item.cell == goal {
			found = true
			break
		}

		neighbors = p.grid.Neighbors(neighbors[:0], item.cell)
		for _, next := range neighbors {
			newCost := item.cost + 1
			if old, seen := cost[next]; seen && newCost >= old {
				continue
			}
			cost[next] = newCost
			cameFrom[next] = item.cell
			seq++
			heap.Push(frontier, frontierItem{cell: next, cost: newCost, seq: seq})
		}
	}

	if !found {
		return nil, stats, nil
	}

	path := grid.Path{goal}
	for c := goal; c != start; {
		c = cameFrom[c]
		path = append(path, c)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, stats, nil
}

type frontierItem struct {
	cell grid.Cell
	cost int
	seq  uint64
}

// costHeap is a binary min-heap ordered by (cost, seq).
type costHeap []frontierItem

func (h costHeap) Len() int { return len(h) }
func (h costHeap) Less(i, j int) bool {
	if h[i].cost != h[j].cost {
		return h[i].cost < h[j].cost
	}
	return h[i].seq < h[j].seq
}
func (h costHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *costHeap) Push(x any)   { *h = append(*h, x.(frontierItem)) }
func (h *costHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

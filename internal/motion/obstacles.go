package motion

import (
	"math"

	"github.com/banshee-data/gridnav/internal/grid"
)

// DefaultObstacleThreshold is the range reading above which something is
// considered to be in the way.
const DefaultObstacleThreshold = 110

// Facing is the coarse heading sector used to project range readings.
type Facing int

const (
	FacingRight Facing = iota // +col
	FacingDown                // +row
	FacingLeft                // -col
	FacingUp                  // -row
)

func (f Facing) String() string {
	switch f {
	case FacingRight:
		return "right"
	case FacingDown:
		return "down"
	case FacingLeft:
		return "left"
	default:
		return "up"
	}
}

// Range sensor slots, in Sample.Range order.
const (
	RangeFront = iota
	RangeFrontLeft
	RangeFrontRight
)

// sensorOffsets[facing][slot] is the cell each range sensor looks at,
// relative to the robot's cell.
var sensorOffsets = [4][3]grid.Cell{
	FacingRight: {{Row: 0, Col: 1}, {Row: -1, Col: 1}, {Row: 1, Col: 1}},
	FacingDown:  {{Row: 1, Col: 0}, {Row: 1, Col: 1}, {Row: 1, Col: -1}},
	FacingLeft:  {{Row: 0, Col: -1}, {Row: 1, Col: -1}, {Row: -1, Col: -1}},
	FacingUp:    {{Row: -1, Col: 0}, {Row: -1, Col: -1}, {Row: -1, Col: 1}},
}

// FacingOf buckets theta: [0°,45°] and [315°,360°) face right, (45°,135°]
// down, (135°,225°] left, the rest up.
func FacingOf(theta float64) Facing {
	deg := math.Mod(theta*180/math.Pi, 360)
	if deg < 0 {
		deg += 360
	}
	switch {
	case deg <= 45 || deg >= 315:
		return FacingRight
	case deg <= 135:
		return FacingDown
	case deg <= 225:
		return FacingLeft
	default:
		return FacingUp
	}
}

// SensorCell returns the cell range sensor slot looks at from pos.
func SensorCell(pos grid.Cell, theta float64, slot int) grid.Cell {
	return pos.Add(sensorOffsets[FacingOf(theta)][slot])
}

// ObstacleMapper projects range readings onto grid cells. Every cell is
// reported at most once for the lifetime of the mapper.
type ObstacleMapper struct {
	grid      *grid.Grid
	threshold float64
	enabled   bool

	known   map[grid.Cell]bool
	pending []grid.Cell
}

// NewObstacleMapper returns an enabled mapper bounded by g.
func NewObstacleMapper(g *grid.Grid, threshold float64) *ObstacleMapper {
	return &ObstacleMapper{grid: g, threshold: threshold, enabled: true, known: map[grid.Cell]bool{}}
}

// SetEnabled turns projection on or off. A disabled mapper finds nothing.
func (m *ObstacleMapper) SetEnabled(on bool) { m.enabled = on }

// Process projects readings taken at pos with heading theta, queues cells
// never seen before and returns them.
func (m *ObstacleMapper) Process(pos grid.Cell, theta float64, readings [3]float64) []grid.Cell {
	if !m.enabled {
		return nil
	}
	var fresh []grid.Cell
	for slot, v := range readings {
		if v <= m.threshold {
			continue
		}
		c := SensorCell(pos, theta, slot)
		if !m.grid.InBounds(c) || m.known[c] {
			continue
		}
		m.known[c] = true
		fresh = append(fresh, c)
	}
	m.pending = append(m.pending, fresh...)
	return fresh
}

// Recent drains the queue of cells not yet reported.
func (m *ObstacleMapper) Recent() []grid.Cell {
	out := m.pending
	m.pending = nil
	return out
}

// Requeue puts cells whose report failed back at the front of the queue.
func (m *ObstacleMapper) Requeue(cells []grid.Cell) {
	if len(cells) == 0 {
		return
	}
	m.pending = append(append([]grid.Cell(nil), cells...), m.pending...)
}

// Known returns how many distinct cells have been detected.
func (m *ObstacleMapper) Known() int { return len(m.known) }

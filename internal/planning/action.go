package planning

import (
	"math"

	"github.com/banshee-data/gridnav/internal/grid"
	"github.com/banshee-data/gridnav/internal/monitoring"
	"github.com/banshee-data/gridnav/internal/nav"
)

var translatorLog = monitoring.Component("Translator")

// DefaultAngleThreshold is the heading error above which the robot is told
// to turn instead of driving forward.
const DefaultAngleThreshold = 40 * math.Pi / 180

// stepHeadings maps a unit grid step to the world heading that drives it.
var stepHeadings = map[grid.Cell]float64{
	{Row: 0, Col: 1}:  0,
	{Row: 0, Col: -1}: math.Pi,
	{Row: 1, Col: 0}:  math.Pi / 2,
	{Row: -1, Col: 0}: -math.Pi / 2,
}

// StepHeading returns the heading that moves from one cell to an adjacent
// one, and false when the cells are not a unit cardinal step apart.
func StepHeading(from, to grid.Cell) (float64, bool) {
	h, ok := stepHeadings[to.Sub(from)]
	return h, ok
}

// Translator turns the next path segment and the current heading into a
// discrete action.
type Translator struct {
	// AngleThreshold in radians. Errors strictly greater than it turn.
	AngleThreshold float64
}

// Translate decides the action for a robot at pos heading theta. next is
// Path[cursor+1], or nil when the cursor is on the last cell.
func (t Translator) Translate(pos grid.Cell, next *grid.Cell, theta float64, goal grid.Cell) nav.Action {
	if next == nil {
		if pos != goal {
			translatorLog.Printf("no next cell at %v but goal is %v, stopping", pos, goal)
		}
		return nav.Stop
	}

	target, ok := StepHeading(pos, *next)
	if !ok {
		translatorLog.Printf("non-adjacent path step %v -> %v, stopping", pos, *next)
		return nav.Stop
	}

	diff := nav.AngleDiff(target, theta)
	if math.Abs(diff) > t.AngleThreshold {
		if diff > 0 {
			return nav.TurnLeft
		}
		return nav.TurnRight
	}
	return nav.Forward
}

package planning

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/gridnav/internal/grid"
	"github.com/banshee-data/gridnav/internal/nav"
)

func cellPtr(r, c int) *grid.Cell { return &grid.Cell{Row: r, Col: c} }

func TestTranslate_AlignedIsForward(t *testing.T) {
	tr := Translator{AngleThreshold: DefaultAngleThreshold}
	pos := grid.Cell{Row: 5, Col: 5}

	tests := []struct {
		name  string
		next  *grid.Cell
		theta float64
	}{
		{"+col", cellPtr(5, 6), 0},
		{"-col", cellPtr(5, 4), math.Pi},
		{"-col via -pi", cellPtr(5, 4), -math.Pi},
		{"+row", cellPtr(6, 5), math.Pi / 2},
		{"-row", cellPtr(4, 5), -math.Pi / 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, nav.Forward, tr.Translate(pos, tt.next, tt.theta, grid.Cell{}))
		})
	}
}

func TestTranslate_ThresholdBoundary(t *testing.T) {
	tr := Translator{AngleThreshold: DefaultAngleThreshold}
	pos, next := grid.Cell{Row: 5, Col: 5}, cellPtr(5, 6)
	const eps = 1e-6

	// inside or on the boundary stays forward
	assert.Equal(t, nav.Forward, tr.Translate(pos, next, DefaultAngleThreshold-eps, grid.Cell{}))
	assert.Equal(t, nav.Forward, tr.Translate(pos, next, -(DefaultAngleThreshold - eps), grid.Cell{}))

	// beyond it flips to a turn; heading above target needs a right turn
	assert.Equal(t, nav.TurnRight, tr.Translate(pos, next, DefaultAngleThreshold+eps, grid.Cell{}))
	assert.Equal(t, nav.TurnLeft, tr.Translate(pos, next, -(DefaultAngleThreshold + eps), grid.Cell{}))
}

func TestTranslate_ExactBoundaryIsForward(t *testing.T) {
	// a threshold of exactly π/2 is representable without rounding in the
	// error computation for these headings
	tr := Translator{AngleThreshold: math.Pi / 2}
	pos := grid.Cell{Row: 5, Col: 5}
	assert.Equal(t, nav.Forward, tr.Translate(pos, cellPtr(6, 5), 0, grid.Cell{}))
	assert.Equal(t, nav.TurnLeft, tr.Translate(pos, cellPtr(6, 5), -0.01, grid.Cell{}))
}

func TestTranslate_WrapsAcrossPi(t *testing.T) {
	tr := Translator{AngleThreshold: DefaultAngleThreshold}
	pos := grid.Cell{Row: 5, Col: 5}
	// heading -170°, target 180°: a 10° error, not 350°
	assert.Equal(t, nav.Forward, tr.Translate(pos, cellPtr(5, 4), -170*math.Pi/180, grid.Cell{}))
	// heading 0, target -90°: turn right
	assert.Equal(t, nav.TurnRight, tr.Translate(pos, cellPtr(4, 5), 0, grid.Cell{}))
	// heading 0, target +90°: turn left
	assert.Equal(t, nav.TurnLeft, tr.Translate(pos, cellPtr(6, 5), 0, grid.Cell{}))
}

func TestTranslate_Defects(t *testing.T) {
	tr := Translator{AngleThreshold: DefaultAngleThreshold}
	pos := grid.Cell{Row: 5, Col: 5}

	assert.Equal(t, nav.Stop, tr.Translate(pos, cellPtr(6, 6), 0, grid.Cell{}), "diagonal")
	assert.Equal(t, nav.Stop, tr.Translate(pos, cellPtr(5, 7), 0, grid.Cell{}), "jump")
	assert.Equal(t, nav.Stop, tr.Translate(pos, cellPtr(5, 5), 0, grid.Cell{}), "no move")
	assert.Equal(t, nav.Stop, tr.Translate(pos, nil, 0, pos), "at goal")
	assert.Equal(t, nav.Stop, tr.Translate(pos, nil, 0, grid.Cell{}), "path ends short of goal")
}

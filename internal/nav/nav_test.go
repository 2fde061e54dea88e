package nav

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAngle(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero", 0, 0},
		{"already normalized", 1.0, 1.0},
		{"wraps above pi", 3 * math.Pi / 2, -math.Pi / 2},
		{"wraps below -pi", -3 * math.Pi / 2, math.Pi / 2},
		{"pi stays pi", math.Pi, math.Pi},
		{"minus pi maps to pi", -math.Pi, math.Pi},
		{"multiple turns", 4*math.Pi + 0.5, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, NormalizeAngle(tt.in), 1e-9)
		})
	}
}

func TestAngleDiff(t *testing.T) {
	// crossing the ±π seam must take the short way round
	assert.InDelta(t, 0.2, AngleDiff(-math.Pi+0.1, math.Pi-0.1), 1e-9)
	assert.InDelta(t, -0.2, AngleDiff(math.Pi-0.1, -math.Pi+0.1), 1e-9)
	assert.InDelta(t, math.Pi/2, AngleDiff(math.Pi/2, 0), 1e-9)
	assert.InDelta(t, -math.Pi/2, AngleDiff(-math.Pi/2, 2*math.Pi), 1e-9)
}

func TestAction(t *testing.T) {
	for _, a := range []Action{Forward, TurnLeft, TurnRight, Stop} {
		assert.True(t, a.Valid(), a)
	}
	assert.False(t, Action("reverse").Valid())
	assert.True(t, TurnLeft.IsTurn())
	assert.True(t, TurnRight.IsTurn())
	assert.False(t, Forward.IsTurn())
	assert.False(t, Stop.IsTurn())
}

func TestLineSensors(t *testing.T) {
	s := LineSensors{true, true, false}
	assert.True(t, s.Any())
	assert.Equal(t, 6, s.Index())
	assert.Equal(t, [3]int{1, 1, 0}, s.Binary())
	assert.Equal(t, "110", s.String())
	assert.Equal(t, s, LineSensorsFromBinary([3]int{1, 1, 0}))

	assert.False(t, LineSensors{}.Any())
	assert.Equal(t, 0, LineSensors{}.Index())
	assert.Equal(t, 7, LineSensors{true, true, true}.Index())
}

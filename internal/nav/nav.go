// Package nav holds the vocabulary shared by the motion and planning sides:
// discrete actions, the continuous pose, line-sensor patterns and angle
// arithmetic.
//
// Frame convention: x grows with grid columns, z grows with grid rows, and
// theta is measured from +x toward +z. A heading of 0 drives along +col, π/2
// along +row. Positive rotation (right wheel faster than left) increases
// theta, and turn_left is the command that produces it.
package nav

import (
	"fmt"
	"math"
)

// Action is a discrete motion command issued by the planning side.
type Action string

const (
	Forward   Action = "forward"
	TurnLeft  Action = "turn_left"
	TurnRight Action = "turn_right"
	Stop      Action = "stop"
)

// Valid reports whether a is one of the four known actions.
func (a Action) Valid() bool {
	switch a {
	case Forward, TurnLeft, TurnRight, Stop:
		return true
	}
	return false
}

// IsTurn reports whether a is turn_left or turn_right.
func (a Action) IsTurn() bool {
	return a == TurnLeft || a == TurnRight
}

// Pose is the dead-reckoned robot pose in world coordinates.
type Pose struct {
	X     float64 `json:"x"`
	Z     float64 `json:"z"`
	Theta float64 `json:"theta_rad"`
}

func (p Pose) String() string {
	return fmt.Sprintf("(x=%.3f z=%.3f θ=%.1f°)", p.X, p.Z, p.Theta*180/math.Pi)
}

// NormalizeAngle maps a into (-π, π] by composing atan2 with sin and cos.
func NormalizeAngle(a float64) float64 {
	n := math.Atan2(math.Sin(a), math.Cos(a))
	if n <= -math.Pi {
		n += 2 * math.Pi
	}
	return n
}

// AngleDiff returns the signed rotation from current to target, normalized
// into (-π, π]. A positive result is reached by turning left.
func AngleDiff(target, current float64) float64 {
	return NormalizeAngle(target - NormalizeAngle(current))
}

// LineSensors is the thresholded ground-sensor triple (left, center, right).
type LineSensors [3]bool

// Any reports whether any sensor sees the line.
func (s LineSensors) Any() bool {
	return s[0] || s[1] || s[2]
}

// Index packs the pattern into 0..7 with left as the most significant bit,
// so "110" is 6.
func (s LineSensors) Index() int {
	i := 0
	for _, on := range s {
		i <<= 1
		if on {
			i |= 1
		}
	}
	return i
}

// Binary returns the wire form, one 0/1 integer per sensor.
func (s LineSensors) Binary() [3]int {
	var b [3]int
	for i, on := range s {
		if on {
			b[i] = 1
		}
	}
	return b
}

func (s LineSensors) String() string {
	b := s.Binary()
	return fmt.Sprintf("%d%d%d", b[0], b[1], b[2])
}

// LineSensorsFromBinary converts the wire form back into booleans.
func LineSensorsFromBinary(b [3]int) LineSensors {
	return LineSensors{b[0] != 0, b[1] != 0, b[2] != 0}
}

package motion

import "github.com/banshee-data/gridnav/internal/nav"

// DefaultForwardSpeed is the straight-line wheel speed in rad/s.
const DefaultForwardSpeed = 1.5

// Correction differentials as multiples of the forward speed.
const (
	moderateCorrection   = 1.2
	aggressiveCorrection = 1.3
)

// LineFollowSpeeds steers along the line using the sensor pattern: a
// line seen to one side slows that side's wheel.
func LineFollowSpeeds(s nav.LineSensors, forward float64) WheelSpeeds {
	m := forward * moderateCorrection
	a := forward * aggressiveCorrection
	switch s.Index() {
	case 0b010:
		return WheelSpeeds{forward, forward}
	case 0b110:
		return WheelSpeeds{forward - m, forward}
	case 0b011:
		return WheelSpeeds{forward, forward - m}
	case 0b100:
		return WheelSpeeds{forward - a, forward}
	case 0b001:
		return WheelSpeeds{forward, forward - a}
	case 0b111:
		return WheelSpeeds{forward * 0.7, forward * 0.7}
	case 0b000:
		return WheelSpeeds{forward * 0.2, forward * 0.2}
	default: // 101
		return WheelSpeeds{forward * 0.3, forward * 0.3}
	}
}

// Package motion is the robot-side control loop: dead reckoning, obstacle
// projection, the multi-phase turn controller and line following, tied
// together by Loop which talks to the planning node over a link.
package motion

import (
	"math"

	"github.com/banshee-data/gridnav/internal/nav"
)

// Robot geometry in metres.
const (
	DefaultWheelRadius = 0.0205
	DefaultAxleLength  = 0.0581
)

// Odometry integrates wheel encoder angles into a world pose.
type Odometry struct {
	wheelRadius float64
	axleLength  float64

	pose        nav.Pose
	prevLeft    float64
	prevRight   float64
	initialized bool
}

// NewOdometry starts integrating from initial.
func NewOdometry(wheelRadius, axleLength float64, initial nav.Pose) *Odometry {
	initial.Theta = nav.NormalizeAngle(initial.Theta)
	return &Odometry{wheelRadius: wheelRadius, axleLength: axleLength, pose: initial}
}

// Update folds in the latest cumulative encoder angles (radians). The first
// call only records the baseline.
func (o *Odometry) Update(leftAngle, rightAngle float64) nav.Pose {
	if !o.initialized {
		o.prevLeft, o.prevRight = leftAngle, rightAngle
		o.initialized = true
		return o.pose
	}

	dl := (leftAngle - o.prevLeft) * o.wheelRadius
	dr := (rightAngle - o.prevRight) * o.wheelRadius
	o.prevLeft, o.prevRight = leftAngle, rightAngle

	d := (dl + dr) / 2
	w := (dr - dl) / o.axleLength
	mid := o.pose.Theta + w/2
	o.pose.X += d * math.Cos(mid)
	o.pose.Z += d * math.Sin(mid)
	o.pose.Theta = math.Atan2(math.Sin(o.pose.Theta+w), math.Cos(o.pose.Theta+w))
	return o.pose
}

// Pose returns the current estimate.
func (o *Odometry) Pose() nav.Pose { return o.pose }

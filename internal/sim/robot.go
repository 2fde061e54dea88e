// Package sim is a kinematic stand-in for the robot: a differential-drive
// body on a line-grid floor with ground and range sensors. It satisfies
// motion.SensorSource and motion.Actuator and integrates lazily against a
// clock, so a ManualClock drives it deterministically.
package sim

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/gridnav/internal/grid"
	"github.com/banshee-data/gridnav/internal/motion"
	"github.com/banshee-data/gridnav/internal/nav"
	"github.com/banshee-data/gridnav/internal/timeutil"
)

// Sensor readings produced by the simulator. Ground readings drop below the
// line threshold over a line; range readings rise above the obstacle
// threshold when an obstacle is in view.
const (
	GroundOnLine    = 300
	GroundOffLine   = 900
	RangeObstacle   = 300
	RangeClear      = 70
	DefaultLineHalf = 0.006
)

// Ground sensor geometry in metres, relative to the axle centre.
const (
	DefaultSensorForward = 0.035
	DefaultSensorSpacing = 0.012
)

type Config struct {
	Grid      *grid.Grid
	Converter grid.Converter
	Initial   nav.Pose

	WheelRadius float64
	AxleLength  float64

	// Obstacles are cells the range sensors see. They do not change the
	// floor lines.
	Obstacles []grid.Cell

	SensorForward float64
	SensorSpacing float64
	LineHalfWidth float64
}

func (c *Config) normalize() {
	if c.WheelRadius <= 0 {
		c.WheelRadius = motion.DefaultWheelRadius
	}
	if c.AxleLength <= 0 {
		c.AxleLength = motion.DefaultAxleLength
	}
	if c.SensorForward <= 0 {
		c.SensorForward = DefaultSensorForward
	}
	if c.SensorSpacing <= 0 {
		c.SensorSpacing = DefaultSensorSpacing
	}
	if c.LineHalfWidth <= 0 {
		c.LineHalfWidth = DefaultLineHalf
	}
}

// Robot is safe for use from the control loop and an observer goroutine.
type Robot struct {
	cfg       Config
	clock     timeutil.Clock
	obstacles map[grid.Cell]bool

	mu         sync.Mutex
	pose       nav.Pose
	leftAngle  float64
	rightAngle float64
	speeds     motion.WheelSpeeds
	last       time.Time
	travelled  float64
}

var (
	_ motion.SensorSource = (*Robot)(nil)
	_ motion.Actuator     = (*Robot)(nil)
)

func NewRobot(cfg Config, clock timeutil.Clock) *Robot {
	cfg.normalize()
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	obs := make(map[grid.Cell]bool, len(cfg.Obstacles))
	for _, c := range cfg.Obstacles {
		obs[c] = true
	}
	pose := cfg.Initial
	pose.Theta = nav.NormalizeAngle(pose.Theta)
	return &Robot{
		cfg:       cfg,
		clock:     clock,
		obstacles: obs,
		pose:      pose,
		last:      clock.Now(),
	}
}

// SetWheelSpeeds implements motion.Actuator. Motion up to now uses the
// previous speeds.
func (r *Robot) SetWheelSpeeds(left, right float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance()
	r.speeds = motion.WheelSpeeds{Left: left, Right: right}
}

// Sample implements motion.SensorSource.
func (r *Robot) Sample() motion.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance()

	s := motion.Sample{LeftWheel: r.leftAngle, RightWheel: r.rightAngle}
	for i, p := range r.groundSensors() {
		s.Ground[i] = GroundOffLine
		if r.onLine(p) {
			s.Ground[i] = GroundOnLine
		}
	}
	cell := r.cfg.Converter.WorldToGrid(r.pose.X, r.pose.Z)
	for slot := range s.Range {
		s.Range[slot] = RangeClear
		if r.obstacles[motion.SensorCell(cell, r.pose.Theta, slot)] {
			s.Range[slot] = RangeObstacle
		}
	}
	return s
}

// Pose returns the true pose.
func (r *Robot) Pose() nav.Pose {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance()
	return r.pose
}

// Cell returns the cell under the true pose.
func (r *Robot) Cell() grid.Cell {
	p := r.Pose()
	return r.cfg.Converter.WorldToGrid(p.X, p.Z)
}

// Speeds returns the last commanded wheel speeds.
func (r *Robot) Speeds() motion.WheelSpeeds {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.speeds
}

// Travelled returns the path length driven by the axle centre.
func (r *Robot) Travelled() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advance()
	return r.travelled
}

// advance integrates the current wheel speeds up to the clock's now. The
// pose update is the exact arc for constant speeds.
func (r *Robot) advance() {
	now := r.clock.Now()
	dt := now.Sub(r.last).Seconds()
	r.last = now
	if dt <= 0 {
		return
	}
	dl := r.speeds.Left * dt
	dr := r.speeds.Right * dt
	r.leftAngle += dl
	r.rightAngle += dr

	sl, sr := dl*r.cfg.WheelRadius, dr*r.cfg.WheelRadius
	d := (sl + sr) / 2
	w := (sr - sl) / r.cfg.AxleLength
	theta := r.pose.Theta
	if math.Abs(w) < 1e-12 {
		r.pose.X += d * math.Cos(theta)
		r.pose.Z += d * math.Sin(theta)
	} else {
		radius := d / w
		r.pose.X += radius * (math.Sin(theta+w) - math.Sin(theta))
		r.pose.Z -= radius * (math.Cos(theta+w) - math.Cos(theta))
	}
	r.pose.Theta = nav.NormalizeAngle(theta + w)
	r.travelled += math.Abs(d)
}

// groundSensors returns the left, centre and right sensor positions. Left
// is on the side theta increases toward.
func (r *Robot) groundSensors() [3]r2.Vec {
	heading := r2.Vec{X: math.Cos(r.pose.Theta), Y: math.Sin(r.pose.Theta)}
	left := r2.Vec{X: -heading.Y, Y: heading.X}
	centre := r2.Add(r2.Vec{X: r.pose.X, Y: r.pose.Z}, r2.Scale(r.cfg.SensorForward, heading))
	return [3]r2.Vec{
		r2.Add(centre, r2.Scale(r.cfg.SensorSpacing, left)),
		centre,
		r2.Sub(centre, r2.Scale(r.cfg.SensorSpacing, left)),
	}
}

// onLine reports whether p lies on a floor line. Lines join the centres of
// adjacent pathable cells.
func (r *Robot) onLine(p r2.Vec) bool {
	cv := r.cfg.Converter
	near := cv.WorldToGrid(p.X, p.Y)
	var buf []grid.Cell
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			c := grid.Cell{Row: near.Row + dr, Col: near.Col + dc}
			if !r.cfg.Grid.IsPathable(c) {
				continue
			}
			a := cv.GridToWorld(c)
			buf = r.cfg.Grid.Neighbors(buf[:0], c)
			for _, n := range buf {
				if segmentDistance(p, a, cv.GridToWorld(n)) <= r.cfg.LineHalfWidth {
					return true
				}
			}
		}
	}
	return false
}

func segmentDistance(p, a, b r2.Vec) float64 {
	ab := r2.Sub(b, a)
	l2 := r2.Dot(ab, ab)
	if l2 == 0 {
		return r2.Norm(r2.Sub(p, a))
	}
	t := math.Max(0, math.Min(1, r2.Dot(r2.Sub(p, a), ab)/l2))
	return r2.Norm(r2.Sub(p, r2.Add(a, r2.Scale(t, ab))))
}

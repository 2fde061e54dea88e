package sim

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/gridnav/internal/grid"
	"github.com/banshee-data/gridnav/internal/motion"
	"github.com/banshee-data/gridnav/internal/nav"
	"github.com/banshee-data/gridnav/internal/timeutil"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func corridorConfig(cols int) Config {
	row := make([]int, cols)
	g := grid.MustNew([][]int{row})
	return Config{
		Grid:      g,
		Converter: grid.NewConverter(g, r2.Vec{}, 0.1),
	}
}

func TestRobot_DrivesStraight(t *testing.T) {
	clock := timeutil.NewManualClock(epoch)
	r := NewRobot(corridorConfig(5), clock)

	r.SetWheelSpeeds(2, 2)
	clock.Advance(2 * time.Second)

	p := r.Pose()
	assert.InDelta(t, 2*2*motion.DefaultWheelRadius, p.X, 1e-9)
	assert.InDelta(t, 0, p.Z, 1e-9)
	assert.InDelta(t, 0, p.Theta, 1e-9)
	assert.InDelta(t, p.X, r.Travelled(), 1e-9)

	s := r.Sample()
	assert.InDelta(t, 4, s.LeftWheel, 1e-9)
	assert.InDelta(t, 4, s.RightWheel, 1e-9)
}

func TestRobot_SpinsInPlace(t *testing.T) {
	clock := timeutil.NewManualClock(epoch)
	r := NewRobot(corridorConfig(5), clock)

	// a quarter turn to the left
	w := 1.0
	quarter := (math.Pi / 2) * motion.DefaultAxleLength / (2 * w * motion.DefaultWheelRadius)
	r.SetWheelSpeeds(-w, w)
	clock.Advance(time.Duration(quarter * float64(time.Second)))

	p := r.Pose()
	assert.InDelta(t, 0, p.X, 1e-9)
	assert.InDelta(t, 0, p.Z, 1e-9)
	assert.InDelta(t, math.Pi/2, p.Theta, 1e-6)
}

func TestRobot_ArcMatchesOdometry(t *testing.T) {
	clock := timeutil.NewManualClock(epoch)
	r := NewRobot(corridorConfig(5), clock)
	odom := motion.NewOdometry(motion.DefaultWheelRadius, motion.DefaultAxleLength, nav.Pose{})

	s := r.Sample()
	odom.Update(s.LeftWheel, s.RightWheel)
	r.SetWheelSpeeds(1.0, 1.4)
	for i := 0; i < 200; i++ {
		clock.Advance(10 * time.Millisecond)
		s = r.Sample()
		odom.Update(s.LeftWheel, s.RightWheel)
	}

	truth, est := r.Pose(), odom.Pose()
	assert.InDelta(t, truth.X, est.X, 1e-6)
	assert.InDelta(t, truth.Z, est.Z, 1e-6)
	assert.InDelta(t, truth.Theta, est.Theta, 1e-6)
}

func TestRobot_GroundSensors(t *testing.T) {
	clock := timeutil.NewManualClock(epoch)

	tests := []struct {
		name string
		pose nav.Pose
		want [3]float64
	}{
		{"centred on the line", nav.Pose{}, [3]float64{GroundOffLine, GroundOnLine, GroundOffLine}},
		{"drifted left", nav.Pose{Z: 0.012}, [3]float64{GroundOffLine, GroundOffLine, GroundOnLine}},
		{"drifted right", nav.Pose{Z: -0.012}, [3]float64{GroundOnLine, GroundOffLine, GroundOffLine}},
		{"across the line", nav.Pose{X: 0.1, Theta: math.Pi / 2}, [3]float64{GroundOffLine, GroundOffLine, GroundOffLine}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := corridorConfig(5)
			cfg.Initial = tt.pose
			s := NewRobot(cfg, clock).Sample()
			assert.Equal(t, tt.want, s.Ground)
		})
	}
}

func TestRobot_GroundSensorsPastLineEnd(t *testing.T) {
	cfg := corridorConfig(3)
	cfg.Initial = nav.Pose{X: 0.2}
	s := NewRobot(cfg, timeutil.NewManualClock(epoch)).Sample()
	assert.Equal(t, [3]float64{GroundOffLine, GroundOffLine, GroundOffLine}, s.Ground)
}

func TestRobot_RangeSensors(t *testing.T) {
	g := grid.MustNew([][]int{
		{0, 0, 0},
		{0, 0, 0},
		{0, 0, 0},
	})
	cfg := Config{
		Grid:      g,
		Converter: grid.NewConverter(g, r2.Vec{}, 0.1),
		Initial:   nav.Pose{X: 0.1, Z: 0.1},
		Obstacles: []grid.Cell{{Row: 1, Col: 2}, {Row: 2, Col: 2}},
	}
	s := NewRobot(cfg, timeutil.NewManualClock(epoch)).Sample()
	assert.Equal(t, [3]float64{RangeObstacle, RangeClear, RangeObstacle}, s.Range)

	mapper := motion.NewObstacleMapper(g, motion.DefaultObstacleThreshold)
	found := mapper.Process(grid.Cell{Row: 1, Col: 1}, 0, s.Range)
	require.Len(t, found, 2)
	assert.ElementsMatch(t, cfg.Obstacles, found)
}

func TestSegmentDistance(t *testing.T) {
	a, b := r2.Vec{}, r2.Vec{X: 1}
	assert.InDelta(t, 0.5, segmentDistance(r2.Vec{X: 0.5, Y: 0.5}, a, b), 1e-12)
	assert.InDelta(t, 1, segmentDistance(r2.Vec{X: 2}, a, b), 1e-12)
	assert.InDelta(t, 1, segmentDistance(r2.Vec{Y: 1}, a, a), 1e-12)
}

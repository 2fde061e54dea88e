package motion

import (
	"context"
	"math"
	"time"

	"github.com/banshee-data/gridnav/internal/grid"
	"github.com/banshee-data/gridnav/internal/link"
	"github.com/banshee-data/gridnav/internal/monitoring"
	"github.com/banshee-data/gridnav/internal/nav"
	"github.com/banshee-data/gridnav/internal/timeutil"
)

var motionLog = monitoring.Component("Motion")

// DefaultLineThreshold: ground readings below it are on the line.
const DefaultLineThreshold = 600

// Sample is one tick of raw sensor input.
type Sample struct {
	// Ground holds the left, centre and right ground sensor readings.
	Ground [3]float64
	// Range holds front, front-left and front-right proximity readings.
	Range [3]float64
	// LeftWheel and RightWheel are cumulative encoder angles in radians.
	LeftWheel  float64
	RightWheel float64
}

// SensorSource yields the sample for the current tick.
type SensorSource interface {
	Sample() Sample
}

// Actuator accepts wheel velocities in rad/s.
type Actuator interface {
	SetWheelSpeeds(left, right float64)
}

// Link is the motion side of the planning link. *link.Client satisfies it.
type Link interface {
	Maintain(ctx context.Context) bool
	Connected() bool
	Send(m link.Message) error
	Receive() []link.Message
}

// LoopConfig configures a Loop.
type LoopConfig struct {
	Grid      *grid.Grid
	Converter grid.Converter
	Goal      grid.Cell
	Initial   nav.Pose

	WheelRadius float64
	AxleLength  float64

	LineThreshold     float64
	ObstacleThreshold float64
	ObstaclesEnabled  bool

	StatusInterval   time.Duration
	ObstacleInterval time.Duration
	LogInterval      time.Duration

	Turn TurnConfig
}

// LoopState is a point-in-time view of the loop for logs and tests.
type LoopState struct {
	Pose      nav.Pose
	Cell      grid.Cell
	Sensors   nav.LineSensors
	Command   nav.Action
	Effective nav.Action
	Phase     TurnPhase
	Path      grid.Path
	Cursor    int
	Connected bool
	Obstacles int
	Holding   bool
}

// Loop is the motion control loop. Step must be called from one goroutine.
type Loop struct {
	cfg   LoopConfig
	link  Link
	clock timeutil.Clock

	odom   *Odometry
	mapper *ObstacleMapper
	turn   *TurnController

	command   nav.Action
	path      grid.Path
	cursor    int
	effective nav.Action
	pose      nav.Pose
	cell      grid.Cell
	sensors   nav.LineSensors
	wasLinked bool

	// holdStop keeps the wheels stopped after an abandoned turn until a
	// command arrives that answers the replan request.
	holdStop        bool
	replanRequested bool
	replanSent      bool

	lastStatus   time.Time
	lastObstacle time.Time
	lastLog      time.Time
}

// NewLoop returns a Loop that starts stopped and disconnected.
func NewLoop(cfg LoopConfig, l Link, clock timeutil.Clock) *Loop {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	mapper := NewObstacleMapper(cfg.Grid, cfg.ObstacleThreshold)
	mapper.SetEnabled(cfg.ObstaclesEnabled)
	odom := NewOdometry(cfg.WheelRadius, cfg.AxleLength, cfg.Initial)
	return &Loop{
		cfg:       cfg,
		link:      l,
		clock:     clock,
		odom:      odom,
		mapper:    mapper,
		turn:      NewTurnController(cfg.Turn),
		command:   nav.Stop,
		effective: nav.Stop,
		pose:      odom.Pose(),
		cell:      cfg.Converter.WorldToGrid(cfg.Initial.X, cfg.Initial.Z),
	}
}

// Run steps the loop once per tick until ctx is cancelled, then stops the
// wheels.
func (l *Loop) Run(ctx context.Context, src SensorSource, act Actuator, tick time.Duration) error {
	motionLog.Printf("starting at %v (grid %v), goal %v", l.pose, l.cell, l.cfg.Goal)
	ticker := l.clock.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			act.SetWheelSpeeds(0, 0)
			return nil
		case <-ticker.C():
			ws := l.Step(ctx, src.Sample())
			act.SetWheelSpeeds(ws.Left, ws.Right)
		}
	}
}

// Step runs one control tick and returns the wheel speeds to apply.
func (l *Loop) Step(ctx context.Context, s Sample) WheelSpeeds {
	now := l.clock.Now()

	for i, v := range s.Ground {
		l.sensors[i] = v < l.cfg.LineThreshold
	}
	l.pose = l.odom.Update(s.LeftWheel, s.RightWheel)
	l.cell = l.cfg.Converter.WorldToGrid(l.pose.X, l.pose.Z)

	if due(now, l.lastObstacle, l.cfg.ObstacleInterval) {
		if fresh := l.mapper.Process(l.cell, l.pose.Theta, s.Range); len(fresh) > 0 {
			motionLog.Printf("new obstacles detected: %v", fresh)
		}
		l.lastObstacle = now
	}

	ws := l.control(ctx, now)
	l.logStatus(now)
	return ws
}

func (l *Loop) control(ctx context.Context, now time.Time) WheelSpeeds {
	if !l.link.Connected() {
		if l.wasLinked {
			motionLog.Printf("link lost, stopping")
			l.wasLinked = false
		}
		l.effective = nav.Stop
		if l.link.Maintain(ctx) {
			l.onConnect()
		}
		return WheelSpeeds{}
	}
	l.wasLinked = true

	if due(now, l.lastStatus, l.cfg.StatusInterval) {
		if !l.sendStatus() {
			l.effective = nav.Stop
			return WheelSpeeds{}
		}
		l.lastStatus = now
	}

	for _, m := range l.link.Receive() {
		cmd, ok := m.(*link.Command)
		if !ok {
			motionLog.Printf("ignoring unexpected status message from planner")
			continue
		}
		l.apply(cmd)
	}

	l.effective = l.effectiveCommand()
	return l.drive(l.effective, now)
}

func (l *Loop) onConnect() {
	motionLog.Printf("link up")
	l.wasLinked = true
	l.command = nav.Stop
	l.path = nil
	l.cursor = 0
	l.turn.Reset()
	l.lastStatus = time.Time{}
}

func (l *Loop) sendStatus() bool {
	obstacles := l.mapper.Recent()
	st := &link.Status{
		RobotGridPos: l.cell,
		GoalGridPos:  l.cfg.Goal,
		Pose: nav.Pose{
			X:     round3(l.pose.X),
			Z:     round3(l.pose.Z),
			Theta: round3(l.pose.Theta),
		},
		Sensors:         l.sensors,
		Obstacles:       obstacles,
		ReplanRequested: l.replanRequested,
	}
	if err := l.link.Send(st); err != nil {
		motionLog.Printf("status not sent: %v", err)
		l.mapper.Requeue(obstacles)
		return false
	}
	if l.replanRequested {
		l.replanRequested = false
		l.replanSent = true
	}
	return true
}

func (l *Loop) apply(cmd *link.Command) {
	if l.command.IsTurn() && !cmd.Action.IsTurn() {
		l.turn.Reset()
	}
	if cmd.Action != l.command {
		motionLog.Printf("planner command: %s (cursor %d/%d)", cmd.Action, cmd.PathCursor, len(cmd.Path))
	}
	l.command = cmd.Action
	l.path = cmd.Path
	l.cursor = cmd.PathCursor
	if l.holdStop && l.replanSent {
		l.holdStop = false
		l.replanSent = false
	}
}

// effectiveCommand merges the planner's command with local turn state and
// what the line sensors see.
func (l *Loop) effectiveCommand() nav.Action {
	onLine := l.sensors.Any()
	switch {
	case l.holdStop:
		return nav.Stop
	case l.turn.Turning():
		if l.command == nav.Stop {
			l.turn.Reset()
			return nav.Stop
		}
		return l.turn.Direction()
	case onLine && !l.command.IsTurn() && l.command != nav.Stop:
		return nav.Forward
	case !onLine && l.command == nav.Forward:
		return nav.TurnLeft
	default:
		return l.command
	}
}

func (l *Loop) drive(a nav.Action, now time.Time) WheelSpeeds {
	switch a {
	case nav.Forward:
		l.turn.Reset()
		return LineFollowSpeeds(l.sensors, l.cfg.Turn.ForwardSpeed)
	case nav.TurnLeft, nav.TurnRight:
		l.turn.Begin(a, now)
		ws, outcome := l.turn.Step(l.sensors, now)
		if outcome == TurnTimeout {
			motionLog.Printf("turn abandoned at %v, holding stop and requesting a replan", l.cell)
			l.holdStop = true
			l.replanRequested = true
			l.replanSent = false
		}
		return ws
	default:
		l.turn.Reset()
		return WheelSpeeds{}
	}
}

func (l *Loop) logStatus(now time.Time) {
	if !due(now, l.lastLog, l.cfg.LogInterval) {
		return
	}
	l.lastLog = now
	conn := "disconnected"
	if l.link.Connected() {
		conn = "connected"
	}
	line := "no line"
	if l.sensors.Any() {
		line = "line " + l.sensors.String()
	}
	motionLog.Printf("status: link %s | %s | grid %v | command %s | obstacles %d",
		conn, line, l.cell, l.effective, l.mapper.Known())
}

// State returns a copy of the loop's current view.
func (l *Loop) State() LoopState {
	return LoopState{
		Pose:      l.pose,
		Cell:      l.cell,
		Sensors:   l.sensors,
		Command:   l.command,
		Effective: l.effective,
		Phase:     l.turn.Phase(),
		Path:      l.path,
		Cursor:    l.cursor,
		Connected: l.link.Connected(),
		Obstacles: l.mapper.Known(),
		Holding:   l.holdStop,
	}
}

// due reports whether more than interval has passed since last. A zero
// last is always due.
func due(now, last time.Time, interval time.Duration) bool {
	return last.IsZero() || now.Sub(last) > interval
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

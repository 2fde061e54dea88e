package motion

import (
	"time"

	"github.com/banshee-data/gridnav/internal/monitoring"
	"github.com/banshee-data/gridnav/internal/nav"
)

var turnLog = monitoring.Component("Turn")

// TurnPhase is the turn controller's state.
type TurnPhase int

const (
	PhaseNone TurnPhase = iota
	PhaseInitiateSpin
	PhaseSearchingLine
	PhaseAdjustingOnLine
)

func (p TurnPhase) String() string {
	switch p {
	case PhaseInitiateSpin:
		return "INITIATE_SPIN"
	case PhaseSearchingLine:
		return "SEARCHING_LINE"
	case PhaseAdjustingOnLine:
		return "ADJUSTING_ON_LINE"
	default:
		return "NONE"
	}
}

// TurnOutcome reports how a Step ended.
type TurnOutcome int

const (
	TurnRunning TurnOutcome = iota
	TurnCompleted
	// TurnTimeout means the turn was abandoned with the wheels stopped.
	TurnTimeout
)

func (o TurnOutcome) String() string {
	switch o {
	case TurnCompleted:
		return "completed"
	case TurnTimeout:
		return "timeout"
	default:
		return "running"
	}
}

// WheelSpeeds is a left/right wheel velocity pair in rad/s.
type WheelSpeeds struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// TurnConfig holds the turn tuning constants.
type TurnConfig struct {
	ForwardSpeed    float64
	TurnSpeedFactor float64
	// AdjustBaseFactor scales ForwardSpeed into the adjust-phase base speed.
	AdjustBaseFactor   float64
	ModerateFactor     float64
	AggressiveFactor   float64
	MinInitialSpin     time.Duration
	MaxSearchSpin      time.Duration
	MaxAdjust          time.Duration
	TurnUntilLineFound bool
}

// DefaultTurnConfig returns the tuned defaults.
func DefaultTurnConfig() TurnConfig {
	return TurnConfig{
		ForwardSpeed:       DefaultForwardSpeed,
		TurnSpeedFactor:    1.5,
		AdjustBaseFactor:   0.8,
		ModerateFactor:     1.2,
		AggressiveFactor:   1.3,
		MinInitialSpin:     600 * time.Millisecond,
		MaxSearchSpin:      18900 * time.Millisecond,
		MaxAdjust:          2200 * time.Millisecond,
		TurnUntilLineFound: true,
	}
}

type adjustStep int

const (
	adjustHold adjustStep = iota
	adjustDone
	adjustLost
)

// wheelTerm evaluates to base*b - moderate*m - aggressive*a.
type wheelTerm struct{ base, moderate, aggressive float64 }

func (w wheelTerm) eval(b, m, a float64) float64 {
	return w.base*b - w.moderate*m - w.aggressive*a
}

type adjustRule struct {
	name        string
	step        adjustStep
	left, right wheelTerm
}

// adjustTable is indexed by nav.LineSensors.Index (left sensor is the most
// significant bit).
var adjustTable = [8]adjustRule{
	0b000: {name: "lost", step: adjustLost},
	0b001: {name: "aggressive right", left: wheelTerm{1, 0, 0}, right: wheelTerm{1, 0, 1}},
	0b010: {name: "centered", step: adjustDone, left: wheelTerm{0.3, 0, 0}, right: wheelTerm{0.3, 0, 0}},
	0b011: {name: "moderate right", left: wheelTerm{1, 0, 0}, right: wheelTerm{1, 1, 0}},
	0b100: {name: "aggressive left", left: wheelTerm{1, 0, 1}, right: wheelTerm{1, 0, 0}},
	0b101: {name: "ambiguous", left: wheelTerm{0.7, 0, 0}, right: wheelTerm{0.7, 0, 0}},
	0b110: {name: "moderate left", left: wheelTerm{1, 1, 0}, right: wheelTerm{1, 0, 0}},
	0b111: {name: "ambiguous", left: wheelTerm{0.7, 0, 0}, right: wheelTerm{0.7, 0, 0}},
}

// TurnController drives an in-place turn until the robot is re-centred on
// a line. It is owned by the motion loop and not safe for concurrent use.
type TurnController struct {
	cfg        TurnConfig
	direction  nav.Action
	phase      TurnPhase
	phaseStart time.Time
}

// NewTurnController returns an idle controller.
func NewTurnController(cfg TurnConfig) *TurnController {
	return &TurnController{cfg: cfg}
}

// Begin starts a turn in dir unless the same turn is already running.
func (t *TurnController) Begin(dir nav.Action, now time.Time) {
	if t.direction != dir || t.phase == PhaseNone {
		t.direction = dir
		t.enter(PhaseInitiateSpin, now)
	}
}

// Reset abandons any turn in progress.
func (t *TurnController) Reset() {
	t.phase = PhaseNone
	t.direction = ""
}

// Turning reports whether a turn is in progress.
func (t *TurnController) Turning() bool { return t.phase != PhaseNone }

// Direction returns the active turn, or "" when idle.
func (t *TurnController) Direction() nav.Action { return t.direction }

// Phase returns the current phase.
func (t *TurnController) Phase() TurnPhase { return t.phase }

// Step advances the turn by one tick.
func (t *TurnController) Step(sensors nav.LineSensors, now time.Time) (WheelSpeeds, TurnOutcome) {
	elapsed := now.Sub(t.phaseStart)
	switch t.phase {
	case PhaseInitiateSpin:
		ws := t.spin(0.8, 1.1)
		if elapsed > t.cfg.MinInitialSpin {
			t.enter(PhaseSearchingLine, now)
		}
		return ws, TurnRunning

	case PhaseSearchingLine:
		if sensors.Any() {
			t.enter(PhaseAdjustingOnLine, now)
			return t.spin(0.5, 0.9), TurnRunning
		}
		if !t.cfg.TurnUntilLineFound && elapsed > t.cfg.MaxSearchSpin {
			turnLog.Printf("%s: no line after %v, giving up", t.direction, elapsed)
			t.Reset()
			return WheelSpeeds{}, TurnTimeout
		}
		return t.spin(0.5, 0.9), TurnRunning

	case PhaseAdjustingOnLine:
		if elapsed > t.cfg.MaxAdjust {
			turnLog.Printf("%s: still adjusting after %v (sensors %s), giving up", t.direction, elapsed, sensors)
			t.Reset()
			return WheelSpeeds{}, TurnTimeout
		}
		return t.adjust(sensors, now)
	}
	return WheelSpeeds{}, TurnRunning
}

func (t *TurnController) adjust(sensors nav.LineSensors, now time.Time) (WheelSpeeds, TurnOutcome) {
	rule := adjustTable[sensors.Index()]
	switch rule.step {
	case adjustLost:
		t.enter(PhaseSearchingLine, now)
		return t.spin(0.5, 0.9), TurnRunning
	case adjustDone:
		ws := t.adjustSpeeds(rule)
		t.Reset()
		return ws, TurnCompleted
	}
	return t.adjustSpeeds(rule), TurnRunning
}

func (t *TurnController) adjustSpeeds(rule adjustRule) WheelSpeeds {
	f := t.cfg.ForwardSpeed
	b := f * t.cfg.AdjustBaseFactor
	m := f * t.cfg.ModerateFactor * (b / f)
	a := f * t.cfg.AggressiveFactor * (b / f)
	return WheelSpeeds{Left: rule.left.eval(b, m, a), Right: rule.right.eval(b, m, a)}
}

// spin counter-rotates the wheels: the inner wheel backwards, the outer
// forwards. turn_left keeps the left wheel inner.
func (t *TurnController) spin(innerFactor, outerFactor float64) WheelSpeeds {
	speed := t.cfg.ForwardSpeed * t.cfg.TurnSpeedFactor
	inner := -speed * innerFactor
	outer := speed * outerFactor
	if t.direction == nav.TurnLeft {
		return WheelSpeeds{Left: inner, Right: outer}
	}
	return WheelSpeeds{Left: outer, Right: inner}
}

func (t *TurnController) enter(p TurnPhase, now time.Time) {
	if p != t.phase {
		turnLog.Printf("%s: %s -> %s", t.direction, t.phase, p)
	}
	t.phase = p
	t.phaseStart = now
}

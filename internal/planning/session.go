package planning

import (
	"errors"
	"time"

	"github.com/banshee-data/gridnav/internal/grid"
	"github.com/banshee-data/gridnav/internal/monitoring"
	"github.com/banshee-data/gridnav/internal/nav"
)

var trackerLog = monitoring.Component("Tracker")

// DefaultReplanInterval is the longest a plan is trusted before it is
// recomputed from the latest position.
const DefaultReplanInterval = time.Second

// Outcome classifies a replan attempt.
type Outcome string

const (
	OutcomePlanned         Outcome = "planned"
	OutcomeResynced        Outcome = "resynced"
	OutcomeResyncFallback  Outcome = "resync_fallback"
	OutcomeNoPath          Outcome = "no_path"
	OutcomeInvalidEndpoint Outcome = "invalid_endpoint"
)

// ReplanResult records one replan attempt.
type ReplanResult struct {
	At       time.Time `json:"at"`
	Reason   string    `json:"reason"`
	Start    grid.Cell `json:"start"`
	Goal     grid.Cell `json:"goal"`
	Outcome  Outcome   `json:"outcome"`
	PathLen  int       `json:"path_len"`
	Cursor   int       `json:"cursor"`
	Explored int       `json:"explored"`
	Err      error     `json:"-"`
}

// ErrorString returns the failure text, or "" for a successful replan.
func (r *ReplanResult) ErrorString() string {
	if r == nil || r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Observation is what the tracker learns from one Status message.
type Observation struct {
	Actual          grid.Cell
	Goal            grid.Cell
	Theta           float64
	ReplanRequested bool
}

// Decision is the tracker's answer to one Observation.
type Decision struct {
	Action nav.Action
	Path   grid.Path
	Cursor int
	// Replan is set when this update attempted a replan.
	Replan *ReplanResult
}

// SessionConfig tunes a Session. Zero values use the defaults.
type SessionConfig struct {
	ReplanInterval time.Duration
	AngleThreshold float64
}

type endpoints struct{ start, goal grid.Cell }

// Session is the planning-side path tracker: it owns the current Path, the
// cursor into it and the belief about where the robot is. Paths handed out
// in a Decision are never mutated afterwards. A Session is not safe for
// concurrent use.
type Session struct {
	cfg        SessionConfig
	planner    *Planner
	translator Translator

	path    grid.Path
	cursor  int
	actual  *grid.Cell
	pathPos *grid.Cell
	goal    *grid.Cell

	force       string
	needsReplan bool
	attempted   bool
	lastReplan  time.Time
	rejected    *endpoints
	goalReached bool
}

// NewSession returns a tracker with no belief and a pending forced replan.
func NewSession(p *Planner, cfg SessionConfig) *Session {
	if cfg.ReplanInterval <= 0 {
		cfg.ReplanInterval = DefaultReplanInterval
	}
	if cfg.AngleThreshold <= 0 {
		cfg.AngleThreshold = DefaultAngleThreshold
	}
	return &Session{
		cfg:        cfg,
		planner:    p,
		translator: Translator{AngleThreshold: cfg.AngleThreshold},
		force:      "startup",
	}
}

// Begin marks the start of a new link session: the next Update replans and
// a previously reached goal is no longer terminal.
func (s *Session) Begin() {
	s.goalReached = false
	s.rejected = nil
	s.force = "new link session"
}

// Reset drops session-scoped belief after a disconnect. The goal survives.
func (s *Session) Reset() {
	s.actual = nil
	s.pathPos = nil
	s.path = nil
	s.cursor = 0
	s.goalReached = false
	s.rejected = nil
	s.needsReplan = false
	s.force = "link reset"
}

// Update folds one observation into the belief, replans when triggered and
// returns the action to send.
func (s *Session) Update(obs Observation, now time.Time) Decision {
	if s.goal == nil || *s.goal != obs.Goal {
		if s.goal != nil {
			trackerLog.Printf("goal changed %v -> %v", *s.goal, obs.Goal)
		}
		goal := obs.Goal
		s.goal = &goal
		s.goalReached = false
		s.forceReplan("goal changed")
	}
	actual := obs.Actual
	s.actual = &actual
	if s.pathPos == nil {
		pos := actual
		s.pathPos = &pos
	}
	if obs.ReplanRequested && !s.goalReached {
		s.forceReplan("motion requested replan")
	}

	if actual == *s.goal {
		if !s.goalReached {
			trackerLog.Printf("goal %v reached", actual)
		}
		s.goalReached = true
		s.path = nil
		s.cursor = 0
		s.pathPos = &actual
		s.force = ""
		s.needsReplan = false
		return Decision{Action: nav.Stop}
	}
	if s.goalReached {
		return Decision{Action: nav.Stop}
	}

	if s.pathPos.Chebyshev(actual) > 1 {
		s.forceReplan("deviation")
	}

	var result *ReplanResult
	if reason, due := s.replanDue(now); due {
		result = s.replan(actual, reason, now)
	}

	s.advance(actual)

	d := Decision{Action: nav.Stop, Path: s.path, Cursor: s.cursor, Replan: result}
	if len(s.path) > 0 {
		var next *grid.Cell
		if s.cursor+1 < len(s.path) {
			next = &s.path[s.cursor+1]
		}
		d.Action = s.translator.Translate(*s.pathPos, next, obs.Theta, *s.goal)
	}
	return d
}

func (s *Session) forceReplan(reason string) {
	if s.force == "" {
		s.force = reason
	}
}

func (s *Session) replanDue(now time.Time) (string, bool) {
	if s.rejected != nil {
		if *s.rejected == (endpoints{*s.actual, *s.goal}) {
			s.force = ""
			return "", false
		}
		s.rejected = nil
		s.forceReplan("endpoint changed")
	}
	if s.force != "" {
		return s.force, true
	}
	if !s.attempted {
		return "initial plan", true
	}
	if now.Sub(s.lastReplan) > s.cfg.ReplanInterval {
		if s.needsReplan {
			return "retry", true
		}
		return "interval", true
	}
	return "", false
}

func (s *Session) replan(actual grid.Cell, reason string, now time.Time) *ReplanResult {
	goal := *s.goal
	path, stats, err := s.planner.PlanWithStats(actual, goal)

	s.attempted = true
	s.lastReplan = now
	s.force = ""

	res := &ReplanResult{
		At:       now,
		Reason:   reason,
		Start:    actual,
		Goal:     goal,
		Explored: stats.Explored,
		Err:      err,
	}

	switch {
	case errors.Is(err, ErrInvalidEndpoint):
		s.rejected = &endpoints{actual, goal}
		s.needsReplan = true
		res.Outcome = OutcomeInvalidEndpoint
		trackerLog.Printf("replan (%s) rejected: %v", reason, err)
	case len(path) == 0:
		s.needsReplan = true
		res.Outcome = OutcomeNoPath
		res.Err = ErrNoPathFound
		trackerLog.Printf("replan (%s): %v from %v to %v after %d nodes", reason, ErrNoPathFound, actual, goal, stats.Explored)
	default:
		s.needsReplan = false
		s.path = path
		res.Outcome = OutcomePlanned
		if path[0] == actual {
			s.cursor = 0
		} else if i := path.Index(actual); i >= 0 {
			s.cursor = i
			res.Outcome = OutcomeResynced
			trackerLog.Printf("path desynchronized: %v found at index %d", actual, i)
		} else {
			s.cursor = 0
			res.Outcome = OutcomeResyncFallback
			trackerLog.Printf("path desynchronized: %v not on new path, snapping to %v", actual, path[0])
		}
		pos := path[s.cursor]
		s.pathPos = &pos
	}
	res.PathLen = len(s.path)
	res.Cursor = s.cursor
	return res
}

// advance moves the cursor one step only when the robot has been observed
// on the next path cell.
func (s *Session) advance(actual grid.Cell) {
	if s.cursor+1 < len(s.path) && s.path[s.cursor+1] == actual {
		s.cursor++
		pos := s.path[s.cursor]
		s.pathPos = &pos
	}
}

// SessionState is a point-in-time copy of the tracker's belief.
type SessionState struct {
	Actual      *grid.Cell `json:"actual,omitempty"`
	PathPos     *grid.Cell `json:"path_pos,omitempty"`
	Goal        *grid.Cell `json:"goal,omitempty"`
	Path        grid.Path  `json:"path"`
	Cursor      int        `json:"cursor"`
	NeedsReplan bool       `json:"needs_replan"`
	GoalReached bool       `json:"goal_reached"`
	LastReplan  time.Time  `json:"last_replan,omitempty"`
}

// State returns a copy of the current belief.
func (s *Session) State() SessionState {
	st := SessionState{
		Actual:      copyCell(s.actual),
		PathPos:     copyCell(s.pathPos),
		Goal:        copyCell(s.goal),
		Path:        s.path,
		Cursor:      s.cursor,
		NeedsReplan: s.needsReplan || s.force != "",
		GoalReached: s.goalReached,
		LastReplan:  s.lastReplan,
	}
	if st.Path == nil {
		st.Path = grid.Path{}
	}
	return st
}

func copyCell(c *grid.Cell) *grid.Cell {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}

package planning

import (
	"sync/atomic"
	"time"

	"github.com/banshee-data/gridnav/internal/grid"
	"github.com/banshee-data/gridnav/internal/link"
	"github.com/banshee-data/gridnav/internal/monitoring"
	"github.com/banshee-data/gridnav/internal/nav"
)

var nodeLog = monitoring.Component("Planner")

// Journal persists planning-side events. Failures are logged and never
// affect navigation.
type Journal interface {
	SessionStarted(session string, at time.Time) error
	SessionEnded(session string, at time.Time, reason string) error
	ReplanAttempted(session string, r ReplanResult) error
	ObstaclesReported(session string, at time.Time, cells []grid.Cell) error
}

type noopJournal struct{}

func (noopJournal) SessionStarted(string, time.Time) error                 { return nil }
func (noopJournal) SessionEnded(string, time.Time, string) error           { return nil }
func (noopJournal) ReplanAttempted(string, ReplanResult) error             { return nil }
func (noopJournal) ObstaclesReported(string, time.Time, []grid.Cell) error { return nil }

// Snapshot is an immutable view of the planning node for debug readers.
type Snapshot struct {
	Session    string        `json:"session,omitempty"`
	Connected  bool          `json:"connected"`
	Pose       *nav.Pose     `json:"pose,omitempty"`
	Sensors    string        `json:"sensors,omitempty"`
	Tracker    SessionState  `json:"tracker"`
	Obstacles  []grid.Cell   `json:"obstacles"`
	LastAction nav.Action    `json:"last_action,omitempty"`
	LastReplan *ReplanResult `json:"last_replan,omitempty"`
	Statuses   int           `json:"statuses"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// NodeConfig configures a Node.
type NodeConfig struct {
	Session SessionConfig
	// Journal may be nil.
	Journal Journal
}

// Node is the planning loop: it turns each Status into a Command through
// the tracker and publishes a Snapshot after every event. Link callbacks
// must come from a single goroutine; Snapshot may be called from any.
type Node struct {
	session *Session
	journal Journal

	current    string
	pose       *nav.Pose
	sensors    string
	obstacles  []grid.Cell
	seen       map[grid.Cell]bool
	statuses   int
	lastAction nav.Action
	lastReplan *ReplanResult

	snap atomic.Pointer[Snapshot]
}

var _ link.Handler = (*Node)(nil)

// NewNode returns a Node planning over g.
func NewNode(g *grid.Grid, cfg NodeConfig) *Node {
	j := cfg.Journal
	if j == nil {
		j = noopJournal{}
	}
	n := &Node{
		session: NewSession(NewPlanner(g), cfg.Session),
		journal: j,
		seen:    map[grid.Cell]bool{},
	}
	n.publish(time.Time{})
	return n
}

// Connected implements link.Handler.
func (n *Node) Connected(session string, now time.Time) {
	n.current = session
	n.session.Begin()
	if err := n.journal.SessionStarted(session, now); err != nil {
		nodeLog.Printf("journal session start: %v", err)
	}
	n.publish(now)
}

// HandleStatus implements link.Handler.
func (n *Node) HandleStatus(session string, st *link.Status, now time.Time) *link.Command {
	n.statuses++
	pose := st.Pose
	n.pose = &pose
	n.sensors = st.Sensors.String()
	n.recordObstacles(session, st.Obstacles, now)

	d := n.session.Update(Observation{
		Actual:          st.RobotGridPos,
		Goal:            st.GoalGridPos,
		Theta:           st.Pose.Theta,
		ReplanRequested: st.ReplanRequested,
	}, now)

	if d.Replan != nil {
		n.lastReplan = d.Replan
		if err := n.journal.ReplanAttempted(session, *d.Replan); err != nil {
			nodeLog.Printf("journal replan: %v", err)
		}
	}
	if d.Action != n.lastAction {
		nodeLog.Printf("action %s at %v (cursor %d/%d)", d.Action, st.RobotGridPos, d.Cursor, len(d.Path))
		n.lastAction = d.Action
	}
	n.publish(now)
	return &link.Command{Action: d.Action, Path: d.Path, PathCursor: d.Cursor}
}

// Disconnected implements link.Handler.
func (n *Node) Disconnected(session string, now time.Time, reason error) {
	n.session.Reset()
	n.current = ""
	n.pose = nil
	n.lastAction = ""
	why := "closed"
	if reason != nil {
		why = reason.Error()
	}
	if err := n.journal.SessionEnded(session, now, why); err != nil {
		nodeLog.Printf("journal session end: %v", err)
	}
	n.publish(now)
}

func (n *Node) recordObstacles(session string, cells []grid.Cell, now time.Time) {
	var fresh []grid.Cell
	for _, c := range cells {
		if n.seen[c] {
			continue
		}
		n.seen[c] = true
		fresh = append(fresh, c)
	}
	if len(fresh) == 0 {
		return
	}
	nodeLog.Printf("obstacles reported: %v", fresh)
	n.obstacles = append(n.obstacles[:len(n.obstacles):len(n.obstacles)], fresh...)
	if err := n.journal.ObstaclesReported(session, now, fresh); err != nil {
		nodeLog.Printf("journal obstacles: %v", err)
	}
}

func (n *Node) publish(now time.Time) {
	s := &Snapshot{
		Session:    n.current,
		Connected:  n.current != "",
		Sensors:    n.sensors,
		Tracker:    n.session.State(),
		Obstacles:  n.obstacles,
		LastAction: n.lastAction,
		LastReplan: n.lastReplan,
		Statuses:   n.statuses,
		UpdatedAt:  now,
	}
	if n.pose != nil {
		p := *n.pose
		s.Pose = &p
	}
	if s.Obstacles == nil {
		s.Obstacles = []grid.Cell{}
	}
	n.snap.Store(s)
}

// Snapshot returns the most recently published state. Callers must not
// modify it.
func (n *Node) Snapshot() *Snapshot {
	return n.snap.Load()
}

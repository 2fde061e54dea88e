package planning

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gridnav/internal/grid"
	"github.com/banshee-data/gridnav/internal/link"
	"github.com/banshee-data/gridnav/internal/nav"
)

type fakeJournal struct {
	started   []string
	ended     []string
	replans   []ReplanResult
	obstacles [][]grid.Cell
	err       error
}

func (j *fakeJournal) SessionStarted(s string, _ time.Time) error {
	j.started = append(j.started, s)
	return j.err
}

func (j *fakeJournal) SessionEnded(s string, _ time.Time, reason string) error {
	j.ended = append(j.ended, s+":"+reason)
	return j.err
}

func (j *fakeJournal) ReplanAttempted(_ string, r ReplanResult) error {
	j.replans = append(j.replans, r)
	return j.err
}

func (j *fakeJournal) ObstaclesReported(_ string, _ time.Time, cells []grid.Cell) error {
	j.obstacles = append(j.obstacles, cells)
	return j.err
}

func status(actual, goal grid.Cell, obstacles ...grid.Cell) *link.Status {
	if obstacles == nil {
		obstacles = []grid.Cell{}
	}
	return &link.Status{
		RobotGridPos: actual,
		GoalGridPos:  goal,
		Sensors:      nav.LineSensors{false, true, false},
		Obstacles:    obstacles,
	}
}

func TestNode_SessionLifecycle(t *testing.T) {
	j := &fakeJournal{}
	n := NewNode(openGrid(5, 5), NodeConfig{Journal: j})
	goal := cell(0, 4)

	snap := n.Snapshot()
	require.NotNil(t, snap)
	assert.False(t, snap.Connected)

	n.Connected("s1", at(0))
	cmd := n.HandleStatus("s1", status(cell(0, 0), goal), at(10))
	assert.Equal(t, nav.Forward, cmd.Action)
	assert.Equal(t, 0, cmd.PathCursor)
	assert.Len(t, cmd.Path, 5)

	snap = n.Snapshot()
	assert.True(t, snap.Connected)
	assert.Equal(t, "s1", snap.Session)
	assert.Equal(t, "010", snap.Sensors)
	assert.Equal(t, nav.Forward, snap.LastAction)
	require.NotNil(t, snap.LastReplan)
	assert.Equal(t, OutcomePlanned, snap.LastReplan.Outcome)
	assert.Equal(t, 1, snap.Statuses)

	n.Disconnected("s1", at(20), nil)
	snap = n.Snapshot()
	assert.False(t, snap.Connected)
	assert.Nil(t, snap.Pose)
	assert.Nil(t, snap.Tracker.Actual)
	require.NotNil(t, snap.Tracker.Goal)
	assert.Equal(t, goal, *snap.Tracker.Goal)

	n.Connected("s2", at(30))
	n.HandleStatus("s2", status(cell(0, 1), goal), at(40))

	assert.Equal(t, []string{"s1", "s2"}, j.started)
	assert.Equal(t, []string{"s1:closed"}, j.ended)
	require.Len(t, j.replans, 2)
	assert.Equal(t, "new link session", j.replans[1].Reason)
}

func TestNode_ObstaclesDeduplicated(t *testing.T) {
	j := &fakeJournal{}
	n := NewNode(openGrid(5, 5), NodeConfig{Journal: j})
	goal := cell(0, 4)
	n.Connected("s1", at(0))

	n.HandleStatus("s1", status(cell(0, 0), goal, cell(1, 1), cell(1, 2)), at(10))
	n.HandleStatus("s1", status(cell(0, 0), goal, cell(1, 2), cell(2, 2)), at(20))
	n.HandleStatus("s1", status(cell(0, 0), goal), at(30))

	assert.Equal(t, [][]grid.Cell{{cell(1, 1), cell(1, 2)}, {cell(2, 2)}}, j.obstacles)
	assert.Equal(t, []grid.Cell{cell(1, 1), cell(1, 2), cell(2, 2)}, n.Snapshot().Obstacles)
}

func TestNode_JournalErrorsDoNotStopNavigation(t *testing.T) {
	n := NewNode(openGrid(3, 3), NodeConfig{Journal: &fakeJournal{err: errors.New("disk full")}})
	n.Connected("s1", at(0))
	cmd := n.HandleStatus("s1", status(cell(0, 0), cell(0, 2), cell(2, 2)), at(10))
	assert.Equal(t, nav.Forward, cmd.Action)
}

func TestNode_GoalReachedSendsStop(t *testing.T) {
	n := NewNode(openGrid(3, 3), NodeConfig{})
	n.Connected("s1", at(0))
	cmd := n.HandleStatus("s1", status(cell(2, 2), cell(2, 2)), at(10))
	assert.Equal(t, nav.Stop, cmd.Action)
	assert.Empty(t, cmd.Path)
	assert.Equal(t, 0, cmd.PathCursor)
}

func TestNode_SnapshotsAreIndependent(t *testing.T) {
	n := NewNode(openGrid(5, 5), NodeConfig{})
	n.Connected("s1", at(0))
	n.HandleStatus("s1", status(cell(0, 0), cell(0, 4), cell(3, 3)), at(10))
	first := n.Snapshot()
	n.HandleStatus("s1", status(cell(0, 0), cell(0, 4), cell(4, 4)), at(20))

	assert.Len(t, first.Obstacles, 1)
	assert.Len(t, n.Snapshot().Obstacles, 2)
	assert.Equal(t, 1, first.Statuses)
}

// Package link is the newline-delimited JSON channel between the motion and
// planning loops. It owns framing, strict message validation, the motion-side
// reconnecting client and the planning-side single-client server. Transport
// and parse failures are absorbed here; callers only ever see typed messages.
package link

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/gridnav/internal/grid"
	"github.com/banshee-data/gridnav/internal/nav"
)

var (
	// ErrMalformedMessage wraps every decode or validation failure. One
	// malformed line is discarded; the connection stays up.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrConnectionLost is returned by sends on a dead or missing connection.
	ErrConnectionLost = errors.New("connection lost")
)

const (
	TypeStatus  = "status"
	TypeCommand = "command"
)

// Message is the closed set of link messages: *Status or *Command.
type Message interface {
	messageType() string
}

// Status is the periodic motion→planning report.
type Status struct {
	RobotGridPos    grid.Cell
	GoalGridPos     grid.Cell
	Pose            nav.Pose
	Sensors         nav.LineSensors
	Obstacles       []grid.Cell
	ReplanRequested bool
}

// Command is the planning→motion instruction.
type Command struct {
	Action     nav.Action
	Path       grid.Path
	PathCursor int
}

func (*Status) messageType() string  { return TypeStatus }
func (*Command) messageType() string { return TypeCommand }

type wirePose struct {
	X        *float64 `json:"x"`
	Z        *float64 `json:"z"`
	ThetaRad *float64 `json:"theta_rad"`
}

type wireStatus struct {
	Type              string      `json:"type"`
	RobotGridPos      *grid.Cell  `json:"robot_grid_pos"`
	GoalGridPos       *grid.Cell  `json:"goal_grid_pos"`
	Pose              *wirePose   `json:"pose"`
	SensorsBinary     []int       `json:"sensors_binary"`
	DetectedObstacles []grid.Cell `json:"detected_obstacles"`
	ReplanRequested   bool        `json:"replan_requested,omitempty"`
}

type wireCommand struct {
	Type       string      `json:"type"`
	Action     string      `json:"action"`
	Path       []grid.Cell `json:"path"`
	PathCursor *int        `json:"path_cursor"`
}

// Encode renders m as a single newline-terminated JSON line.
func Encode(m Message) ([]byte, error) {
	var v any
	switch m := m.(type) {
	case *Status:
		b := m.Sensors.Binary()
		obstacles := m.Obstacles
		if obstacles == nil {
			obstacles = []grid.Cell{}
		}
		robot, goal := m.RobotGridPos, m.GoalGridPos
		x, z, theta := m.Pose.X, m.Pose.Z, m.Pose.Theta
		v = wireStatus{
			Type:              TypeStatus,
			RobotGridPos:      &robot,
			GoalGridPos:       &goal,
			Pose:              &wirePose{X: &x, Z: &z, ThetaRad: &theta},
			SensorsBinary:     b[:],
			DetectedObstacles: obstacles,
			ReplanRequested:   m.ReplanRequested,
		}
	case *Command:
		path := []grid.Cell(m.Path)
		if path == nil {
			path = []grid.Cell{}
		}
		cursor := m.PathCursor
		v = wireCommand{Type: TypeCommand, Action: string(m.Action), Path: path, PathCursor: &cursor}
	default:
		return nil, fmt.Errorf("cannot encode message of type %T", m)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Decode parses and validates one line (without its newline). Unknown
// fields, missing fields and out-of-range values are all ErrMalformedMessage.
func Decode(line []byte) (Message, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	switch env.Type {
	case TypeStatus:
		var ws wireStatus
		if err := decodeStrict(line, &ws); err != nil {
			return nil, err
		}
		return ws.validate()
	case TypeCommand:
		var wc wireCommand
		if err := decodeStrict(line, &wc); err != nil {
			return nil, err
		}
		return wc.validate()
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, env.Type)
	}
}

func decodeStrict(line []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("%w: trailing data after object", ErrMalformedMessage)
	}
	return nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrMalformedMessage}, args...)...)
}

func (ws *wireStatus) validate() (*Status, error) {
	switch {
	case ws.RobotGridPos == nil:
		return nil, malformed("status missing robot_grid_pos")
	case ws.GoalGridPos == nil:
		return nil, malformed("status missing goal_grid_pos")
	case ws.Pose == nil || ws.Pose.X == nil || ws.Pose.Z == nil || ws.Pose.ThetaRad == nil:
		return nil, malformed("status missing pose fields")
	case ws.SensorsBinary == nil:
		return nil, malformed("status missing sensors_binary")
	case ws.DetectedObstacles == nil:
		return nil, malformed("status missing detected_obstacles")
	}
	if len(ws.SensorsBinary) != 3 {
		return nil, malformed("sensors_binary has %d values, want 3", len(ws.SensorsBinary))
	}
	var bin [3]int
	for i, b := range ws.SensorsBinary {
		if b != 0 && b != 1 {
			return nil, malformed("sensors_binary[%d] = %d, want 0 or 1", i, b)
		}
		bin[i] = b
	}
	return &Status{
		RobotGridPos:    *ws.RobotGridPos,
		GoalGridPos:     *ws.GoalGridPos,
		Pose:            nav.Pose{X: *ws.Pose.X, Z: *ws.Pose.Z, Theta: *ws.Pose.ThetaRad},
		Sensors:         nav.LineSensorsFromBinary(bin),
		Obstacles:       ws.DetectedObstacles,
		ReplanRequested: ws.ReplanRequested,
	}, nil
}

func (wc *wireCommand) validate() (*Command, error) {
	action := nav.Action(wc.Action)
	if !action.Valid() {
		return nil, malformed("unknown action %q", wc.Action)
	}
	if wc.Path == nil {
		return nil, malformed("command missing path")
	}
	if wc.PathCursor == nil {
		return nil, malformed("command missing path_cursor")
	}
	cursor := *wc.PathCursor
	if cursor < 0 || (len(wc.Path) > 0 && cursor >= len(wc.Path)) {
		return nil, malformed("path_cursor %d out of range for path of %d cells", cursor, len(wc.Path))
	}
	return &Command{Action: action, Path: wc.Path, PathCursor: cursor}, nil
}

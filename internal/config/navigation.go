package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/gridnav/internal/grid"
	"github.com/banshee-data/gridnav/internal/link"
	"github.com/banshee-data/gridnav/internal/motion"
	"github.com/banshee-data/gridnav/internal/nav"
	"github.com/banshee-data/gridnav/internal/planning"
)

// DefaultConfigPath is the path to the canonical navigation defaults file.
const DefaultConfigPath = "config/navigation.defaults.json"

// NavConfig is the shared configuration of both navigation binaries.
// Every field is optional; the Get* methods supply defaults for anything
// left out, so partial files are safe.
type NavConfig struct {
	// Map and frame
	MapFile         *string    `json:"map_file,omitempty"`
	CellSize        *float64   `json:"cell_size,omitempty"`
	OriginX         *float64   `json:"origin_x,omitempty"`
	OriginZ         *float64   `json:"origin_z,omitempty"`
	Goal            *grid.Cell `json:"goal,omitempty"`
	InitialCell     *grid.Cell `json:"initial_cell,omitempty"`
	InitialThetaDeg *float64   `json:"initial_theta_deg,omitempty"`

	// Robot
	WheelRadius *float64 `json:"wheel_radius,omitempty"`
	AxleLength  *float64 `json:"axle_length,omitempty"`

	// Motion loop
	ForwardSpeed       *float64 `json:"forward_speed,omitempty"`
	TurnSpeedFactor    *float64 `json:"turn_speed_factor,omitempty"`
	MinInitialSpin     *string  `json:"min_initial_spin,omitempty"` // duration string like "600ms"
	MaxSearchSpin      *string  `json:"max_search_spin,omitempty"`
	MaxAdjust          *string  `json:"max_adjust,omitempty"`
	TurnUntilLineFound *bool    `json:"turn_until_line_found,omitempty"`
	LineThreshold      *float64 `json:"line_threshold,omitempty"`
	ObstacleThreshold  *float64 `json:"obstacle_threshold,omitempty"`
	ObstacleDetection  *bool    `json:"obstacle_detection,omitempty"`
	ObstacleInterval   *string  `json:"obstacle_interval,omitempty"`
	StatusInterval     *string  `json:"status_interval,omitempty"`
	LogInterval        *string  `json:"log_interval,omitempty"`
	ControlTick        *string  `json:"control_tick,omitempty"`

	// Planning
	ReplanInterval    *string  `json:"replan_interval,omitempty"`
	AngleThresholdDeg *float64 `json:"angle_threshold_deg,omitempty"`

	// Link
	PlannerAddress       *string           `json:"planner_address,omitempty"`
	ListenAddress        *string           `json:"listen_address,omitempty"`
	DialTimeout          *string           `json:"dial_timeout,omitempty"`
	ReconnectBackoff     *string           `json:"reconnect_backoff,omitempty"`
	SendTimeout          *string           `json:"send_timeout,omitempty"`
	ReceiveTimeout       *string           `json:"receive_timeout,omitempty"`
	AcceptTimeout        *string           `json:"accept_timeout,omitempty"`
	ServerReceiveTimeout *string           `json:"server_receive_timeout,omitempty"`
	IdleSleep            *string           `json:"idle_sleep,omitempty"`
	HousekeepingGC       *bool             `json:"housekeeping_gc,omitempty"`
	Serial               *link.PortOptions `json:"serial,omitempty"`
}

// EmptyNavConfig returns a NavConfig with every field unset.
func EmptyNavConfig() *NavConfig {
	return &NavConfig{}
}

// LoadNavConfig loads a NavConfig from a JSON file. The file must have a
// .json extension and be under 1MB.
func LoadNavConfig(path string) (*NavConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyNavConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns built-in defaults when path is
// empty.
func LoadOrDefault(path string) (*NavConfig, error) {
	if path == "" {
		return EmptyNavConfig(), nil
	}
	return LoadNavConfig(path)
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or a parent. Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *NavConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadNavConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// durationFields lists every duration-valued field for validation.
func (c *NavConfig) durationFields() map[string]*string {
	return map[string]*string{
		"min_initial_spin":       c.MinInitialSpin,
		"max_search_spin":        c.MaxSearchSpin,
		"max_adjust":             c.MaxAdjust,
		"obstacle_interval":      c.ObstacleInterval,
		"status_interval":        c.StatusInterval,
		"log_interval":           c.LogInterval,
		"control_tick":           c.ControlTick,
		"replan_interval":        c.ReplanInterval,
		"dial_timeout":           c.DialTimeout,
		"reconnect_backoff":      c.ReconnectBackoff,
		"send_timeout":           c.SendTimeout,
		"receive_timeout":        c.ReceiveTimeout,
		"accept_timeout":         c.AcceptTimeout,
		"server_receive_timeout": c.ServerReceiveTimeout,
		"idle_sleep":             c.IdleSleep,
	}
}

// Validate checks that the set values are usable.
func (c *NavConfig) Validate() error {
	for name, v := range c.durationFields() {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *v)
		}
	}

	positive := map[string]*float64{
		"cell_size":         c.CellSize,
		"wheel_radius":      c.WheelRadius,
		"axle_length":       c.AxleLength,
		"forward_speed":     c.ForwardSpeed,
		"turn_speed_factor": c.TurnSpeedFactor,
	}
	for name, v := range positive {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}

	if c.AngleThresholdDeg != nil {
		if *c.AngleThresholdDeg <= 0 || *c.AngleThresholdDeg >= 180 {
			return fmt.Errorf("angle_threshold_deg must be between 0 and 180, got %f", *c.AngleThresholdDeg)
		}
	}
	if c.LineThreshold != nil && *c.LineThreshold < 0 {
		return fmt.Errorf("line_threshold must be non-negative, got %f", *c.LineThreshold)
	}
	if c.ObstacleThreshold != nil && *c.ObstacleThreshold < 0 {
		return fmt.Errorf("obstacle_threshold must be non-negative, got %f", *c.ObstacleThreshold)
	}
	if c.Serial != nil {
		if _, err := c.Serial.Normalize(); err != nil {
			return fmt.Errorf("serial: %w", err)
		}
	}
	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def // default on parse error
	}
	return d
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func stringOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

// GetMapFile returns the map file path, or "" for the built-in map.
func (c *NavConfig) GetMapFile() string { return stringOr(c.MapFile, "") }

// GetCellSize returns the grid pitch in metres.
func (c *NavConfig) GetCellSize() float64 { return floatOr(c.CellSize, 0.05099) }

// GetOrigin returns the world position of cell (0,0); Y is world z.
func (c *NavConfig) GetOrigin() r2.Vec {
	return r2.Vec{X: floatOr(c.OriginX, 0.050002), Y: floatOr(c.OriginZ, -0.639e-05)}
}

// GetGoal returns the goal cell.
func (c *NavConfig) GetGoal() grid.Cell {
	if c.Goal == nil {
		return grid.Cell{Row: 14, Col: 4}
	}
	return *c.Goal
}

// GetInitialCell returns the cell the robot starts on.
func (c *NavConfig) GetInitialCell() grid.Cell {
	if c.InitialCell == nil {
		return grid.Cell{Row: 3, Col: 20}
	}
	return *c.InitialCell
}

// GetInitialTheta returns the starting heading in radians.
func (c *NavConfig) GetInitialTheta() float64 {
	return floatOr(c.InitialThetaDeg, 90) * math.Pi / 180
}

// GetWheelRadius returns the wheel radius in metres.
func (c *NavConfig) GetWheelRadius() float64 { return floatOr(c.WheelRadius, motion.DefaultWheelRadius) }

// GetAxleLength returns the wheel separation in metres.
func (c *NavConfig) GetAxleLength() float64 { return floatOr(c.AxleLength, motion.DefaultAxleLength) }

// GetForwardSpeed returns the straight-line wheel speed in rad/s.
func (c *NavConfig) GetForwardSpeed() float64 {
	return floatOr(c.ForwardSpeed, motion.DefaultForwardSpeed)
}

// GetLineThreshold returns the ground reading below which a sensor is on the line.
func (c *NavConfig) GetLineThreshold() float64 {
	return floatOr(c.LineThreshold, motion.DefaultLineThreshold)
}

// GetObstacleThreshold returns the range reading above which a cell is blocked.
func (c *NavConfig) GetObstacleThreshold() float64 {
	return floatOr(c.ObstacleThreshold, motion.DefaultObstacleThreshold)
}

// GetObstacleDetection reports whether obstacle projection is on.
func (c *NavConfig) GetObstacleDetection() bool { return boolOr(c.ObstacleDetection, true) }

// GetStatusInterval returns the minimum gap between Status messages.
func (c *NavConfig) GetStatusInterval() time.Duration {
	return durationOr(c.StatusInterval, 100*time.Millisecond)
}

// GetObstacleInterval returns the minimum gap between obstacle checks.
func (c *NavConfig) GetObstacleInterval() time.Duration {
	return durationOr(c.ObstacleInterval, 200*time.Millisecond)
}

// GetLogInterval returns the motion status log period.
func (c *NavConfig) GetLogInterval() time.Duration { return durationOr(c.LogInterval, 5*time.Second) }

// GetControlTick returns the motion loop period.
func (c *NavConfig) GetControlTick() time.Duration {
	return durationOr(c.ControlTick, 32*time.Millisecond)
}

// GetReplanInterval returns how long a plan is trusted.
func (c *NavConfig) GetReplanInterval() time.Duration {
	return durationOr(c.ReplanInterval, planning.DefaultReplanInterval)
}

// GetAngleThreshold returns the forward/turn threshold in radians.
func (c *NavConfig) GetAngleThreshold() float64 {
	return floatOr(c.AngleThresholdDeg, 40) * math.Pi / 180
}

// GetPlannerAddress returns the host:port the motion node dials.
func (c *NavConfig) GetPlannerAddress() string { return stringOr(c.PlannerAddress, "127.0.0.1:8080") }

// GetListenAddress returns the planning node's listen address.
func (c *NavConfig) GetListenAddress() string { return stringOr(c.ListenAddress, ":8080") }

// GetHousekeepingGC reports whether idle accepts trigger a GC.
func (c *NavConfig) GetHousekeepingGC() bool { return boolOr(c.HousekeepingGC, false) }

// GetSerial returns the UART options for a serial link.
func (c *NavConfig) GetSerial() link.PortOptions {
	if c.Serial == nil {
		return link.PortOptions{}
	}
	return *c.Serial
}

// TurnConfig builds the turn controller tuning.
func (c *NavConfig) TurnConfig() motion.TurnConfig {
	t := motion.DefaultTurnConfig()
	t.ForwardSpeed = c.GetForwardSpeed()
	t.TurnSpeedFactor = floatOr(c.TurnSpeedFactor, t.TurnSpeedFactor)
	t.MinInitialSpin = durationOr(c.MinInitialSpin, t.MinInitialSpin)
	t.MaxSearchSpin = durationOr(c.MaxSearchSpin, t.MaxSearchSpin)
	t.MaxAdjust = durationOr(c.MaxAdjust, t.MaxAdjust)
	t.TurnUntilLineFound = boolOr(c.TurnUntilLineFound, t.TurnUntilLineFound)
	return t
}

// LoadGrid returns the configured map, or the built-in one, and checks
// that the goal and initial cells are usable on it.
func (c *NavConfig) LoadGrid() (*grid.Grid, error) {
	g := grid.Default()
	if path := c.GetMapFile(); path != "" {
		var err error
		if g, err = grid.LoadMapFile(path); err != nil {
			return nil, err
		}
	}
	if err := g.ValidateEndpoints(map[string]grid.Cell{
		"goal":         c.GetGoal(),
		"initial cell": c.GetInitialCell(),
	}); err != nil {
		return nil, err
	}
	return g, nil
}

// Converter returns the grid/world converter for g.
func (c *NavConfig) Converter(g *grid.Grid) grid.Converter {
	return grid.NewConverter(g, c.GetOrigin(), c.GetCellSize())
}

// InitialPose returns the world pose at the centre of the initial cell.
func (c *NavConfig) InitialPose(g *grid.Grid) nav.Pose {
	w := c.Converter(g).GridToWorld(c.GetInitialCell())
	return nav.Pose{X: w.X, Z: w.Y, Theta: nav.NormalizeAngle(c.GetInitialTheta())}
}

// LoopConfig builds the motion loop configuration for g.
func (c *NavConfig) LoopConfig(g *grid.Grid) motion.LoopConfig {
	return motion.LoopConfig{
		Grid:              g,
		Converter:         c.Converter(g),
		Goal:              c.GetGoal(),
		Initial:           c.InitialPose(g),
		WheelRadius:       c.GetWheelRadius(),
		AxleLength:        c.GetAxleLength(),
		LineThreshold:     c.GetLineThreshold(),
		ObstacleThreshold: c.GetObstacleThreshold(),
		ObstaclesEnabled:  c.GetObstacleDetection(),
		StatusInterval:    c.GetStatusInterval(),
		ObstacleInterval:  c.GetObstacleInterval(),
		LogInterval:       c.GetLogInterval(),
		Turn:              c.TurnConfig(),
	}
}

// SessionConfig builds the planning tracker configuration.
func (c *NavConfig) SessionConfig() planning.SessionConfig {
	return planning.SessionConfig{
		ReplanInterval: c.GetReplanInterval(),
		AngleThreshold: c.GetAngleThreshold(),
	}
}

// ClientConfig builds the motion-side link configuration around dial.
func (c *NavConfig) ClientConfig(dial link.DialFunc) link.ClientConfig {
	return link.ClientConfig{
		Dial:             dial,
		ReconnectBackoff: durationOr(c.ReconnectBackoff, link.DefaultReconnectBackoff),
		SendTimeout:      durationOr(c.SendTimeout, link.DefaultSendTimeout),
		ReceiveTimeout:   durationOr(c.ReceiveTimeout, link.DefaultReceiveTimeout),
	}
}

// GetDialTimeout returns the TCP connect timeout.
func (c *NavConfig) GetDialTimeout() time.Duration {
	return durationOr(c.DialTimeout, link.DefaultDialTimeout)
}

// ServerConfig builds the planning-side link configuration.
func (c *NavConfig) ServerConfig() link.ServerConfig {
	return link.ServerConfig{
		AcceptTimeout:  durationOr(c.AcceptTimeout, link.DefaultAcceptTimeout),
		ReceiveTimeout: durationOr(c.ServerReceiveTimeout, link.DefaultServerReceiveTimeout),
		IdleSleep:      durationOr(c.IdleSleep, link.DefaultIdleSleep),
	}
}

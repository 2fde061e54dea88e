package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/banshee-data/gridnav/internal/config"
	"github.com/banshee-data/gridnav/internal/grid"
	"github.com/banshee-data/gridnav/internal/link"
	"github.com/banshee-data/gridnav/internal/motion"
	"github.com/banshee-data/gridnav/internal/sim"
	"github.com/banshee-data/gridnav/internal/timeutil"
	"github.com/banshee-data/gridnav/internal/version"
)

var (
	configPath   = flag.String("config", "", "Navigation config JSON (built-in defaults when empty)")
	planner      = flag.String("planner", "", "Planner TCP address (overrides planner_address)")
	serialPort   = flag.String("serial", "", "Reach the planner over this serial device instead of TCP")
	devMode      = flag.Bool("dev", false, "Drive the built-in simulated robot")
	simObstacles = flag.String("sim-obstacles", "", "Cells the simulated range sensors see, as row,col;row,col")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

// dialer picks the serial transport when -serial is set, TCP otherwise.
func dialer(cfg *config.NavConfig) (link.DialFunc, string) {
	if *serialPort != "" {
		return link.SerialDialer(*serialPort, cfg.GetSerial()), "serial " + *serialPort
	}
	addr := cfg.GetPlannerAddress()
	if *planner != "" {
		addr = *planner
	}
	return link.TCPDialer(addr, cfg.GetDialTimeout()), "tcp " + addr
}

// parseCells reads "r,c;r,c". Empty input is no cells.
func parseCells(s string) ([]grid.Cell, error) {
	var cells []grid.Cell
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		rc := strings.Split(part, ",")
		if len(rc) != 2 {
			return nil, fmt.Errorf("cell %q: want row,col", part)
		}
		r, err := strconv.Atoi(strings.TrimSpace(rc[0]))
		if err != nil {
			return nil, fmt.Errorf("cell %q: %w", part, err)
		}
		c, err := strconv.Atoi(strings.TrimSpace(rc[1]))
		if err != nil {
			return nil, fmt.Errorf("cell %q: %w", part, err)
		}
		cells = append(cells, grid.Cell{Row: r, Col: c})
	}
	return cells, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("gridnav motion", version.String())
		return
	}
	log.Printf("gridnav motion %s", version.String())

	if !*devMode {
		log.Fatal("no robot drivers are built in: run with -dev to drive the simulator")
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	g, err := cfg.LoadGrid()
	if err != nil {
		log.Fatalf("failed to load grid: %v", err)
	}
	hidden, err := parseCells(*simObstacles)
	if err != nil {
		log.Fatalf("invalid -sim-obstacles: %v", err)
	}
	for _, c := range hidden {
		if !g.InBounds(c) {
			log.Fatalf("invalid -sim-obstacles: %v is outside the grid", c)
		}
	}

	clock := timeutil.RealClock{}
	loopCfg := cfg.LoopConfig(g)
	robot := sim.NewRobot(sim.Config{
		Grid:        g,
		Converter:   loopCfg.Converter,
		Initial:     loopCfg.Initial,
		WheelRadius: loopCfg.WheelRadius,
		AxleLength:  loopCfg.AxleLength,
		Obstacles:   hidden,
	}, clock)

	dial, via := dialer(cfg)
	client := link.NewClient(cfg.ClientConfig(dial))
	defer client.Close()
	log.Printf("planner link via %s", via)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop := motion.NewLoop(loopCfg, client, clock)
	if err := loop.Run(ctx, robot, robot, cfg.GetControlTick()); err != nil {
		log.Printf("motion loop stopped: %v", err)
	}
	st := loop.State()
	log.Printf("stopped at %v (grid %v), travelled %.3fm", st.Pose, st.Cell, robot.Travelled())
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/gridnav/internal/config"
	"github.com/banshee-data/gridnav/internal/grid"
	"github.com/banshee-data/gridnav/internal/link"
	"github.com/banshee-data/gridnav/internal/navdb"
	"github.com/banshee-data/gridnav/internal/navviz"
	"github.com/banshee-data/gridnav/internal/planning"
	"github.com/banshee-data/gridnav/internal/version"
)

var (
	configPath  = flag.String("config", "", "Navigation config JSON (built-in defaults when empty)")
	listen      = flag.String("listen", "", "Link listen address (overrides listen_address)")
	dbPath      = flag.String("db", "gridnav.db", "Run journal sqlite file (empty disables the journal)")
	debugListen = flag.String("debug-listen", "localhost:8081", "Debug HTTP listen address (empty disables)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// linkAddress picks the flag over the config value.
func linkAddress(cfg *config.NavConfig) string {
	if *listen != "" {
		return *listen
	}
	return cfg.GetListenAddress()
}

func housekeeping(cfg *config.NavConfig) func() {
	if !cfg.GetHousekeepingGC() {
		return nil
	}
	return runtime.GC
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("gridnav planner", version.String())
		return
	}
	log.Printf("gridnav planner %s", version.String())

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	g, err := cfg.LoadGrid()
	if err != nil {
		log.Fatalf("failed to load grid: %v", err)
	}
	rows, cols := g.Dimensions()
	log.Printf("grid %dx%d, goal %v", rows, cols, cfg.GetGoal())

	nodeCfg := planning.NodeConfig{Session: cfg.SessionConfig()}
	var journal *navdb.DB
	if *dbPath != "" {
		journal, err = navdb.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open journal: %v", err)
		}
		defer journal.Close()
		nodeCfg.Journal = journal
	}
	node := planning.NewNode(g, nodeCfg)

	ln, err := link.Listen(linkAddress(cfg))
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}
	srvCfg := cfg.ServerConfig()
	srvCfg.Housekeeping = housekeeping(cfg)
	server := link.NewServer(ln, node, srvCfg)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Serve(ctx); err != nil {
			log.Printf("link server stopped: %v", err)
			stop()
		}
		log.Printf("link routine terminated")
	}()

	if *debugListen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveDebug(ctx, *debugListen, node, journal, g)
		}()
	}

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// serveDebug runs the tsweb debug server until ctx is cancelled.
func serveDebug(ctx context.Context, addr string, node *planning.Node, journal *navdb.DB, g *grid.Grid) {
	mux := http.NewServeMux()
	debug := tsweb.Debugger(mux)
	debug.KV("Version", version.String())
	navviz.NewHandler(g, node).Attach(debug)
	if journal != nil {
		if err := journal.AttachAdminRoutes(debug); err != nil {
			log.Printf("journal debug routes unavailable: %v", err)
		}
	}

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("debug server failed: %v", err)
		}
	}()
	log.Printf("debug routes on http://%s/debug/", addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("debug server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("debug server force close error: %v", err)
		}
	}
	log.Printf("debug routine terminated")
}

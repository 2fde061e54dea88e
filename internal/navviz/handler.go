package navviz

import (
	"bytes"
	"fmt"
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/gridnav/internal/grid"
	"github.com/banshee-data/gridnav/internal/httputil"
	"github.com/banshee-data/gridnav/internal/planning"
)

// SnapshotSource is satisfied by *planning.Node.
type SnapshotSource interface {
	Snapshot() *planning.Snapshot
}

// Handler serves the planner debug views.
type Handler struct {
	grid   *grid.Grid
	source SnapshotSource
}

func NewHandler(g *grid.Grid, src SnapshotSource) *Handler {
	return &Handler{grid: g, source: src}
}

// Attach mounts navstate, navmap and navmap.png on the debug handler.
func (h *Handler) Attach(debug *tsweb.DebugHandler) {
	debug.Handle("navstate", "Planner state snapshot (JSON)", http.HandlerFunc(h.ServeState))
	debug.Handle("navmap", "Grid, path, obstacles and robot (chart)", http.HandlerFunc(h.ServeMap))
	debug.Handle("navmap.png", "Grid, path, obstacles and robot (PNG)", http.HandlerFunc(h.ServeMapPNG))
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (*planning.Snapshot, bool) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return nil, false
	}
	snap := h.source.Snapshot()
	if snap == nil {
		httputil.ServiceUnavailable(w, "no planner snapshot yet")
		return nil, false
	}
	return snap, true
}

func (h *Handler) ServeState(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, snap)
}

func (h *Handler) ServeMap(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := RenderHTML(&buf, h.grid, snap); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	httputil.WriteBody(w, "text/html; charset=utf-8", buf.Bytes())
}

func (h *Handler) ServeMapPNG(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	img, err := RenderPNG(h.grid, snap, DefaultPNGSize)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteBody(w, "image/png", img)
}

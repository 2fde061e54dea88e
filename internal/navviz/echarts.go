package navviz

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/gridnav/internal/grid"
	"github.com/banshee-data/gridnav/internal/planning"
)

const (
	colorFree     = "#d9d9d9"
	colorBlocked  = "#3b3b3b"
	colorObstacle = "#d62728"
	colorPath     = "#1f77b4"
	colorRobot    = "#2ca02c"
	colorGoal     = "#ff7f0e"
)

func scatterData(cells []grid.Cell) []opts.ScatterData {
	data := make([]opts.ScatterData, 0, len(cells))
	for _, c := range cells {
		data = append(data, opts.ScatterData{Value: []interface{}{c.Col, c.Row}, Name: c.String()})
	}
	return data
}

// MapChart builds a scatter chart with one series per layer. Columns run
// along x and rows along y.
func MapChart(l Layers, subtitle string) *charts.Scatter {
	size := 900
	if l.Cols > 0 && l.Rows > l.Cols {
		size = 900 * l.Cols / l.Rows
	}
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Grid navigation",
			Width:     fmt.Sprintf("%dpx", size),
			Height:    "900px",
		}),
		charts.WithTitleOpts(opts.Title{Title: "Grid navigation", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Min: -1, Max: l.Cols, Name: "col", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -1, Max: l.Rows, Name: "row", NameLocation: "middle", NameGap: 30}),
	)

	add := func(name string, cells []grid.Cell, symbol int, color string) {
		scatter.AddSeries(name, scatterData(cells),
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: symbol}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: color}),
		)
	}
	add("free", l.Free, 6, colorFree)
	add("blocked", l.Blocked, 10, colorBlocked)
	add("obstacles", l.Obstacles, 12, colorObstacle)
	add("path", l.Remaining(), 8, colorPath)
	if l.Goal != nil {
		add("goal", []grid.Cell{*l.Goal}, 16, colorGoal)
	}
	if l.Robot != nil {
		add("robot", []grid.Cell{*l.Robot}, 18, colorRobot)
	}
	return scatter
}

// RenderHTML writes the map page for g and snap.
func RenderHTML(w io.Writer, g *grid.Grid, snap *planning.Snapshot) error {
	l := BuildLayers(g, snap)
	return MapChart(l, describe(snap)).Render(w)
}

func describe(snap *planning.Snapshot) string {
	if snap == nil {
		return "no snapshot"
	}
	link := "disconnected"
	if snap.Connected {
		link = "session " + snap.Session
	}
	return fmt.Sprintf("%s, action=%s, cursor=%d/%d, obstacles=%d",
		link, snap.LastAction, snap.Tracker.Cursor, len(snap.Tracker.Path), len(snap.Obstacles))
}

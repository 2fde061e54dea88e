package navviz

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/gridnav/internal/grid"
	"github.com/banshee-data/gridnav/internal/planning"
)

// DefaultPNGSize is the edge length used by the PNG route.
const DefaultPNGSize = 6 * vg.Inch

func cellXYs(cells []grid.Cell) plotter.XYs {
	pts := make(plotter.XYs, len(cells))
	for i, c := range cells {
		pts[i].X = float64(c.Col)
		pts[i].Y = float64(c.Row)
	}
	return pts
}

// MapPlot draws the layers on a gonum plot. The remaining path is drawn as
// a connected line.
func MapPlot(l Layers, title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "col"
	p.Y.Label.Text = "row"
	p.X.Min, p.X.Max = -1, float64(l.Cols)
	p.Y.Min, p.Y.Max = -1, float64(l.Rows)
	p.Add(plotter.NewGrid())

	addCells := func(name string, cells []grid.Cell, shape draw.GlyphDrawer, radius vg.Length, c color.Color) error {
		if len(cells) == 0 {
			return nil
		}
		s, err := plotter.NewScatter(cellXYs(cells))
		if err != nil {
			return fmt.Errorf("%s layer: %w", name, err)
		}
		s.GlyphStyle.Shape = shape
		s.GlyphStyle.Radius = radius
		s.GlyphStyle.Color = c
		p.Add(s)
		p.Legend.Add(name, s)
		return nil
	}

	if err := addCells("blocked", l.Blocked, draw.BoxGlyph{}, vg.Points(4), color.RGBA{R: 59, G: 59, B: 59, A: 255}); err != nil {
		return nil, err
	}
	if err := addCells("obstacles", l.Obstacles, draw.CrossGlyph{}, vg.Points(4), color.RGBA{R: 214, G: 39, B: 40, A: 255}); err != nil {
		return nil, err
	}

	if rest := l.Remaining(); len(rest) > 1 {
		line, err := plotter.NewLine(cellXYs(rest))
		if err != nil {
			return nil, fmt.Errorf("path layer: %w", err)
		}
		line.Width = vg.Points(2)
		line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		p.Add(line)
		p.Legend.Add("path", line)
	}

	if l.Goal != nil {
		if err := addCells("goal", []grid.Cell{*l.Goal}, draw.RingGlyph{}, vg.Points(6), color.RGBA{R: 255, G: 127, B: 14, A: 255}); err != nil {
			return nil, err
		}
	}
	if l.Robot != nil {
		if err := addCells("robot", []grid.Cell{*l.Robot}, draw.CircleGlyph{}, vg.Points(5), color.RGBA{R: 44, G: 160, B: 44, A: 255}); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// RenderPNG renders the map as a square PNG of the given edge length.
func RenderPNG(g *grid.Grid, snap *planning.Snapshot, size vg.Length) ([]byte, error) {
	p, err := MapPlot(BuildLayers(g, snap), "Grid navigation")
	if err != nil {
		return nil, err
	}
	wt, err := p.WriterTo(size, size, "png")
	if err != nil {
		return nil, fmt.Errorf("png writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render png: %w", err)
	}
	return buf.Bytes(), nil
}

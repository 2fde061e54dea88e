package grid

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name  string
		table [][]int
	}{
		{"empty", nil},
		{"empty row", [][]int{{}}},
		{"ragged", [][]int{{0, 0}, {0}}},
		{"bad value", [][]int{{0, 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.table)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedMap))
		})
	}
}

func TestDefault(t *testing.T) {
	g := Default()
	rows, cols := g.Dimensions()
	assert.Equal(t, 15, rows)
	assert.Equal(t, 21, cols)

	assert.True(t, g.IsPathable(Cell{3, 20}))
	assert.True(t, g.IsPathable(Cell{14, 4}))
	assert.False(t, g.IsPathable(Cell{0, 0}))
	assert.False(t, g.IsPathable(Cell{-1, 0}))
	assert.False(t, g.IsPathable(Cell{15, 0}))
	assert.False(t, g.InBounds(Cell{0, 21}))
}

func TestNeighbors_Order(t *testing.T) {
	g := MustNew([][]int{
		{0, 0, 0},
		{0, 0, 0},
		{0, 0, 0},
	})
	got := g.Neighbors(nil, Cell{1, 1})
	assert.Equal(t, []Cell{{1, 2}, {1, 0}, {2, 1}, {0, 1}}, got)

	// corner cells only see in-bounds neighbours
	assert.Equal(t, []Cell{{0, 1}, {1, 0}}, g.Neighbors(nil, Cell{0, 0}))
}

func TestNeighbors_SkipsBlocked(t *testing.T) {
	g := MustNew([][]int{
		{1, 0, 1},
		{0, 0, 1},
		{1, 1, 1},
	})
	assert.Equal(t, []Cell{{1, 0}, {0, 1}}, g.Neighbors(nil, Cell{1, 1}))
}

func TestValidateEndpoints(t *testing.T) {
	g := Default()
	require.NoError(t, g.ValidateEndpoints(map[string]Cell{"goal": {14, 4}, "initial": {3, 20}}))
	assert.Error(t, g.ValidateEndpoints(map[string]Cell{"goal": {30, 4}}))
	assert.Error(t, g.ValidateEndpoints(map[string]Cell{"goal": {0, 0}}))
}

func TestCell_JSON(t *testing.T) {
	data, err := json.Marshal(Cell{3, 20})
	require.NoError(t, err)
	assert.JSONEq(t, `[3,20]`, string(data))

	var c Cell
	require.NoError(t, json.Unmarshal([]byte(`[14, 4]`), &c))
	assert.Equal(t, Cell{14, 4}, c)

	for _, bad := range []string{`[1]`, `[1,2,3]`, `[1.5,2]`, `{"row":1}`, `"1,2"`} {
		assert.Error(t, json.Unmarshal([]byte(bad), &c), bad)
	}
}

func TestCell_Helpers(t *testing.T) {
	a := Cell{3, 4}
	assert.Equal(t, Cell{4, 4}, a.Add(Cell{1, 0}))
	assert.Equal(t, Cell{-1, 2}, Cell{2, 6}.Sub(a))
	assert.Equal(t, 2, a.Chebyshev(Cell{5, 3}))
	assert.True(t, Cell{0, -1}.IsUnitStep())
	assert.False(t, Cell{1, 1}.IsUnitStep())
	assert.False(t, Cell{0, 2}.IsUnitStep())
	assert.False(t, Cell{}.IsUnitStep())
}

func TestPath_Validate(t *testing.T) {
	g := Default()
	good := Path{{2, 0}, {2, 1}, {2, 2}}
	assert.NoError(t, good.Validate(g))
	assert.Equal(t, 1, good.Index(Cell{2, 1}))
	assert.Equal(t, -1, good.Index(Cell{9, 9}))
	assert.Equal(t, Cell{2, 2}, good.Last())

	assert.Error(t, Path{{2, 0}, {2, 2}}.Validate(g), "jump")
	assert.Error(t, Path{{2, 0}, {3, 1}}.Validate(g), "diagonal")
	assert.Error(t, Path{{0, 0}}.Validate(g), "blocked")
	assert.NoError(t, Path{}.Validate(g))
}

func TestParseMap(t *testing.T) {
	doc := []byte(`
name: tiny
rows:
  - "010"
  - [0, 0, 0]
  - "111"
`)
	g, err := ParseMap(doc)
	require.NoError(t, err)
	rows, cols := g.Dimensions()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, cols)
	assert.True(t, g.IsPathable(Cell{0, 0}))
	assert.False(t, g.IsPathable(Cell{0, 1}))
	assert.True(t, g.IsPathable(Cell{1, 1}))
	assert.False(t, g.IsPathable(Cell{2, 2}))

	_, err = ParseMap([]byte("rows:\n  - \"01x\"\n"))
	assert.ErrorIs(t, err, ErrMalformedMap)
	_, err = ParseMap([]byte("rows:\n  - \"01\"\n  - \"0\"\n"))
	assert.ErrorIs(t, err, ErrMalformedMap)
}

func TestLoadMapFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "map.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rows:\n  - \"00\"\n  - \"01\"\n"), 0o644))

	g, err := LoadMapFile(path)
	require.NoError(t, err)
	assert.True(t, g.IsPathable(Cell{1, 0}))

	_, err = LoadMapFile(filepath.Join(dir, "map.json"))
	assert.Error(t, err)
	_, err = LoadMapFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestConverter(t *testing.T) {
	cv := NewConverter(Default(), r2.Vec{X: 0.050002, Y: -0.639e-05}, 0.05099)

	start := Cell{3, 20}
	w := cv.GridToWorld(start)
	assert.InDelta(t, 0.050002+20*0.05099, w.X, 1e-9)
	assert.InDelta(t, -0.639e-05+3*0.05099, w.Y, 1e-9)
	assert.Equal(t, start, cv.WorldToGrid(w.X, w.Y))

	// just under half a cell away still rounds back
	assert.Equal(t, start, cv.WorldToGrid(w.X+0.024, w.Y-0.024))
	// far outside the map clamps to the border
	assert.Equal(t, Cell{0, 0}, cv.WorldToGrid(-5, -5))
	assert.Equal(t, Cell{14, 20}, cv.WorldToGrid(5, 5))
	assert.False(t, math.IsNaN(w.X))
}

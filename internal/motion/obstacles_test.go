package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/gridnav/internal/grid"
)

func deg(d float64) float64 { return d * math.Pi / 180 }

func openGrid(rows, cols int) *grid.Grid {
	table := make([][]int, rows)
	for r := range table {
		table[r] = make([]int, cols)
	}
	return grid.MustNew(table)
}

func TestFacingOf(t *testing.T) {
	tests := []struct {
		deg  float64
		want Facing
	}{
		{0, FacingRight},
		{44.9, FacingRight},
		{45.1, FacingDown},
		{90, FacingDown},
		{134.9, FacingDown},
		{135.1, FacingLeft},
		{180, FacingLeft},
		{-180, FacingLeft},
		{224.9, FacingLeft},
		{225.1, FacingUp},
		{-90, FacingUp},
		{314.9, FacingUp},
		{315.1, FacingRight},
		{-30, FacingRight},
		{390, FacingRight},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FacingOf(deg(tt.deg)), "%v°", tt.deg)
	}
}

func TestSensorCell_Offsets(t *testing.T) {
	pos := grid.Cell{Row: 5, Col: 5}
	assert.Equal(t, grid.Cell{Row: 5, Col: 6}, SensorCell(pos, 0, RangeFront))
	assert.Equal(t, grid.Cell{Row: 4, Col: 6}, SensorCell(pos, 0, RangeFrontLeft))
	assert.Equal(t, grid.Cell{Row: 6, Col: 6}, SensorCell(pos, 0, RangeFrontRight))
	assert.Equal(t, grid.Cell{Row: 6, Col: 5}, SensorCell(pos, deg(90), RangeFront))
	assert.Equal(t, grid.Cell{Row: 6, Col: 4}, SensorCell(pos, deg(90), RangeFrontRight))
	assert.Equal(t, grid.Cell{Row: 5, Col: 4}, SensorCell(pos, math.Pi, RangeFront))
	assert.Equal(t, grid.Cell{Row: 6, Col: 4}, SensorCell(pos, math.Pi, RangeFrontLeft))
	assert.Equal(t, grid.Cell{Row: 4, Col: 5}, SensorCell(pos, deg(-90), RangeFront))
	assert.Equal(t, grid.Cell{Row: 4, Col: 4}, SensorCell(pos, deg(-90), RangeFrontLeft))
}

func TestObstacleMapper_ReportsEachCellOnce(t *testing.T) {
	m := NewObstacleMapper(openGrid(10, 10), DefaultObstacleThreshold)
	pos := grid.Cell{Row: 5, Col: 5}

	fresh := m.Process(pos, 0, [3]float64{200, 110, 300})
	assert.Equal(t, []grid.Cell{{Row: 5, Col: 6}, {Row: 6, Col: 6}}, fresh)

	assert.Empty(t, m.Process(pos, 0, [3]float64{200, 0, 300}))
	fresh = m.Process(pos, 0, [3]float64{0, 111, 0})
	assert.Equal(t, []grid.Cell{{Row: 4, Col: 6}}, fresh)

	assert.Equal(t, []grid.Cell{{Row: 5, Col: 6}, {Row: 6, Col: 6}, {Row: 4, Col: 6}}, m.Recent())
	assert.Empty(t, m.Recent())
	assert.Equal(t, 3, m.Known())
}

func TestObstacleMapper_DiscardsOutOfBounds(t *testing.T) {
	m := NewObstacleMapper(openGrid(3, 3), DefaultObstacleThreshold)
	fresh := m.Process(grid.Cell{Row: 0, Col: 0}, deg(-90), [3]float64{500, 500, 500})
	assert.Empty(t, fresh)
	assert.Zero(t, m.Known())
}

func TestObstacleMapper_Disabled(t *testing.T) {
	m := NewObstacleMapper(openGrid(10, 10), DefaultObstacleThreshold)
	m.SetEnabled(false)
	assert.Nil(t, m.Process(grid.Cell{Row: 5, Col: 5}, 0, [3]float64{500, 500, 500}))
	assert.Empty(t, m.Recent())
}

func TestObstacleMapper_Requeue(t *testing.T) {
	m := NewObstacleMapper(openGrid(10, 10), DefaultObstacleThreshold)
	m.Process(grid.Cell{Row: 5, Col: 5}, 0, [3]float64{500, 0, 0})
	lost := m.Recent()
	m.Process(grid.Cell{Row: 2, Col: 2}, 0, [3]float64{500, 0, 0})
	m.Requeue(lost)
	assert.Equal(t, []grid.Cell{{Row: 5, Col: 6}, {Row: 2, Col: 3}}, m.Recent())
}

package zonaltools

import (
	"testing"
	"time"

	"github.com/ctessum/geom"
)

const testCRS CRS = "EPSG:32633"

// testGrid is a north-up 3x3 grid of 1 m pixels whose top-left corner is (0, 3).
func testGrid() Grid {
	return Grid{X0: 0, Y0: 3, DX: 1, DY: -1, Width: 3, Height: 3, CRS: testCRS}
}

func box(minX, minY, maxX, maxY float64) geom.Polygon {
	return geom.Polygon{{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
	}}
}

func day(d int) time.Time {
	return time.Date(2023, time.June, d, 10, 30, 0, 0, time.UTC)
}

// testCube fills band b at time t with (t*10 + pixel + 1) * scale[b].
func testCube(t testing.TB, bands []string, scale []float64, times ...time.Time) *Cube {
	t.Helper()
	cube := NewCube(testGrid(), times, bands)
	for b := range bands {
		for ti := range times {
			for p := range cube.Data[b][ti] {
				cube.Data[b][ti][p] = float64(ti*10+p+1) * scale[b]
			}
		}
	}
	if err := cube.Validate(); err != nil {
		t.Fatal(err)
	}
	return cube
}

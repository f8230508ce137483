package zonaltools

import (
	"fmt"
	"math"
)

// GridEpsilon absorbs reprojection round-off when comparing grid coordinates.
const GridEpsilon = 1e-6

// CRS is a normalized coordinate reference system identifier, e.g. "EPSG:32633".
type CRS string

// Grid maps pixel indices to map coordinates. Rows run along DY, which is
// negative for north-up rasters.
type Grid struct {
	X0     float64
	Y0     float64
	DX     float64
	DY     float64
	Width  int
	Height int
	CRS    CRS
}

// Window is a pixel rectangle within a Grid.
type Window struct {
	Col, Row      int
	Width, Height int
}

func (w Window) Empty() bool {
	return w.Width <= 0 || w.Height <= 0
}

// GridFromGeoTransform builds a Grid from a GDAL geotransform. Rotated
// geotransforms are not supported.
func GridFromGeoTransform(gt [6]float64, width, height int, crs CRS) (Grid, error) {
	if gt[2] != 0 || gt[4] != 0 {
		return Grid{}, fmt.Errorf("rotated geotransform %v not supported", gt)
	}
	if gt[1] == 0 || gt[5] == 0 {
		return Grid{}, fmt.Errorf("zero pixel size in geotransform %v", gt)
	}
	return Grid{X0: gt[0], Y0: gt[3], DX: gt[1], DY: gt[5], Width: width, Height: height, CRS: crs}, nil
}

func (g Grid) GeoTransform() [6]float64 {
	return [6]float64{g.X0, g.DX, 0, g.Y0, 0, g.DY}
}

func (g Grid) Size() int {
	return g.Width * g.Height
}

// PixelCenter returns the map coordinates of the centre of pixel (col, row).
func (g Grid) PixelCenter(col, row int) (float64, float64) {
	return g.X0 + (float64(col)+0.5)*g.DX, g.Y0 + (float64(row)+0.5)*g.DY
}

// Bounds returns minX, minY, maxX, maxY of the grid footprint.
func (g Grid) Bounds() [4]float64 {
	x1 := g.X0 + float64(g.Width)*g.DX
	y1 := g.Y0 + float64(g.Height)*g.DY
	return [4]float64{math.Min(g.X0, x1), math.Min(g.Y0, y1), math.Max(g.X0, x1), math.Max(g.Y0, y1)}
}

// Sub returns the grid of a pixel window, sharing pixel size and CRS.
func (g Grid) Sub(w Window) Grid {
	return Grid{
		X0:     g.X0 + float64(w.Col)*g.DX,
		Y0:     g.Y0 + float64(w.Row)*g.DY,
		DX:     g.DX,
		DY:     g.DY,
		Width:  w.Width,
		Height: w.Height,
		CRS:    g.CRS,
	}
}

// Window returns the pixel window covering bounds (minX, minY, maxX, maxY),
// snapped outward to whole pixels and clipped to the grid. Bounds outside the
// grid give an empty window.
func (g Grid) Window(bounds [4]float64) Window {
	c0 := (bounds[0] - g.X0) / g.DX
	c1 := (bounds[2] - g.X0) / g.DX
	r0 := (bounds[1] - g.Y0) / g.DY
	r1 := (bounds[3] - g.Y0) / g.DY

	colMin := clampInt(int(math.Floor(math.Min(c0, c1)+GridEpsilon)), 0, g.Width)
	colMax := clampInt(int(math.Ceil(math.Max(c0, c1)-GridEpsilon)), 0, g.Width)
	rowMin := clampInt(int(math.Floor(math.Min(r0, r1)+GridEpsilon)), 0, g.Height)
	rowMax := clampInt(int(math.Ceil(math.Max(r0, r1)-GridEpsilon)), 0, g.Height)

	return Window{Col: colMin, Row: rowMin, Width: colMax - colMin, Height: rowMax - rowMin}
}

// Equal reports whether two grids index the same pixels. Origin and pixel
// size compare within GridEpsilon; dimensions and CRS compare exactly.
func (g Grid) Equal(other Grid) bool {
	return g.CheckAligned(other) == nil
}

// CheckAligned returns an *AlignmentError naming the first attribute on which
// other differs from g.
func (g Grid) CheckAligned(other Grid) error {
	switch {
	case g.CRS != other.CRS:
		return &AlignmentError{Field: "crs", Got: string(other.CRS), Want: string(g.CRS)}
	case !near(g.X0, other.X0) || !near(g.Y0, other.Y0):
		return &AlignmentError{
			Field: "origin",
			Got:   fmt.Sprintf("(%v, %v)", other.X0, other.Y0),
			Want:  fmt.Sprintf("(%v, %v)", g.X0, g.Y0),
		}
	case !near(g.DX, other.DX) || !near(g.DY, other.DY):
		return &AlignmentError{
			Field: "pixel size",
			Got:   fmt.Sprintf("(%v, %v)", other.DX, other.DY),
			Want:  fmt.Sprintf("(%v, %v)", g.DX, g.DY),
		}
	case g.Width != other.Width || g.Height != other.Height:
		return &AlignmentError{
			Field: "shape",
			Got:   fmt.Sprintf("%dx%d", other.Width, other.Height),
			Want:  fmt.Sprintf("%dx%d", g.Width, g.Height),
		}
	}
	return nil
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= GridEpsilon
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package zonaltools

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
)

// Mask flags the pixels of a Grid that fall inside a polygon. Values are
// row-major, one per pixel.
type Mask struct {
	Grid   Grid
	Values []bool
}

// NewMask returns an all-false mask on grid.
func NewMask(grid Grid) Mask {
	return Mask{Grid: grid, Values: make([]bool, grid.Size())}
}

// Count returns the number of pixels inside the mask.
func (m Mask) Count() int {
	var n int
	for _, v := range m.Values {
		if v {
			n++
		}
	}
	return n
}

func (m Mask) Empty() bool {
	return m.Count() == 0
}

// Rasterize burns a polygon into a mask on grid. A pixel is inside when its
// centre lies inside the polygon under the even-odd rule, or on any ring.
// Holes and self-intersections therefore need no particular orientation.
// The polygon must already be in the grid's CRS. Polygons covering no pixel
// centre produce an all-false mask.
func Rasterize(poly geom.Polygonal, grid Grid) Mask {
	mask := NewMask(grid)
	if poly == nil || grid.Size() == 0 {
		return mask
	}

	var rings []geom.Path
	for _, p := range poly.Polygons() {
		for _, ring := range p {
			if len(ring) >= 3 {
				rings = append(rings, ring)
			}
		}
	}
	if len(rings) == 0 {
		return mask
	}

	b := poly.Bounds()
	win := grid.Window([4]float64{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y})
	if win.Empty() {
		logrus.Debugf("Polygon bounds %v outside grid %v", b, grid.Bounds())
		return mask
	}

	for row := win.Row; row < win.Row+win.Height; row++ {
		for col := win.Col; col < win.Col+win.Width; col++ {
			x, y := grid.PixelCenter(col, row)
			mask.Values[row*grid.Width+col] = pointInRings(x, y, rings)
		}
	}
	return mask
}

func pointInRings(x, y float64, rings []geom.Path) bool {
	inside := false
	for _, ring := range rings {
		n := len(ring)
		for i := 0; i < n; i++ {
			a := ring[i]
			c := ring[(i+1)%n]
			if onSegment(x, y, a, c) {
				return true
			}
			if (a.Y > y) != (c.Y > y) {
				xCross := a.X + (y-a.Y)*(c.X-a.X)/(c.Y-a.Y)
				if x < xCross {
					inside = !inside
				}
			}
		}
	}
	return inside
}

func onSegment(x, y float64, a, c geom.Point) bool {
	if x < math.Min(a.X, c.X)-GridEpsilon || x > math.Max(a.X, c.X)+GridEpsilon ||
		y < math.Min(a.Y, c.Y)-GridEpsilon || y > math.Max(a.Y, c.Y)+GridEpsilon {
		return false
	}
	dx, dy := c.X-a.X, c.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return math.Hypot(x-a.X, y-a.Y) <= GridEpsilon
	}
	// Perpendicular distance from the point to the segment's line.
	return math.Abs(dx*(y-a.Y)-dy*(x-a.X))/length <= GridEpsilon
}

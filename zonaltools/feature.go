package zonaltools

import (
	"github.com/ctessum/geom"
)

// Feature is one input polygon with its attributes.
type Feature struct {
	Index      int
	Attributes map[string]string
	Geometry   geom.Polygonal
	CRS        CRS
	// Centroid is the WGS84 centre of the feature, when known.
	Centroid *LngLat
}

// Site returns the value of the site attribute.
func (f Feature) Site(column string) (string, bool) {
	v, ok := f.Attributes[column]
	return v, ok && v != ""
}

// Extent returns minX, minY, maxX, maxY in the feature CRS.
func (f Feature) Extent() [4]float64 {
	if f.Geometry == nil {
		return [4]float64{}
	}
	b := f.Geometry.Bounds()
	return [4]float64{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y}
}

package zonaltools

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/s2"
)

// DefaultS2Level gives cells of roughly 5 km, coarse enough to group
// neighbouring sites and fine enough to tell catchments apart.
const DefaultS2Level = 11

// LngLat is a WGS84 position in degrees.
type LngLat struct {
	Lng float64
	Lat float64
}

// SiteCell returns the S2 cell at level containing p.
func SiteCell(p LngLat, level int) (s2.CellID, error) {
	if level < 0 || level > s2.MaxLevel {
		return 0, fmt.Errorf("s2 level %d out of range [0, %d]", level, s2.MaxLevel)
	}
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.Abs(p.Lat) > 90 || math.Abs(p.Lng) > 180 {
		return 0, fmt.Errorf("position %v is not a valid lng/lat", p)
	}
	latLng := s2.LatLngFromDegrees(p.Lat, p.Lng)
	return s2.CellIDFromLatLng(latLng).Parent(level), nil
}

// CellToWKT renders the footprint of an S2 cell as a closed WKT polygon in
// lng/lat degrees.
func CellToWKT(id s2.CellID) string {
	cell := s2.CellFromCellID(id)
	var b strings.Builder
	b.WriteString("POLYGON((")
	for k := 0; k <= 4; k++ {
		if k > 0 {
			b.WriteString(", ")
		}
		ll := s2.LatLngFromPoint(cell.Vertex(k % 4))
		b.WriteString(strconv.FormatFloat(ll.Lng.Degrees(), 'f', -1, 64))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(ll.Lat.Degrees(), 'f', -1, 64))
	}
	b.WriteString("))")
	return b.String()
}

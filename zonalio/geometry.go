package zonalio

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/ctessum/geom"

	"zonal-tools/zonaltools"
)

type geoJSONGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// polygonal converts a GDAL polygon or multipolygon to its ctessum/geom
// equivalent. Z values are dropped.
func polygonal(g *godal.Geometry) (geom.Polygonal, error) {
	js, err := g.GeoJSON(godal.SignificantDigits(12))
	if err != nil {
		return nil, err
	}
	return decodePolygonal([]byte(js))
}

func decodePolygonal(js []byte) (geom.Polygonal, error) {
	var gj geoJSONGeometry
	if err := json.Unmarshal(js, &gj); err != nil {
		return nil, fmt.Errorf("decoding geometry: %w", err)
	}
	switch gj.Type {
	case "Polygon":
		var coords [][][]float64
		if err := json.Unmarshal(gj.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("decoding polygon: %w", err)
		}
		return toPolygon(coords)
	case "MultiPolygon":
		var coords [][][][]float64
		if err := json.Unmarshal(gj.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("decoding multipolygon: %w", err)
		}
		mp := make(geom.MultiPolygon, 0, len(coords))
		for _, c := range coords {
			p, err := toPolygon(c)
			if err != nil {
				return nil, err
			}
			mp = append(mp, p)
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("geometry type %q is not polygonal", gj.Type)
	}
}

func toPolygon(rings [][][]float64) (geom.Polygon, error) {
	poly := make(geom.Polygon, 0, len(rings))
	for _, ring := range rings {
		path := make(geom.Path, 0, len(ring))
		for _, pt := range ring {
			if len(pt) < 2 {
				return nil, errors.New("coordinate with fewer than two ordinates")
			}
			path = append(path, geom.Point{X: pt[0], Y: pt[1]})
		}
		poly = append(poly, path)
	}
	return poly, nil
}

// Buffer returns a new geometry expanded by distance (in CRS units). The
// input is left untouched so the unbuffered polygon stays available.
func Buffer(g *godal.Geometry, distance float64) (*godal.Geometry, error) {
	return g.Buffer(distance, 8)
}

// transformExtent reprojects minX, minY, maxX, maxY from one CRS to another
// and returns the envelope of the result.
func transformExtent(extent [4]float64, from, to zonaltools.CRS) ([4]float64, error) {
	if from == to || from == "" || to == "" {
		return extent, nil
	}
	fromSR, err := spatialRef(from)
	if err != nil {
		return extent, err
	}
	defer fromSR.Close()
	toSR, err := spatialRef(to)
	if err != nil {
		return extent, err
	}
	defer toSR.Close()

	wkt := fmt.Sprintf("POLYGON((%[1]v %[2]v, %[3]v %[2]v, %[3]v %[4]v, %[1]v %[4]v, %[1]v %[2]v))",
		extent[0], extent[1], extent[2], extent[3])
	box, err := godal.NewGeometryFromWKT(wkt, fromSR)
	if err != nil {
		return extent, err
	}
	defer box.Close()
	return box.Bounds(toSR)
}

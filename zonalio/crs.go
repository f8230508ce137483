package zonalio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/airbusgeo/godal"

	"zonal-tools/zonaltools"
)

// NormalizeCRS reduces a GDAL spatial reference to "AUTHORITY:CODE", falling
// back to its WKT when no authority code can be identified.
func NormalizeCRS(sr *godal.SpatialRef) (zonaltools.CRS, error) {
	if sr == nil {
		return "", fmt.Errorf("no spatial reference")
	}
	if name, code := sr.AuthorityName(""), sr.AuthorityCode(""); name != "" && code != 0 {
		return zonaltools.CRS(fmt.Sprintf("%s:%d", strings.ToUpper(name), code)), nil
	}
	// Rasters written without an EPSG node can often still be matched.
	if err := sr.AutoIdentifyEPSG(); err == nil {
		if name, code := sr.AuthorityName(""), sr.AuthorityCode(""); name != "" && code != 0 {
			return zonaltools.CRS(fmt.Sprintf("%s:%d", strings.ToUpper(name), code)), nil
		}
	}
	wkt, err := sr.WKT()
	if err != nil {
		return "", err
	}
	return zonaltools.CRS(wkt), nil
}

// ParseCRS accepts "EPSG:n" (any case) or a bare EPSG code and returns the
// normalized form.
func ParseCRS(s string) (zonaltools.CRS, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	code := strings.TrimPrefix(strings.ToUpper(s), "EPSG:")
	n, err := strconv.Atoi(code)
	if err != nil {
		return "", fmt.Errorf("crs %q: want EPSG:<code>", s)
	}
	sr, err := godal.NewSpatialRefFromEPSG(n)
	if err != nil {
		return "", fmt.Errorf("crs %q: %w", s, err)
	}
	defer sr.Close()
	return NormalizeCRS(sr)
}

// spatialRef builds a GDAL spatial reference for a normalized CRS.
func spatialRef(crs zonaltools.CRS) (*godal.SpatialRef, error) {
	s := string(crs)
	if code, ok := strings.CutPrefix(s, "EPSG:"); ok {
		n, err := strconv.Atoi(code)
		if err != nil {
			return nil, fmt.Errorf("crs %q: %w", s, err)
		}
		return godal.NewSpatialRefFromEPSG(n)
	}
	return godal.NewSpatialRefFromWKT(s)
}

func wgs84() (*godal.SpatialRef, error) {
	return godal.NewSpatialRefFromEPSG(4326)
}

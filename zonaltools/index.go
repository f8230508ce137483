package zonaltools

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// IndexSpec names a normalized difference (A-B)/(A+B) of two bands. Pixels
// with an index above Threshold belong to the positive class.
type IndexSpec struct {
	Name      string
	A         string
	B         string
	Threshold float64
}

// KnownIndices maps common index names to their band pairs, using
// Sentinel-2 style band names.
var KnownIndices = map[string]IndexSpec{
	"ndwi":  {Name: "ndwi", A: "green", B: "nir"},
	"mndwi": {Name: "mndwi", A: "green", B: "swir16"},
	"ndvi":  {Name: "ndvi", A: "nir", B: "red"},
	"ndmi":  {Name: "ndmi", A: "nir", B: "swir16"},
}

// ParseIndexSpec accepts a catalogue name ("ndwi"), an explicit pair
// ("name=a,b") or either followed by a threshold ("ndwi@0.1"). Band names
// are lower-cased to match scene band descriptions.
func ParseIndexSpec(s string) (IndexSpec, error) {
	s = strings.TrimSpace(s)
	var threshold float64
	if at := strings.LastIndex(s, "@"); at >= 0 {
		v, err := strconv.ParseFloat(s[at+1:], 64)
		if err != nil {
			return IndexSpec{}, fmt.Errorf("index %q: bad threshold: %w", s, err)
		}
		threshold = v
		s = s[:at]
	}

	name, pair, explicit := strings.Cut(s, "=")
	if !explicit {
		spec, ok := KnownIndices[strings.ToLower(name)]
		if !ok {
			return IndexSpec{}, fmt.Errorf("unknown index %q (known: %s)", name, strings.Join(knownIndexNames(), ", "))
		}
		spec.Threshold = threshold
		return spec, nil
	}

	a, b, ok := strings.Cut(pair, ",")
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if !ok || a == "" || b == "" || strings.TrimSpace(name) == "" {
		return IndexSpec{}, fmt.Errorf("index %q: want name=bandA,bandB", s)
	}
	return IndexSpec{Name: strings.TrimSpace(name), A: a, B: b, Threshold: threshold}, nil
}

func knownIndexNames() []string {
	names := make([]string, 0, len(KnownIndices))
	for n := range KnownIndices {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NormalizedDifference computes (a-b)/(a+b) per pixel. The result is NaN
// wherever either input is NaN or a+b is zero.
func NormalizedDifference(a, b []float64) ([]float64, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("band lengths differ: %d and %d", len(a), len(b))
	}
	out := make([]float64, len(a))
	for i := range a {
		denominator := a[i] + b[i]
		if math.IsNaN(denominator) || denominator == 0 {
			out[i] = math.NaN()
			continue
		}
		v := (a[i] - b[i]) / denominator
		if math.IsInf(v, 0) {
			v = math.NaN()
		}
		out[i] = v
	}
	return out, nil
}

// ClampLower returns a copy of idx with values below floor raised to floor.
// NaN stays NaN.
func ClampLower(idx []float64, floor float64) []float64 {
	out := make([]float64, len(idx))
	for i, v := range idx {
		if v < floor {
			v = floor
		}
		out[i] = v
	}
	return out
}

// Classify returns 1 where idx > threshold, 0 where idx <= threshold and NaN
// where idx is NaN.
func Classify(idx []float64, threshold float64) []float64 {
	out := make([]float64, len(idx))
	for i, v := range idx {
		switch {
		case math.IsNaN(v):
			out[i] = math.NaN()
		case v > threshold:
			out[i] = 1
		default:
			out[i] = 0
		}
	}
	return out
}

package zonaltools

import (
	"fmt"
	"time"
)

// ZonalRow is the summary of one site at one acquisition time.
type ZonalRow struct {
	Site    string
	Feature int
	Cell    uint64
	Time    time.Time

	// Bands holds the spatial mean of each band; NaN when no pixel was valid.
	Bands       map[string]float64
	ValidPixels map[string]int

	// Indices holds the spatial mean of each per-pixel index and Positive
	// the fraction of valid index pixels above the index threshold.
	Indices  map[string]float64
	Positive map[string]float64

	MaskPixels int
}

// Aggregate reduces a cube to one row per timestamp, in cube time order.
// Only pixels inside mask and not NaN contribute to a mean; a band with no
// such pixel yields NaN but the row is still emitted. Indices are computed
// per pixel before averaging.
func Aggregate(cube *Cube, mask Mask, indices []IndexSpec) ([]ZonalRow, error) {
	if err := cube.Grid.CheckAligned(mask.Grid); err != nil {
		return nil, err
	}
	for _, spec := range indices {
		for _, band := range []string{spec.A, spec.B} {
			if cube.BandIndex(band) < 0 {
				return nil, fmt.Errorf("index %s needs band %q, cube has %v", spec.Name, band, cube.Bands)
			}
		}
	}

	maskPixels := mask.Count()
	rows := make([]ZonalRow, 0, len(cube.Times))
	for t, ts := range cube.Times {
		row := ZonalRow{
			Time:        ts,
			Bands:       make(map[string]float64, len(cube.Bands)),
			ValidPixels: make(map[string]int, len(cube.Bands)),
			MaskPixels:  maskPixels,
		}

		masked := make(map[string][]float64, len(cube.Bands))
		for b, band := range cube.Bands {
			values := applyMask(cube.Data[b][t], mask)
			masked[band] = values
			row.Bands[band] = Mean(values...)
			row.ValidPixels[band] = int(Count(values...))
		}

		if len(indices) > 0 {
			row.Indices = make(map[string]float64, len(indices))
			row.Positive = make(map[string]float64, len(indices))
		}
		for _, spec := range indices {
			idx, err := NormalizedDifference(masked[spec.A], masked[spec.B])
			if err != nil {
				return nil, fmt.Errorf("index %s: %w", spec.Name, err)
			}
			row.Indices[spec.Name] = Mean(idx...)
			row.Positive[spec.Name] = Mean(Classify(idx, spec.Threshold)...)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// applyMask returns the samples inside mask in pixel order, so planes masked
// with the same mask stay index-aligned.
func applyMask(plane []float64, mask Mask) []float64 {
	out := make([]float64, 0, len(plane))
	for i, inside := range mask.Values {
		if inside {
			out = append(out, plane[i])
		}
	}
	return out
}

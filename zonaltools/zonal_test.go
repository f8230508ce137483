package zonaltools

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestReducers(t *testing.T) {
	data := []float64{4, nan, 1, 7}
	if got := Mean(data...); got != 4 {
		t.Errorf("Mean got %v, want 4", got)
	}
	if got := Count(data...); got != 3 {
		t.Errorf("Count got %v, want 3", got)
	}
	if !math.IsNaN(Mean(nan, nan)) {
		t.Error("all-NaN input should reduce to NaN")
	}
	if !math.IsNaN(Mean()) {
		t.Error("empty mean should be NaN")
	}
	if got := Count(); got != 0 {
		t.Errorf("empty Count got %v, want 0", got)
	}
}

func TestAggregateCentrePixel(t *testing.T) {
	cube := testCube(t, []string{"green", "nir"}, []float64{1, 10}, day(1), day(6))
	mask := Rasterize(box(1.2, 1.2, 1.8, 1.8), cube.Grid)

	rows, err := Aggregate(cube, mask, []IndexSpec{KnownIndices["ndwi"]})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	// Centre pixel is index 4: green = t*10+5, nir = 10 * green.
	want := []ZonalRow{
		{
			Time:        day(1),
			Bands:       map[string]float64{"green": 5, "nir": 50},
			ValidPixels: map[string]int{"green": 1, "nir": 1},
			Indices:     map[string]float64{"ndwi": (5.0 - 50) / 55},
			Positive:    map[string]float64{"ndwi": 0},
			MaskPixels:  1,
		},
		{
			Time:        day(6),
			Bands:       map[string]float64{"green": 15, "nir": 150},
			ValidPixels: map[string]int{"green": 1, "nir": 1},
			Indices:     map[string]float64{"ndwi": (15.0 - 150) / 165},
			Positive:    map[string]float64{"ndwi": 0},
			MaskPixels:  1,
		},
	}
	if diff := cmp.Diff(want, rows, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("Aggregate mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateEmptyMask(t *testing.T) {
	cube := testCube(t, []string{"green", "nir"}, []float64{1, 1}, day(1), day(2))
	mask := Rasterize(box(10, 10, 11, 11), cube.Grid)

	rows, err := Aggregate(cube, mask, []IndexSpec{KnownIndices["ndwi"]})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != len(cube.Times) {
		t.Fatalf("got %d rows, want %d", len(rows), len(cube.Times))
	}
	for i, row := range rows {
		if !row.Time.Equal(cube.Times[i]) {
			t.Errorf("row %d time got %v, want %v", i, row.Time, cube.Times[i])
		}
		for band, v := range row.Bands {
			if !math.IsNaN(v) {
				t.Errorf("row %d band %s got %v, want NaN", i, band, v)
			}
		}
		if !math.IsNaN(row.Indices["ndwi"]) || !math.IsNaN(row.Positive["ndwi"]) {
			t.Errorf("row %d index got %v/%v, want NaN", i, row.Indices["ndwi"], row.Positive["ndwi"])
		}
		if row.MaskPixels != 0 {
			t.Errorf("row %d mask pixels got %d", i, row.MaskPixels)
		}
	}
}

func TestAggregateSkipsInvalidPixels(t *testing.T) {
	cube := testCube(t, []string{"green", "nir"}, []float64{1, 1}, day(1), day(2))
	for p := range cube.Data[0][0] {
		cube.Data[0][0][p] = nan
	}
	// Leave one valid green pixel at time 1.
	for p := range cube.Data[0][1] {
		if p != 0 {
			cube.Data[0][1][p] = nan
		}
	}
	mask := Rasterize(box(0, 0, 3, 3), cube.Grid)

	rows, err := Aggregate(cube, mask, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if !math.IsNaN(rows[0].Bands["green"]) || rows[0].ValidPixels["green"] != 0 {
		t.Errorf("fully invalid band got mean %v from %d pixels", rows[0].Bands["green"], rows[0].ValidPixels["green"])
	}
	if rows[1].Bands["green"] != 11 || rows[1].ValidPixels["green"] != 1 {
		t.Errorf("got mean %v from %d pixels, want 11 from 1", rows[1].Bands["green"], rows[1].ValidPixels["green"])
	}
	if rows[0].Bands["nir"] != 5 {
		t.Errorf("nir mean got %v, want 5", rows[0].Bands["nir"])
	}
	if rows[0].Indices != nil {
		t.Errorf("no indices requested, got %v", rows[0].Indices)
	}
}

func TestAggregateIndexBeforeAveraging(t *testing.T) {
	g := Grid{X0: 0, Y0: 1, DX: 1, DY: -1, Width: 2, Height: 1, CRS: testCRS}
	cube := NewCube(g, []time.Time{day(1)}, []string{"a", "b"})
	copy(cube.Data[0][0], []float64{1, 3})
	copy(cube.Data[1][0], []float64{1, 1})
	mask := Rasterize(box(0, 0, 2, 1), g)

	rows, err := Aggregate(cube, mask, []IndexSpec{{Name: "nd", A: "a", B: "b"}})
	if err != nil {
		t.Fatal(err)
	}
	// Per pixel: 0 and 0.5. From the band means it would be (2-1)/3.
	if got := rows[0].Indices["nd"]; got != 0.25 {
		t.Errorf("index mean got %v, want 0.25", got)
	}
	if got := rows[0].Positive["nd"]; got != 0.5 {
		t.Errorf("positive fraction got %v, want 0.5", got)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	cube := testCube(t, []string{"green", "nir"}, []float64{0.37, 1.9}, day(1), day(3), day(9))
	cube.Data[1][2][4] = nan
	mask := Rasterize(box(0.3, 0.3, 2.7, 2.2), cube.Grid)
	indices := []IndexSpec{KnownIndices["ndwi"]}

	first, err := Aggregate(cube, mask, indices)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Aggregate(cube, mask, indices)
	if err != nil {
		t.Fatal(err)
	}
	bitsEqual := cmp.Comparer(func(a, b float64) bool { return math.Float64bits(a) == math.Float64bits(b) })
	if diff := cmp.Diff(first, second, bitsEqual); diff != "" {
		t.Errorf("repeated aggregation differs (-first +second):\n%s", diff)
	}
}

func TestAggregateMisaligned(t *testing.T) {
	cube := testCube(t, []string{"green"}, []float64{1}, day(1))
	other := cube.Grid
	other.X0 += 0.5
	_, err := Aggregate(cube, NewMask(other), nil)
	var alignErr *AlignmentError
	if !errors.As(err, &alignErr) {
		t.Fatalf("got %v, want *AlignmentError", err)
	}
}

func TestAggregateMissingIndexBand(t *testing.T) {
	cube := testCube(t, []string{"green"}, []float64{1}, day(1))
	if _, err := Aggregate(cube, NewMask(cube.Grid), []IndexSpec{KnownIndices["ndwi"]}); err == nil {
		t.Error("expected error for index over a missing band")
	}
}

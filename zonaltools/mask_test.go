package zonaltools

import (
	"reflect"
	"testing"

	"github.com/ctessum/geom"
)

func TestRasterize(t *testing.T) {
	g := testGrid()
	withHole := geom.Polygon{box(0, 0, 3, 3)[0], box(1.2, 1.2, 1.8, 1.8)[0]}

	tests := []struct {
		name string
		poly geom.Polygonal
		want []bool
	}{
		{
			name: "centre pixel",
			poly: box(1.2, 1.2, 1.8, 1.8),
			want: []bool{
				false, false, false,
				false, true, false,
				false, false, false,
			},
		},
		{
			name: "hole excluded",
			poly: withHole,
			want: []bool{
				true, true, true,
				true, false, true,
				true, true, true,
			},
		},
		{
			name: "centres on boundary included",
			poly: box(0.5, 1.5, 1.5, 2.5),
			want: []bool{
				true, true, false,
				true, true, false,
				false, false, false,
			},
		},
		{
			name: "between pixel centres",
			poly: box(0.6, 0.6, 1.4, 1.4),
			want: make([]bool, 9),
		},
		{
			name: "outside grid",
			poly: box(10, 10, 11, 11),
			want: make([]bool, 9),
		},
		{
			name: "multipolygon",
			poly: geom.MultiPolygon{box(0.2, 2.2, 0.8, 2.8), box(2.2, 0.2, 2.8, 0.8)},
			want: []bool{
				true, false, false,
				false, false, false,
				false, false, true,
			},
		},
		{
			name: "self-intersecting bowtie",
			poly: geom.Polygon{{{X: 0, Y: 0}, {X: 3, Y: 3}, {X: 3, Y: 0}, {X: 0, Y: 3}}},
			want: []bool{
				true, false, true,
				true, true, true,
				true, false, true,
			},
		},
		{
			name: "nil geometry",
			poly: nil,
			want: make([]bool, 9),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask := Rasterize(tt.poly, g)
			if mask.Grid != g {
				t.Errorf("mask grid got %+v, want %+v", mask.Grid, g)
			}
			if !reflect.DeepEqual(mask.Values, tt.want) {
				t.Errorf("got %v, want %v", mask.Values, tt.want)
			}
		})
	}
}

func TestMaskCount(t *testing.T) {
	m := Rasterize(box(0, 0, 3, 1.5), testGrid())
	if got := m.Count(); got != 6 {
		t.Errorf("got %d pixels, want 6", got)
	}
	if m.Empty() {
		t.Error("mask should not be empty")
	}
	if !NewMask(testGrid()).Empty() {
		t.Error("new mask should be empty")
	}
}

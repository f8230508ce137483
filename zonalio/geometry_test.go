package zonalio

import (
	"testing"

	"github.com/ctessum/geom"
	"github.com/google/go-cmp/cmp"
)

func TestDecodePolygonal(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    geom.Polygonal
		wantErr bool
	}{
		{
			name: "polygon with hole and z",
			in: `{"type":"Polygon","coordinates":[[[0,0,5],[4,0,5],[4,4,5],[0,4,5],[0,0,5]],
				[[1,1],[2,1],[2,2],[1,1]]]}`,
			want: geom.Polygon{
				{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}, {X: 0, Y: 0}},
				{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 2, Y: 2}, {X: 1, Y: 1}},
			},
		},
		{
			name: "multipolygon",
			in:   `{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,0]]],[[[5,5],[6,5],[6,6],[5,5]]]]}`,
			want: geom.MultiPolygon{
				{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 0}}},
				{{{X: 5, Y: 5}, {X: 6, Y: 5}, {X: 6, Y: 6}, {X: 5, Y: 5}}},
			},
		},
		{name: "point", in: `{"type":"Point","coordinates":[1,2]}`, wantErr: true},
		{name: "short coordinate", in: `{"type":"Polygon","coordinates":[[[1]]]}`, wantErr: true},
		{name: "garbage", in: `{`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodePolygonal([]byte(tt.in))
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("decodePolygonal mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOnLattice(t *testing.T) {
	tests := []struct {
		offset, step float64
		want         bool
	}{
		{500000, 10, true},
		{-20, 10, true},
		{5, 10, false},
		{9.9999999, 10, true},
	}
	for _, tt := range tests {
		if got := onLattice(tt.offset, tt.step); got != tt.want {
			t.Errorf("onLattice(%v, %v) got %v, want %v", tt.offset, tt.step, got, tt.want)
		}
	}
}

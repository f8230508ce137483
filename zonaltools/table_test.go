package zonaltools

import (
	"fmt"
	"sync"
	"testing"
)

func TestTableConcurrentAppend(t *testing.T) {
	table := NewTable()
	var wg sync.WaitGroup
	for i := 9; i >= 0; i-- {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rows := []ZonalRow{{Feature: i, Time: day(1)}, {Feature: i, Time: day(2)}}
			table.Append(Batch{Feature: i, Site: fmt.Sprint(i), Rows: rows})
		}(i)
	}
	wg.Wait()

	if table.Len() != 20 {
		t.Fatalf("got %d rows, want 20", table.Len())
	}
	rows := table.Rows()
	for i, row := range rows {
		if row.Feature != i/2 {
			t.Fatalf("row %d from feature %d, want %d", i, row.Feature, i/2)
		}
		if i%2 == 1 && !row.Time.After(rows[i-1].Time) {
			t.Errorf("row %d out of time order", i)
		}
	}
}

func TestTableColumnNames(t *testing.T) {
	table := NewTable()
	table.Append(Batch{Feature: 0, Rows: []ZonalRow{{
		Bands:   map[string]float64{"nir": 1, "green": 2},
		Indices: map[string]float64{"ndwi": 0},
	}}})
	table.Append(Batch{Feature: 1, Rows: []ZonalRow{{
		Bands: map[string]float64{"green": 2, "swir16": 3},
	}}})

	if got := fmt.Sprint(table.BandNames()); got != "[green nir swir16]" {
		t.Errorf("band names got %s", got)
	}
	if got := fmt.Sprint(table.IndexNames()); got != "[ndwi]" {
		t.Errorf("index names got %s", got)
	}
}

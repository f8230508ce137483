package zonaltools

import (
	"sort"
	"sync"
)

// Batch holds all rows produced for one feature.
type Batch struct {
	Feature int
	Site    string
	Rows    []ZonalRow
}

// Table accumulates per-feature batches. It is append-only and safe for
// concurrent use; a batch becomes visible to readers all at once.
type Table struct {
	mu      sync.Mutex
	batches []Batch
	rows    int
}

func NewTable() *Table {
	return &Table{}
}

// Append adds a complete batch. The batch's rows must not be modified
// afterwards.
func (t *Table) Append(b Batch) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.batches = append(t.batches, b)
	t.rows += len(b.Rows)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rows
}

// Batches returns a snapshot of the batches ordered by feature index.
func (t *Table) Batches() []Batch {
	t.mu.Lock()
	out := make([]Batch, len(t.batches))
	copy(out, t.batches)
	t.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Feature < out[j].Feature })
	return out
}

// Rows returns a snapshot of all rows ordered by feature index, then time.
func (t *Table) Rows() []ZonalRow {
	batches := t.Batches()
	var n int
	for _, b := range batches {
		n += len(b.Rows)
	}
	rows := make([]ZonalRow, 0, n)
	for _, b := range batches {
		rows = append(rows, b.Rows...)
	}
	return rows
}

// BandNames returns the union of band names in first-seen order.
func (t *Table) BandNames() []string {
	return t.columnNames(func(r ZonalRow) map[string]float64 { return r.Bands })
}

// IndexNames returns the union of index names in first-seen order.
func (t *Table) IndexNames() []string {
	return t.columnNames(func(r ZonalRow) map[string]float64 { return r.Indices })
}

func (t *Table) columnNames(field func(ZonalRow) map[string]float64) []string {
	var names []string
	seen := make(map[string]bool)
	for _, r := range t.Rows() {
		var fresh []string
		for name := range field(r) {
			if !seen[name] {
				seen[name] = true
				fresh = append(fresh, name)
			}
		}
		sort.Strings(fresh)
		names = append(names, fresh...)
	}
	return names
}

package zonalio

import (
	"math"
	"sort"
	"time"

	"github.com/golang/geo/s2"

	"zonal-tools/zonaltools"
)

// PositiveSuffix names the positive-class fraction of an index.
const PositiveSuffix = "_positive"

// Record is one variable of one ZonalRow in the long layout shared by the
// Parquet and SQLite sinks.
type Record struct {
	Run         string   `parquet:"run,dict"`
	Site        string   `parquet:"site,dict"`
	Feature     int64    `parquet:"feature"`
	S2id        int64    `parquet:"s2_id"`
	Geom        string   `parquet:"s2_geom,dict"`
	TimeUnixMs  int64    `parquet:"time_unix_ms"`
	Time        string   `parquet:"time"`
	Variable    string   `parquet:"variable,dict"`
	Value       *float64 `parquet:"value,optional"`
	ValidPixels *int64   `parquet:"valid_pixels,optional"`
	MaskPixels  int64    `parquet:"mask_pixels"`
}

// Records flattens rows into one Record per band, index and index
// positive-class fraction. NaN values become nulls.
func Records(run string, rows []zonaltools.ZonalRow) []Record {
	var records []Record
	cellGeoms := make(map[uint64]string)
	for _, row := range rows {
		base := Record{
			Run:        run,
			Site:       row.Site,
			Feature:    int64(row.Feature),
			S2id:       int64(row.Cell),
			Geom:       cellGeom(row.Cell, cellGeoms),
			TimeUnixMs: row.Time.UnixMilli(),
			Time:       row.Time.UTC().Format(time.RFC3339),
			MaskPixels: int64(row.MaskPixels),
		}
		for _, band := range sortedKeys(row.Bands) {
			r := base
			r.Variable = band
			r.Value = nullable(row.Bands[band])
			valid := int64(row.ValidPixels[band])
			r.ValidPixels = &valid
			records = append(records, r)
		}
		for _, idx := range sortedKeys(row.Indices) {
			r := base
			r.Variable = idx
			r.Value = nullable(row.Indices[idx])
			records = append(records, r)

			p := base
			p.Variable = idx + PositiveSuffix
			p.Value = nullable(row.Positive[idx])
			records = append(records, p)
		}
	}
	return records
}

func cellGeom(cell uint64, cache map[uint64]string) string {
	if cell == 0 {
		return ""
	}
	if wkt, ok := cache[cell]; ok {
		return wkt
	}
	wkt := zonaltools.CellToWKT(s2.CellID(cell))
	cache[cell] = wkt
	return wkt
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WriteTable replays a finished table into a sink, one feature at a time.
func WriteTable(sink zonaltools.BatchSink, t *zonaltools.Table) error {
	for _, b := range t.Batches() {
		if err := sink.WriteBatch(b); err != nil {
			return err
		}
	}
	return nil
}

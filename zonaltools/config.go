package zonaltools

import (
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// DefaultRevisitDays matches the combined Sentinel-2 A/B revisit.
const DefaultRevisitDays = 5

// Config drives a Run. The query fields are passed to the Retriever for
// every feature.
type Config struct {
	SiteColumn string
	Bands      []string
	Indices    []IndexSpec

	Start            time.Time
	End              time.Time
	Resolution       float64
	CRS              CRS
	AlignX           float64
	AlignY           float64
	MinValidFraction float64

	// Workers caps concurrent features; 0 means one per CPU.
	Workers int
	// MemoryBudget in bytes bounds Workers * peak cube size; 0 disables the bound.
	MemoryBudget uint64
	RevisitDays  float64
	S2Level      int

	// RunID tags the Report and log lines; a random UUID is used when empty.
	RunID string
	// Sink, when set, receives each feature's rows as soon as they are ready.
	Sink BatchSink
}

// Query is what a Retriever needs to produce one feature's cube.
type Query struct {
	Site string
	// Extent is minX, minY, maxX, maxY in ExtentCRS.
	Extent    [4]float64
	ExtentCRS CRS

	Start            time.Time
	End              time.Time
	Bands            []string
	Resolution       float64
	CRS              CRS
	AlignX           float64
	AlignY           float64
	MinValidFraction float64
}

// Validate reports the first configuration problem as a *ConfigError.
func (c Config) Validate() error {
	if c.SiteColumn == "" {
		return &ConfigError{Field: "site column", Reason: "not set"}
	}
	if len(c.Bands) == 0 {
		return &ConfigError{Field: "bands", Reason: "at least one band is required"}
	}
	bands := make(map[string]bool, len(c.Bands))
	for _, b := range c.Bands {
		if bands[b] {
			return &ConfigError{Field: "bands", Reason: fmt.Sprintf("band %q listed twice", b)}
		}
		bands[b] = true
	}
	seen := make(map[string]bool, len(c.Indices))
	for _, idx := range c.Indices {
		if seen[idx.Name] {
			return &ConfigError{Field: "indices", Reason: fmt.Sprintf("index %q listed twice", idx.Name)}
		}
		seen[idx.Name] = true
		if bands[idx.Name] {
			return &ConfigError{Field: "indices", Reason: fmt.Sprintf("index name %q is also a band name", idx.Name)}
		}
		for _, b := range []string{idx.A, idx.B} {
			if !bands[b] {
				return &ConfigError{Field: "indices", Reason: fmt.Sprintf("index %s needs band %q which is not requested", idx.Name, b)}
			}
		}
	}
	if c.Start.IsZero() || c.End.IsZero() {
		return &ConfigError{Field: "time range", Reason: "start and end are required"}
	}
	if c.End.Before(c.Start) {
		return &ConfigError{Field: "time range", Reason: fmt.Sprintf("end %s before start %s", c.End.Format(time.DateOnly), c.Start.Format(time.DateOnly))}
	}
	if c.MinValidFraction < 0 || c.MinValidFraction > 1 || math.IsNaN(c.MinValidFraction) {
		return &ConfigError{Field: "min valid fraction", Reason: fmt.Sprintf("%v not in [0, 1]", c.MinValidFraction)}
	}
	if c.Resolution < 0 {
		return &ConfigError{Field: "resolution", Reason: "must not be negative"}
	}
	if c.Workers < 0 {
		return &ConfigError{Field: "workers", Reason: "must not be negative"}
	}
	if c.RevisitDays < 0 {
		return &ConfigError{Field: "revisit days", Reason: "must not be negative"}
	}
	return nil
}

func (c Config) query(f Feature, site string) Query {
	return Query{
		Site:             site,
		Extent:           f.Extent(),
		ExtentCRS:        f.CRS,
		Start:            c.Start,
		End:              c.End,
		Bands:            c.Bands,
		Resolution:       c.Resolution,
		CRS:              c.CRS,
		AlignX:           c.AlignX,
		AlignY:           c.AlignY,
		MinValidFraction: c.MinValidFraction,
	}
}

// EstimateCubeBytes predicts the size of the cube retrieved for f. It returns
// 0 when the extent cannot be measured in output pixels, i.e. without a
// resolution or when the feature is in a different CRS.
func EstimateCubeBytes(f Feature, c Config) uint64 {
	if c.Resolution <= 0 || f.Geometry == nil || (c.CRS != "" && f.CRS != c.CRS) {
		return 0
	}
	e := f.Extent()
	cols := math.Ceil((e[2]-e[0])/c.Resolution) + 1
	rows := math.Ceil((e[3]-e[1])/c.Resolution) + 1

	revisit := c.RevisitDays
	if revisit <= 0 {
		revisit = DefaultRevisitDays
	}
	steps := math.Floor(c.End.Sub(c.Start).Hours()/24/revisit) + 1

	return uint64(cols * rows * steps * float64(len(c.Bands)) * bytesPerSample)
}

// WorkerCount bounds the requested worker count so that workers * peak stays
// within budget. It never returns less than one.
func WorkerCount(requested int, budget, peak uint64) int {
	n := requested
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if budget == 0 || peak == 0 {
		return n
	}
	byMemory := budget / peak
	if byMemory < 1 {
		logrus.Warnf("Largest cube estimate %s exceeds memory budget %s, running one feature at a time",
			humanize.IBytes(peak), humanize.IBytes(budget))
		return 1
	}
	if uint64(n) > byMemory {
		logrus.Infof("Memory budget %s allows %d concurrent cubes of %s, reducing workers from %d",
			humanize.IBytes(budget), byMemory, humanize.IBytes(peak), n)
		n = int(byMemory)
	}
	return n
}

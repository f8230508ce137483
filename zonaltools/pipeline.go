package zonaltools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Retriever produces the cube for one feature. Implementations do their own
// I/O, retries and timeouts, and should return ErrNoQualifyingAcquisitions
// (possibly wrapped) when nothing meets the query's quality threshold.
type Retriever interface {
	Retrieve(ctx context.Context, q Query) (*Cube, error)
}

// BandLister is implemented by retrievers that can report the bands their
// products offer before any feature is processed.
type BandLister interface {
	Bands(ctx context.Context) ([]string, error)
}

// BatchSink persists one feature's rows at a time. Run serializes calls.
type BatchSink interface {
	WriteBatch(b Batch) error
}

// Report summarizes a run.
type Report struct {
	RunID      string
	Features   int
	Processed  int
	Skipped    map[SkipReason]int
	Rows       int
	EmptyMasks int
	Duplicates []string
}

func (r Report) SkippedTotal() int {
	var n int
	for _, c := range r.Skipped {
		n += c
	}
	return n
}

func (r Report) String() string {
	reasons := make([]string, 0, len(r.Skipped))
	for reason, n := range r.Skipped {
		reasons = append(reasons, fmt.Sprintf("%s=%d", reason, n))
	}
	sort.Strings(reasons)
	return fmt.Sprintf("run %s: %d features, %d processed, %d skipped [%s], %d rows, %d empty masks, %d duplicate sites",
		r.RunID, r.Features, r.Processed, r.SkippedTotal(), strings.Join(reasons, " "), r.Rows, r.EmptyMasks, len(r.Duplicates))
}

// Run extracts zonal rows for every feature. Failures confined to one
// feature are counted in the Report and do not stop the run; configuration
// errors are returned before any feature is processed. Rows are appended to
// the returned Table one feature at a time.
func Run(ctx context.Context, features []Feature, r Retriever, cfg Config) (*Table, Report, error) {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	report := Report{
		RunID:    cfg.RunID,
		Features: len(features),
		Skipped:  make(map[SkipReason]int),
	}
	log := logrus.WithField("run", report.RunID)

	if err := cfg.Validate(); err != nil {
		return nil, report, err
	}
	sites, err := siteIDs(features, cfg.SiteColumn)
	if err != nil {
		return nil, report, err
	}
	report.Duplicates = duplicateSites(sites)
	for _, site := range report.Duplicates {
		log.Warnf("Site %q appears on more than one feature; rows are kept for each and told apart by feature index", site)
	}
	if err := checkBands(ctx, r, cfg.Bands); err != nil {
		return nil, report, err
	}

	var peak uint64
	var unsized int
	for _, f := range features {
		est := EstimateCubeBytes(f, cfg)
		if est == 0 {
			unsized++
		}
		if est > peak {
			peak = est
		}
	}
	if cfg.MemoryBudget > 0 && unsized > 0 {
		log.Warnf("Cannot size cubes for %d of %d features (resolution %v, crs %q); the memory budget does not account for them",
			unsized, len(features), cfg.Resolution, cfg.CRS)
	}
	workers := WorkerCount(cfg.Workers, cfg.MemoryBudget, peak)
	log.Infof("Processing %d features with %d workers (peak cube estimate %s)", len(features), workers, humanize.IBytes(peak))

	table := NewTable()
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range features {
		if gctx.Err() != nil {
			break
		}
		f, site := features[i], sites[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			batch, emptyMask, err := processFeature(gctx, f, site, r, cfg)
			if err != nil && gctx.Err() != nil && errors.Is(err, gctx.Err()) {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				reason := classifySkip(err)
				report.Skipped[reason]++
				log.WithFields(logrus.Fields{"site": site, "feature": f.Index, "reason": reason}).Warnf("Skipping feature: %v", err)
				return nil
			}
			if emptyMask {
				report.EmptyMasks++
			}
			table.Append(batch)
			report.Processed++
			report.Rows += len(batch.Rows)
			if cfg.Sink != nil {
				if err := cfg.Sink.WriteBatch(batch); err != nil {
					return fmt.Errorf("writing rows for site %q: %w", site, err)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return table, report, err
	}
	if err := ctx.Err(); err != nil {
		return table, report, err
	}
	log.Info(report.String())
	return table, report, nil
}

func processFeature(ctx context.Context, f Feature, site string, r Retriever, cfg Config) (Batch, bool, error) {
	log := logrus.WithFields(logrus.Fields{"site": site, "feature": f.Index})
	log.Debug("Entered processFeature")

	cube, err := r.Retrieve(ctx, cfg.query(f, site))
	if err != nil {
		return Batch{}, false, &RetrievalError{Site: site, Err: err}
	}
	if err := cube.Validate(); err != nil {
		return Batch{}, false, &RetrievalError{Site: site, Err: err}
	}
	if len(cube.Times) == 0 {
		return Batch{}, false, &RetrievalError{Site: site, Err: ErrNoQualifyingAcquisitions}
	}
	if f.CRS != "" && f.CRS != cube.Grid.CRS {
		return Batch{}, false, &AlignmentError{Field: "feature crs", Got: string(f.CRS), Want: string(cube.Grid.CRS)}
	}
	log.Debugf("Retrieved cube %dx%d, %d bands, %d times (%s)",
		cube.Grid.Width, cube.Grid.Height, len(cube.Bands), len(cube.Times), humanize.IBytes(uint64(cube.Bytes())))

	mask := Rasterize(f.Geometry, cube.Grid)
	emptyMask := mask.Empty()
	if emptyMask {
		log.Info("Polygon covers no pixel centre; rows will hold NaN")
	}

	rows, err := Aggregate(cube, mask, cfg.Indices)
	if err != nil {
		return Batch{}, false, err
	}

	var cell uint64
	if f.Centroid != nil {
		id, err := SiteCell(*f.Centroid, cfg.S2Level)
		if err != nil {
			log.Warnf("No S2 cell for site: %v", err)
		} else {
			cell = uint64(id)
		}
	}
	for i := range rows {
		rows[i].Site = site
		rows[i].Feature = f.Index
		rows[i].Cell = cell
	}
	log.Debug("Exited processFeature")
	return Batch{Feature: f.Index, Site: site, Rows: rows}, emptyMask, nil
}

func siteIDs(features []Feature, column string) ([]string, error) {
	sites := make([]string, len(features))
	for i, f := range features {
		site, ok := f.Site(column)
		if !ok {
			return nil, &ConfigError{Field: "site column", Reason: fmt.Sprintf("feature %d has no %q attribute", f.Index, column)}
		}
		sites[i] = site
	}
	return sites, nil
}

func duplicateSites(sites []string) []string {
	counts := make(map[string]int, len(sites))
	var dups []string
	for _, s := range sites {
		counts[s]++
		if counts[s] == 2 {
			dups = append(dups, s)
		}
	}
	return dups
}

func checkBands(ctx context.Context, r Retriever, bands []string) error {
	lister, ok := r.(BandLister)
	if !ok {
		return nil
	}
	available, err := lister.Bands(ctx)
	if err != nil {
		return fmt.Errorf("listing available bands: %w", err)
	}
	offered := make(map[string]bool, len(available))
	for _, b := range available {
		offered[b] = true
	}
	for _, b := range bands {
		if !offered[b] {
			return &ConfigError{Field: "bands", Reason: fmt.Sprintf("band %q is not offered by any product (have %v)", b, available)}
		}
	}
	return nil
}

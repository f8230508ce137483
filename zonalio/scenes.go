package zonalio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/sirupsen/logrus"

	"zonal-tools/zonaltools"
)

// DateLayouts are tried, in order, against the start of scene file names.
var DateLayouts = []string{"2006-01-02", "20060102"}

// SceneDir retrieves cubes from a directory of per-acquisition multi-band
// GeoTIFFs named after their acquisition date, e.g. 2023-06-14_S2B.tif.
// Band names come from GDAL band descriptions, lower-cased, or b1..bn when a
// band has none. All scenes are expected to share one grid.
type SceneDir struct {
	Dir    string
	scenes []scene
	// Locking is required to read from compressed rasters.
	mu sync.Mutex
}

type scene struct {
	path string
	time time.Time
}

// OpenSceneDir indexes the GeoTIFFs in dir by acquisition date.
func OpenSceneDir(dir string) (*SceneDir, error) {
	godal.RegisterAll()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[time.Time]string)
	var scenes []scene
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".tif" && ext != ".tiff") {
			continue
		}
		ts, ok := sceneDate(e.Name())
		if !ok {
			logrus.Warnf("Ignoring %s: no acquisition date in file name", e.Name())
			continue
		}
		if prev, dup := seen[ts]; dup {
			logrus.Warnf("Ignoring %s: acquisition %s already provided by %s", e.Name(), ts.Format(time.DateOnly), prev)
			continue
		}
		seen[ts] = e.Name()
		scenes = append(scenes, scene{path: filepath.Join(dir, e.Name()), time: ts})
	}
	sort.Slice(scenes, func(i, j int) bool { return scenes[i].time.Before(scenes[j].time) })
	logrus.Infof("Indexed %d scenes in %s", len(scenes), dir)
	return &SceneDir{Dir: dir, scenes: scenes}, nil
}

func sceneDate(name string) (time.Time, bool) {
	for _, layout := range DateLayouts {
		if len(name) < len(layout) {
			continue
		}
		if ts, err := time.Parse(layout, name[:len(layout)]); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// Bands lists the band names offered by any scene.
func (s *SceneDir) Bands(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	for _, sc := range s.scenes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bands, err := s.sceneBands(sc.path)
		if err != nil {
			return nil, err
		}
		for _, b := range bands {
			if !seen[b] {
				seen[b] = true
				names = append(names, b)
			}
		}
	}
	return names, nil
}

// Grid returns the grid of the earliest scene. Features are normally
// reprojected to its CRS before a run.
func (s *SceneDir) Grid() (g zonaltools.Grid, err error) {
	if len(s.scenes) == 0 {
		return zonaltools.Grid{}, fmt.Errorf("no scenes in %s", s.Dir)
	}
	ds, err := godal.Open(s.scenes[0].path)
	if err != nil {
		return zonaltools.Grid{}, err
	}
	defer func() {
		err = errors.Join(err, ds.Close())
	}()
	return sceneGrid(ds)
}

func (s *SceneDir) sceneBands(path string) (names []string, err error) {
	ds, err := godal.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, ds.Close())
	}()
	return bandNames(ds), nil
}

func bandNames(ds *godal.Dataset) []string {
	bands := ds.Bands()
	names := make([]string, len(bands))
	for i, b := range bands {
		name := strings.ToLower(strings.TrimSpace(b.Description()))
		if name == "" {
			name = fmt.Sprintf("b%d", i+1)
		}
		names[i] = name
	}
	return names
}

// Retrieve reads the query extent from every scene in the time range whose
// valid-pixel fraction meets q.MinValidFraction.
func (s *SceneDir) Retrieve(ctx context.Context, q zonaltools.Query) (*zonaltools.Cube, error) {
	log := logrus.WithField("site", q.Site)
	log.Debug("Entered Retrieve")

	var (
		grid     zonaltools.Grid
		haveGrid bool
		times    []time.Time
		planes   [][][]float64
	)
	for _, sc := range s.scenes {
		if sc.time.Before(q.Start) || sc.time.After(q.End) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sub, data, err := s.readScene(sc, q)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(sc.path), err)
		}
		if data == nil {
			continue
		}
		if !haveGrid {
			grid, haveGrid = sub, true
		} else if err := grid.CheckAligned(sub); err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(sc.path), err)
		}

		fraction := validFraction(data)
		if fraction < q.MinValidFraction {
			log.Debugf("Dropping %s: valid fraction %.2f below %.2f", sc.time.Format(time.DateOnly), fraction, q.MinValidFraction)
			continue
		}
		times = append(times, sc.time)
		planes = append(planes, data)
	}
	if len(times) == 0 {
		return nil, zonaltools.ErrNoQualifyingAcquisitions
	}

	cube := &zonaltools.Cube{Grid: grid, Times: times, Bands: q.Bands, Data: make([][][]float64, len(q.Bands))}
	for b := range q.Bands {
		cube.Data[b] = make([][]float64, len(times))
		for t := range times {
			cube.Data[b][t] = planes[t][b]
		}
	}
	log.Debug("Exited Retrieve")
	return cube, nil
}

// readScene returns the query window of one scene, one plane per requested
// band. A nil result means the scene does not cover the extent or lacks a
// requested band.
func (s *SceneDir) readScene(sc scene, q zonaltools.Query) (sub zonaltools.Grid, data [][]float64, err error) {
	ds, err := godal.Open(sc.path)
	if err != nil {
		return sub, nil, err
	}
	defer func() {
		err = errors.Join(err, ds.Close())
	}()

	grid, err := sceneGrid(ds)
	if err != nil {
		return sub, nil, err
	}
	if err := checkQueryGrid(grid, q); err != nil {
		return sub, nil, err
	}

	extent, err := transformExtent(q.Extent, q.ExtentCRS, grid.CRS)
	if err != nil {
		return sub, nil, err
	}
	win := grid.Window(extent)
	if win.Empty() {
		logrus.Debugf("Scene %s does not cover site %s", filepath.Base(sc.path), q.Site)
		return sub, nil, nil
	}

	names := bandNames(ds)
	bands := ds.Bands()
	data = make([][]float64, len(q.Bands))
	for i, want := range q.Bands {
		idx := indexOf(names, want)
		if idx < 0 {
			logrus.Warnf("Scene %s has no band %q (has %v)", filepath.Base(sc.path), want, names)
			return sub, nil, nil
		}
		buf := make([]float64, win.Width*win.Height)
		if err := s.lockedRead(&bands[idx], win, buf); err != nil {
			return sub, nil, err
		}
		if noData, ok := bands[idx].NoData(); ok {
			for p, v := range buf {
				if v == noData {
					buf[p] = math.NaN()
				}
			}
		}
		data[i] = buf
	}
	return grid.Sub(win), data, nil
}

func (s *SceneDir) lockedRead(band *godal.Band, win zonaltools.Window, buf []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return band.Read(win.Col, win.Row, buf, win.Width, win.Height)
}

func sceneGrid(ds *godal.Dataset) (zonaltools.Grid, error) {
	gt, err := ds.GeoTransform()
	if err != nil {
		return zonaltools.Grid{}, err
	}
	crs, err := NormalizeCRS(ds.SpatialRef())
	if err != nil {
		return zonaltools.Grid{}, err
	}
	st := ds.Structure()
	return zonaltools.GridFromGeoTransform(gt, st.SizeX, st.SizeY, crs)
}

// checkQueryGrid rejects scenes that would need resampling or reprojection
// to satisfy the query.
func checkQueryGrid(g zonaltools.Grid, q zonaltools.Query) error {
	if q.CRS != "" && g.CRS != q.CRS {
		return &zonaltools.AlignmentError{Field: "crs", Got: string(g.CRS), Want: string(q.CRS)}
	}
	if q.Resolution <= 0 {
		return nil
	}
	if math.Abs(math.Abs(g.DX)-q.Resolution) > zonaltools.GridEpsilon || math.Abs(math.Abs(g.DY)-q.Resolution) > zonaltools.GridEpsilon {
		return &zonaltools.AlignmentError{
			Field: "resolution",
			Got:   fmt.Sprintf("%vx%v", math.Abs(g.DX), math.Abs(g.DY)),
			Want:  fmt.Sprint(q.Resolution),
		}
	}
	if !onLattice(g.X0-q.AlignX, q.Resolution) || !onLattice(g.Y0-q.AlignY, q.Resolution) {
		return &zonaltools.AlignmentError{
			Field: "pixel alignment",
			Got:   fmt.Sprintf("(%v, %v)", g.X0, g.Y0),
			Want:  fmt.Sprintf("(%v, %v) mod %v", q.AlignX, q.AlignY, q.Resolution),
		}
	}
	return nil
}

func onLattice(offset, step float64) bool {
	r := math.Mod(math.Abs(offset), step)
	return r <= zonaltools.GridEpsilon || step-r <= zonaltools.GridEpsilon
}

// validFraction is the share of pixels valid in every band.
func validFraction(planes [][]float64) float64 {
	if len(planes) == 0 || len(planes[0]) == 0 {
		return 0
	}
	var valid int
	for p := range planes[0] {
		ok := true
		for _, plane := range planes {
			if math.IsNaN(plane[p]) {
				ok = false
				break
			}
		}
		if ok {
			valid++
		}
	}
	return float64(valid) / float64(len(planes[0]))
}

func indexOf(names []string, want string) int {
	for i, n := range names {
		if n == want {
			return i
		}
	}
	return -1
}

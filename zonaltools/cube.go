package zonaltools

import (
	"fmt"
	"time"
)

const bytesPerSample = 8

// Cube is a multi-band, multi-temporal raster on a single Grid. Data is
// indexed [band][time] and each slice is row-major with Grid.Size() samples.
// NaN marks invalid pixels.
type Cube struct {
	Grid  Grid
	Times []time.Time
	Bands []string
	Data  [][][]float64
}

// NewCube allocates a NaN-filled cube.
func NewCube(grid Grid, times []time.Time, bands []string) *Cube {
	data := make([][][]float64, len(bands))
	for b := range bands {
		data[b] = make([][]float64, len(times))
		for t := range times {
			data[b][t] = nanSlice(grid.Size())
		}
	}
	return &Cube{Grid: grid, Times: times, Bands: bands, Data: data}
}

// BandIndex returns the position of a named band, or -1.
func (c *Cube) BandIndex(name string) int {
	for i, b := range c.Bands {
		if b == name {
			return i
		}
	}
	return -1
}

// Slice returns the samples of band at time step t.
func (c *Cube) Slice(band string, t int) ([]float64, error) {
	b := c.BandIndex(band)
	if b < 0 {
		return nil, fmt.Errorf("band %q not in cube (have %v)", band, c.Bands)
	}
	if t < 0 || t >= len(c.Times) {
		return nil, fmt.Errorf("time step %d out of range [0, %d)", t, len(c.Times))
	}
	return c.Data[b][t], nil
}

// Bytes is the sample storage held by the cube.
func (c *Cube) Bytes() int64 {
	return int64(c.Grid.Size()) * int64(len(c.Bands)) * int64(len(c.Times)) * bytesPerSample
}

// Validate checks the structural invariants: strictly ascending timestamps,
// unique band names and sample slices matching the grid.
func (c *Cube) Validate() error {
	for i := 1; i < len(c.Times); i++ {
		if !c.Times[i].After(c.Times[i-1]) {
			return fmt.Errorf("cube times not strictly ascending at %d: %s then %s",
				i, c.Times[i-1].Format(time.RFC3339), c.Times[i].Format(time.RFC3339))
		}
	}
	seen := make(map[string]bool, len(c.Bands))
	for _, b := range c.Bands {
		if seen[b] {
			return fmt.Errorf("duplicate band %q", b)
		}
		seen[b] = true
	}
	if len(c.Data) != len(c.Bands) {
		return fmt.Errorf("cube has %d band planes for %d bands", len(c.Data), len(c.Bands))
	}
	for b, planes := range c.Data {
		if len(planes) != len(c.Times) {
			return fmt.Errorf("band %q has %d time steps, want %d", c.Bands[b], len(planes), len(c.Times))
		}
		for t, plane := range planes {
			if len(plane) != c.Grid.Size() {
				return fmt.Errorf("band %q time %d has %d samples, want %d", c.Bands[b], t, len(plane), c.Grid.Size())
			}
		}
	}
	return nil
}

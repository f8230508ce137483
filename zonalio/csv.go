package zonalio

import (
	"encoding/csv"
	"errors"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"zonal-tools/zonaltools"
)

// CSVSink writes the wide layout: one line per (site, time) with a column per
// band mean, index mean and index positive fraction. NaN is an empty cell.
type CSVSink struct {
	f       *os.File
	w       *csv.Writer
	bands   []string
	indices []string
	lines   int
}

func NewCSVSink(path string, bands, indices []string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s := &CSVSink{f: f, w: csv.NewWriter(f), bands: bands, indices: indices}

	header := []string{"site", "feature", "s2_id", "time"}
	header = append(header, bands...)
	header = append(header, indices...)
	for _, idx := range indices {
		header = append(header, idx+PositiveSuffix)
	}
	header = append(header, "mask_pixels")
	if err := s.w.Write(header); err != nil {
		return nil, errors.Join(err, f.Close())
	}
	return s, nil
}

func (s *CSVSink) WriteBatch(b zonaltools.Batch) error {
	for _, row := range b.Rows {
		line := []string{
			row.Site,
			strconv.Itoa(row.Feature),
			strconv.FormatInt(int64(row.Cell), 10),
			row.Time.UTC().Format(time.RFC3339),
		}
		for _, band := range s.bands {
			line = append(line, formatValue(row.Bands, band))
		}
		for _, idx := range s.indices {
			line = append(line, formatValue(row.Indices, idx))
		}
		for _, idx := range s.indices {
			line = append(line, formatValue(row.Positive, idx))
		}
		line = append(line, strconv.Itoa(row.MaskPixels))
		if err := s.w.Write(line); err != nil {
			return err
		}
		s.lines++
		if s.lines%10000 == 0 {
			logrus.Infof("Writing row %d", s.lines)
		}
	}
	s.w.Flush()
	return s.w.Error()
}

func formatValue(values map[string]float64, key string) string {
	v, ok := values[key]
	if !ok || math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	err := s.w.Error()
	if err == nil {
		err = s.f.Sync()
	}
	return errors.Join(err, s.f.Close())
}

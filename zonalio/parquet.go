package zonalio

import (
	"errors"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/sirupsen/logrus"

	"zonal-tools/zonaltools"
)

// ParquetSink writes the long layout to a Snappy-compressed Parquet file,
// flushing one row group per batch.
type ParquetSink struct {
	run    string
	output *os.File
	writer *parquet.GenericWriter[Record]
	rows   int
}

func NewParquetSink(path, run string) (*ParquetSink, error) {
	output, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	schema := parquet.SchemaOf(new(Record))
	writer := parquet.NewGenericWriter[Record](output, schema,
		parquet.Compression(&parquet.Snappy),
		parquet.KeyValueMetadata("run", run),
	)
	return &ParquetSink{run: run, output: output, writer: writer}, nil
}

func (s *ParquetSink) WriteBatch(b zonaltools.Batch) error {
	records := Records(s.run, b.Rows)
	if len(records) == 0 {
		return nil
	}
	if _, err := s.writer.Write(records); err != nil {
		return err
	}
	s.rows += len(records)
	logrus.Debugf("Wrote %d parquet records for site %s", len(records), b.Site)
	return s.writer.Flush()
}

func (s *ParquetSink) Close() error {
	logrus.Infof("Closing parquet output with %d records", s.rows)
	return errors.Join(s.writer.Close(), s.output.Close())
}

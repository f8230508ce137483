package zonalio

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"zonal-tools/zonaltools"
)

const createZonalRows = `
CREATE TABLE IF NOT EXISTS zonal_rows (
	run          TEXT NOT NULL,
	site         TEXT NOT NULL,
	feature      INTEGER NOT NULL,
	s2_id        INTEGER NOT NULL,
	s2_geom      TEXT NOT NULL,
	time_unix_ms INTEGER NOT NULL,
	time         TEXT NOT NULL,
	variable     TEXT NOT NULL,
	value        REAL,
	valid_pixels INTEGER,
	mask_pixels  INTEGER NOT NULL,
	PRIMARY KEY (run, feature, time_unix_ms, variable)
);
CREATE INDEX IF NOT EXISTS zonal_rows_site_time ON zonal_rows (site, time_unix_ms);
`

const insertZonalRow = `INSERT INTO zonal_rows
	(run, site, feature, s2_id, s2_geom, time_unix_ms, time, variable, value, valid_pixels, mask_pixels)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLiteSink appends the long layout to a zonal_rows table, one transaction
// per batch. Several runs can share a database; rows are keyed by run.
type SQLiteSink struct {
	run string
	db  *sql.DB
}

func NewSQLiteSink(path, run string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(createZonalRows); err != nil {
		return nil, errors.Join(fmt.Errorf("creating zonal_rows: %w", err), db.Close())
	}
	return &SQLiteSink{run: run, db: db}, nil
}

func (s *SQLiteSink) WriteBatch(b zonaltools.Batch) (err error) {
	records := Records(s.run, b.Rows)
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	stmt, err := tx.Prepare(insertZonalRow)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(r.Run, r.Site, r.Feature, r.S2id, r.Geom, r.TimeUnixMs, r.Time,
			r.Variable, r.Value, r.ValidPixels, r.MaskPixels); err != nil {
			return fmt.Errorf("inserting %s/%s: %w", r.Site, r.Variable, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logrus.Debugf("Inserted %d records for site %s", len(records), b.Site)
	return nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

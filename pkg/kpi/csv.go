package kpi

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"
	"github.com/onosproject/onos-lib-go/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// CSVWriter appends KPI records to a CSV stream. The header is written once,
// before the first record.
type CSVWriter struct {
	w      *csv.Writer
	enc    *csvutil.Encoder
	closer io.Closer
	rows   int
}

// NewCSVWriter wraps w
func NewCSVWriter(w io.Writer) *CSVWriter {
	cw := csv.NewWriter(w)
	return &CSVWriter{w: cw, enc: csvutil.NewEncoder(cw)}
}

// CreateCSV creates (or truncates) the file at path, along with its directory
func CreateCSV(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.NewInvalid("cannot create directory for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.NewInvalid("cannot create %s: %v", path, err)
	}
	log.Infof("Writing KPI records to %s", path)
	cw := NewCSVWriter(f)
	cw.closer = f
	return cw, nil
}

// Write encodes the records and flushes them
func (c *CSVWriter) Write(records []Record) error {
	for i := range records {
		if err := c.enc.Encode(records[i]); err != nil {
			return err
		}
		c.rows++
	}
	c.w.Flush()
	return c.w.Error()
}

// Rows is the number of records written so far
func (c *CSVWriter) Rows() int {
	return c.rows
}

// Close flushes and closes the underlying file, if any
func (c *CSVWriter) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return err
	}
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// Package export flattens certificate records into a CSV file.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Sternrassler/vaas-cert-export/pkg/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var rowsWritten = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "vaas_export_rows_written",
	Help: "Data rows written to the last CSV export",
})

// TimestampLayout is the layout of the timestamp embedded in file names.
const TimestampLayout = "20060102_150405"

// FileName returns the export file name for a run started writing at t.
func FileName(t time.Time) string {
	return "output_" + t.Format(TimestampLayout) + ".csv"
}

// Flatten turns records into a header and rows.
//
// The header is the first record's keys in order. Every record yields one
// row with a cell per header column; a key the record lacks becomes an empty
// cell and keys not in the header are dropped. No records means no header.
func Flatten(records []search.Record) (header []string, rows [][]string) {
	if len(records) == 0 {
		return nil, nil
	}

	header = records[0].Keys()
	rows = make([][]string, 0, len(records))
	for _, record := range records {
		row := make([]string, len(header))
		for i, key := range header {
			row[i], _ = record.Field(key)
		}
		rows = append(rows, row)
	}
	return header, rows
}

// Write writes records as CSV to w and returns the number of data rows.
func Write(w io.Writer, records []search.Record) (int, error) {
	header, rows := Flatten(records)

	cw := csv.NewWriter(w)
	if header != nil {
		if err := cw.Write(header); err != nil {
			return 0, fmt.Errorf("write CSV header: %w", err)
		}
	}
	for i, row := range rows {
		if err := cw.Write(row); err != nil {
			return i, fmt.Errorf("write CSV row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return len(rows), fmt.Errorf("flush CSV: %w", err)
	}
	return len(rows), nil
}

// Exporter writes a timestamped CSV file into a directory.
type Exporter struct {
	dir    string
	now    func() time.Time
	logger zerolog.Logger
}

// NewExporter creates an exporter writing into dir ("" means the working directory).
func NewExporter(dir string) *Exporter {
	if dir == "" {
		dir = "."
	}
	return &Exporter{
		dir:    dir,
		now:    time.Now,
		logger: log.With().Str("component", "export").Logger(),
	}
}

// WithClock returns a copy of the exporter that reads time from now.
func (e *Exporter) WithClock(now func() time.Time) *Exporter {
	clone := *e
	clone.now = now
	return &clone
}

// WithLogger returns a copy of the exporter that logs to logger.
func (e *Exporter) WithLogger(logger zerolog.Logger) *Exporter {
	clone := *e
	clone.logger = logger
	return &clone
}

// Export writes all records to a new output_<timestamp>.csv and returns its path.
//
// The file is written to a temporary name in the same directory and linked
// into place once complete. An existing file of the same name is never
// replaced: Export then fails with an error matching fs.ErrExist. On any error
// nothing is left under the final name.
func (e *Exporter) Export(records []search.Record) (path string, err error) {
	path = filepath.Join(e.dir, FileName(e.now()))

	tmp, err := os.CreateTemp(e.dir, ".output_*.csv.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	n, err := Write(tmp, records)
	if err != nil {
		return "", err
	}
	if err = tmp.Sync(); err != nil {
		return "", fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return "", fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err = os.Link(tmpName, path); err != nil {
		return "", fmt.Errorf("link to %s: %w", path, err)
	}
	if rmErr := os.Remove(tmpName); rmErr != nil {
		e.logger.Warn().Err(rmErr).Str("path", tmpName).Msg("Failed to remove temp file")
	}

	rowsWritten.Set(float64(n))
	e.logger.Info().
		Str("path", path).
		Int("rows", n).
		Msg("CSV export written")

	return path, nil
}

package dqaas

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// TimeLayout is the timestamp format the service parses.
const TimeLayout = "2006-01-02T15:04:05Z"

// Row is one staged sample.
type Row struct {
	ID     string
	Time   time.Time
	Values []float64
}

// createFile opens a staging file for writing.
var createFile = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// Stage writes rows as `id,time,<columns...>` CSV to dir/fileName and
// returns the full path. The file is complete once Stage returns nil.
func Stage(dir, fileName string, columns []string, rows []Row) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "dqaas: create staging dir %s", dir)
	}
	path := filepath.Join(dir, fileName)
	f, err := createFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "dqaas: create %s", path)
	}
	if err := writeRows(f, columns, rows); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrapf(err, "dqaas: close %s", path)
	}
	return path, nil
}

func writeRows(out io.Writer, columns []string, rows []Row) error {
	w := csv.NewWriter(out)
	header := append([]string{"id", TimeColumn}, columns...)
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "dqaas: write header")
	}
	rec := make([]string, len(header))
	for i, r := range rows {
		if len(r.Values) != len(columns) {
			return eris.Errorf("dqaas: row %d has %d values, want %d", i, len(r.Values), len(columns))
		}
		rec[0] = r.ID
		rec[1] = r.Time.UTC().Format(TimeLayout)
		for j, v := range r.Values {
			rec[j+2] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(rec); err != nil {
			return eris.Wrapf(err, "dqaas: write row %d", i)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "dqaas: flush")
}

package recording

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/qhd-cli/internal/fetcher"
	"github.com/sells-group/qhd-cli/internal/model"
)

// readBoundaryFile reads a boundary list from a `timestamp,label` CSV file
// or a `{"<timestamp>": "<label>"}` JSON object. The list keeps file order;
// sorting is the segmenter's job.
func readBoundaryFile(ctx context.Context, path string, unit model.TimeUnit) ([]model.Boundary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(model.ErrDataUnavailable, "recording: open %s: %v", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		obj, err := fetcher.DecodeJSONObject[map[string]any](f)
		if err != nil {
			return nil, eris.Wrapf(model.ErrDataUnavailable, "recording: %s: %v", path, err)
		}
		return boundariesFromObject(*obj, unit)
	default:
		_, rows, err := fetcher.ReadCSV(ctx, f, fetcher.CSVOptions{
			LazyQuotes: true,
			TrimSpace:  true,
		})
		if err != nil {
			return nil, eris.Wrapf(model.ErrDataUnavailable, "recording: %s: %v", path, err)
		}
		return boundariesFromRows(rows, unit)
	}
}

// boundariesFromRows parses `timestamp,label` rows. Fields may be wrapped
// in `|` quotes.
func boundariesFromRows(rows [][]string, unit model.TimeUnit) ([]model.Boundary, error) {
	out := make([]model.Boundary, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, eris.Wrapf(model.ErrSchemaMismatch, "recording: boundary row %d has %d fields", i+1, len(row))
		}
		ts, err := unit.ParseTimestamp(strings.Trim(row[0], "|"))
		if err != nil {
			return nil, eris.Wrapf(model.ErrSchemaMismatch, "recording: boundary row %d: %v", i+1, err)
		}
		out = append(out, model.Boundary{Time: ts, Label: strings.Trim(row[1], "| ")})
	}
	return out, nil
}

// boundariesFromObject parses a JSON timestamp → label object. JSON
// objects carry no order, so entries come back ordered by time.
func boundariesFromObject(obj map[string]any, unit model.TimeUnit) ([]model.Boundary, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]model.Boundary, 0, len(keys))
	for _, k := range keys {
		ts, err := unit.ParseTimestamp(k)
		if err != nil {
			return nil, eris.Wrapf(model.ErrSchemaMismatch, "recording: boundary key: %v", err)
		}
		out = append(out, model.Boundary{Time: ts, Label: fmt.Sprint(obj[k])})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

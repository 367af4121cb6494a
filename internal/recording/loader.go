// Package recording loads raw part recordings from the on-disk layouts of
// each process type and normalizes their timestamps.
package recording

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/qhd-cli/internal/catalog"
	"github.com/sells-group/qhd-cli/internal/model"
)

// Loader reads the recordings of one process type.
type Loader interface {
	// Load returns the full recording of one part.
	Load(ctx context.Context, partID string) (*model.PartRecording, error)
	// PartIDs lists every part with data, in numeric-aware order.
	PartIDs(ctx context.Context) ([]string, error)
	Close() error
}

// New returns the loader matching the catalog's layout. For container
// layouts path may name the container file or its directory.
func New(ctx context.Context, cat *catalog.Catalog, path string) (Loader, error) {
	switch cat.Layout {
	case catalog.LayoutDirectory:
		return NewDirLoader(cat, path), nil
	case catalog.LayoutContainer:
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			path = filepath.Join(path, cat.ContainerFile)
		}
		return OpenContainer(ctx, cat, path)
	default:
		return nil, eris.Errorf("recording: unknown layout %q", cat.Layout)
	}
}

// sortPartIDs orders ids numerically when both parse as integers and
// lexically otherwise.
func sortPartIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, errA := strconv.ParseInt(ids[i], 10, 64)
		b, errB := strconv.ParseInt(ids[j], 10, 64)
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
}

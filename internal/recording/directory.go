package recording

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/qhd-cli/internal/catalog"
	"github.com/sells-group/qhd-cli/internal/model"
)

// DirLoader reads layout A: one directory per part named
// `<partID>_<anything>`, holding one matrix file per stream and side plus
// a boundary file per side.
type DirLoader struct {
	cat  *catalog.Catalog
	root string
}

// NewDirLoader creates a loader rooted at the dataset directory.
func NewDirLoader(cat *catalog.Catalog, root string) *DirLoader {
	return &DirLoader{cat: cat, root: root}
}

// PartIDs lists the part ids found under the dataset root.
func (l *DirLoader) PartIDs(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, eris.Wrapf(model.ErrDataUnavailable, "recording: read dataset root %s: %v", l.root, err)
	}
	seen := make(map[string]bool)
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := partIDOf(e.Name())
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sortPartIDs(ids)
	return ids, nil
}

func partIDOf(dir string) string {
	id, _, _ := strings.Cut(dir, "_")
	return id
}

// partDir finds the directory holding a part's files.
func (l *DirLoader) partDir(partID string) (string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return "", eris.Wrapf(model.ErrDataUnavailable, "recording: read dataset root %s: %v", l.root, err)
	}
	for _, e := range entries {
		if e.IsDir() && partIDOf(e.Name()) == partID {
			return filepath.Join(l.root, e.Name()), nil
		}
	}
	return "", eris.Wrapf(model.ErrDataUnavailable, "recording: no directory for part %s under %s", partID, l.root)
}

// Load reads every side of one part.
func (l *DirLoader) Load(ctx context.Context, partID string) (*model.PartRecording, error) {
	dir, err := l.partDir(partID)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("part_id", partID), zap.String("dir", dir))

	rec := &model.PartRecording{PartID: partID, Process: l.cat.Process}
	for _, side := range l.cat.Sides {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "recording: load cancelled")
		}

		sr := model.SideRecording{Name: side.Name, Streams: make(map[string]*model.Stream, len(l.cat.Streams))}
		for _, spec := range l.cat.Streams {
			s, err := readMatrixFile(filepath.Join(dir, side.Files[spec.Name]), spec)
			if err != nil {
				return nil, eris.Wrapf(err, "recording: part %s side %s", partID, side.Name)
			}
			sr.Streams[spec.Name] = s
		}

		sr.Boundaries, err = readBoundaryFile(ctx, filepath.Join(dir, side.BoundaryFile), l.cat.BoundaryUnit)
		if err != nil {
			return nil, eris.Wrapf(err, "recording: part %s side %s", partID, side.Name)
		}
		log.Debug("side loaded",
			zap.String("side", side.Name),
			zap.Int("boundaries", len(sr.Boundaries)),
		)
		rec.Sides = append(rec.Sides, sr)
	}
	return rec, nil
}

// Close is a no-op; files are released by Load.
func (l *DirLoader) Close() error { return nil }

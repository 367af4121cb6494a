package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/qhd-cli/internal/catalog"
	"github.com/sells-group/qhd-cli/internal/feature"
	"github.com/sells-group/qhd-cli/internal/metrics"
	"github.com/sells-group/qhd-cli/internal/model"
	"github.com/sells-group/qhd-cli/internal/qhd"
	"github.com/sells-group/qhd-cli/internal/quality"
	"github.com/sells-group/qhd-cli/internal/recording"
	"github.com/sells-group/qhd-cli/internal/segment"
	"github.com/sells-group/qhd-cli/pkg/dqaas"
)

// Runner builds the documents of one process type. Each call handles one
// part from load to document; calls for different parts are independent.
type Runner struct {
	cat       *catalog.Catalog
	loader    recording.Loader
	builder   *qhd.Builder
	extractor feature.Extractor
	quality   *quality.Table
	dq        dqaas.Client
	staging   string
	qhdKey    string
	metrics   *metrics.Recorder
}

// Option configures a Runner.
type Option func(*Runner)

// WithExtractor replaces the minimal feature extractor.
func WithExtractor(e feature.Extractor) Option {
	return func(r *Runner) { r.extractor = e }
}

// WithQuality sets the product quality table used by ProductDocument.
func WithQuality(t *quality.Table) Option {
	return func(r *Runner) { r.quality = t }
}

// WithDQaaS enables DataDocument. Input files are staged into dir.
func WithDQaaS(c dqaas.Client, dir, qhdKey string) Option {
	return func(r *Runner) {
		r.dq = c
		r.staging = dir
		r.qhdKey = qhdKey
	}
}

// New creates a Runner.
func New(cat *catalog.Catalog, loader recording.Loader, builder *qhd.Builder, opts ...Option) *Runner {
	r := &Runner{
		cat:       cat,
		loader:    loader,
		builder:   builder,
		extractor: feature.NewMinimal(),
		metrics:   metrics.NewRecorder(cat.Process),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Catalog returns the catalog the runner was built for.
func (r *Runner) Catalog() *catalog.Catalog {
	return r.cat
}

// Subject returns the subject of a part's document of type dt.
func (r *Runner) Subject(partID string, dt model.DocType) (string, error) {
	return r.builder.Subject(partID, dt)
}

// PartIDs lists the parts available to the loader.
func (r *Runner) PartIDs(ctx context.Context) ([]string, error) {
	return r.loader.PartIDs(ctx)
}

// processed is the intermediate state of one part.
type processed struct {
	rec      *model.PartRecording
	doc      *model.QualityDocument
	segments map[string][]model.Segment
}

// ProcessDocument runs load, segment, extract and build for one part.
func (r *Runner) ProcessDocument(ctx context.Context, partID string) (*model.QualityDocument, error) {
	p, err := r.process(ctx, partID)
	if err != nil {
		r.metrics.Part(string(model.DocTypeProcess), "failed")
		return nil, err
	}
	r.metrics.Part(string(model.DocTypeProcess), "ok")
	return p.doc, nil
}

func (r *Runner) process(ctx context.Context, partID string) (*processed, error) {
	log := zap.L().With(zap.String("part_id", partID), zap.String("process", r.cat.Process))

	start := time.Now()
	rec, err := r.loader.Load(ctx, partID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load part %s", partID)
	}
	r.metrics.Stage("load", start)

	start = time.Now()
	var opts []segment.Option
	if rec.FillEmpty {
		opts = append(opts, segment.WithDegenerateFill())
	}
	segs, err := segment.New(r.cat, opts...).SplitPart(rec)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: segment part %s", partID)
	}
	for stream, ss := range segs {
		for _, s := range ss {
			r.metrics.Segment(stream, s.Len(), s.Degenerate)
		}
	}
	r.metrics.Stage("segment", start)

	ids := r.cat.SegmentIDs()
	times, end, err := segment.ProcessingTimes(segs[r.cat.TimingStream], ids, model.UnitSeconds)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: processing times of part %s", partID)
	}

	start = time.Now()
	features := make(map[string]*feature.Table)
	for _, spec := range r.cat.FeatureGroups() {
		rows := feature.FromSegments(spec.Channels, segs[spec.Name])
		table, err := r.extractor.Extract(ctx, rows)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: extract %s of part %s", spec.Name, partID)
		}
		table.Reorder(ids)
		features[spec.Group] = table
	}
	r.metrics.Stage("extract", start)

	start = time.Now()
	doc, err := r.builder.BuildProcess(qhd.ProcessInput{
		PartID:          partID,
		ProcessingTimes: times,
		End:             end,
		Features:        features,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: build process document of part %s", partID)
	}
	r.metrics.Stage("build", start)

	log.Debug("process document built",
		zap.Int("steps", len(ids)),
		zap.String("timeref", doc.QHD.Header.Timeref),
	)
	return &processed{rec: rec, doc: doc, segments: segs}, nil
}

// DataDocument stages the part's analysed stream for the data-quality
// service and turns its response into a data document. The timeref is
// the end of the part's process document.
func (r *Runner) DataDocument(ctx context.Context, partID string) (*model.QualityDocument, error) {
	doc, err := r.dataDocument(ctx, partID)
	if err != nil {
		r.metrics.Part(string(model.DocTypeData), "failed")
		return nil, err
	}
	r.metrics.Part(string(model.DocTypeData), "ok")
	return doc, nil
}

func (r *Runner) dataDocument(ctx context.Context, partID string) (*model.QualityDocument, error) {
	if r.dq == nil {
		return nil, eris.New("pipeline: data-quality service is not configured")
	}
	spec, ok := r.cat.Stream(r.cat.DQaaS.Stream)
	if !ok {
		return nil, eris.Wrapf(model.ErrSchemaMismatch, "pipeline: catalog %s has no dqaas stream %q", r.cat.Process, r.cat.DQaaS.Stream)
	}

	p, err := r.process(ctx, partID)
	if err != nil {
		return nil, err
	}

	for _, side := range p.rec.Sides {
		if st, ok := side.Streams[spec.Name]; ok {
			if _, ok := st.ChannelIndex(r.cat.DQaaS.ValueColumn); !ok {
				return nil, eris.Wrapf(model.ErrSchemaMismatch, "pipeline: part %s stream %s has no channel %q",
					partID, spec.Name, r.cat.DQaaS.ValueColumn)
			}
		}
	}

	var rows []dqaas.Row
	for _, s := range p.segments[spec.Name] {
		if s.Degenerate {
			continue
		}
		for i, ts := range s.Time {
			rows = append(rows, dqaas.Row{ID: s.ID, Time: ts.Time(), Values: s.Values[i]})
		}
	}

	start := time.Now()
	fileName := fmt.Sprintf("%s_%s_%s.csv", r.cat.Process, partID, spec.Name)
	if _, err := dqaas.Stage(r.staging, fileName, spec.Channels, rows); err != nil {
		return nil, eris.Wrapf(err, "pipeline: stage data of part %s", partID)
	}
	resp, err := r.dq.Analyze(ctx, dqaas.AnalyzeRequest{
		FileName:    fileName,
		ValueColumn: r.cat.DQaaS.ValueColumn,
		QHDKey:      r.qhdKey,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: analyse data of part %s", partID)
	}
	r.metrics.Stage("dqaas", start)

	doc, err := r.builder.BuildData(partID, p.doc.QHD.Header.Timeref, resp)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: build data document of part %s", partID)
	}
	return doc, nil
}

// ProductDocument builds the product document of a part from the quality
// table.
func (r *Runner) ProductDocument(_ context.Context, partID string) (*model.QualityDocument, error) {
	doc, err := r.productDocument(partID)
	if err != nil {
		r.metrics.Part(string(model.DocTypeProduct), "failed")
		return nil, err
	}
	r.metrics.Part(string(model.DocTypeProduct), "ok")
	return doc, nil
}

func (r *Runner) productDocument(partID string) (*model.QualityDocument, error) {
	if r.quality == nil {
		return nil, eris.Wrapf(model.ErrDataUnavailable, "pipeline: no quality table for %s", r.cat.Process)
	}
	rec, err := r.quality.Get(partID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: quality record of part %s", partID)
	}
	at := rec.MeasuredAt
	if at.IsZero() {
		if r.cat.Product.Timeref == "" {
			return nil, eris.Wrapf(model.ErrSchemaMismatch, "pipeline: part %s has no measurement time", partID)
		}
		if at, err = qhd.ParseTimeref(r.cat.Product.Timeref); err != nil {
			return nil, eris.Wrapf(model.ErrSchemaMismatch, "pipeline: catalog %s product timeref: %v", r.cat.Process, err)
		}
	}
	doc, err := r.builder.BuildProduct(partID, at, rec.Fields)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: build product document of part %s", partID)
	}
	return doc, nil
}

// QualityIDs lists the parts present in the quality table.
func (r *Runner) QualityIDs() []string {
	if r.quality == nil {
		return nil
	}
	return r.quality.IDs()
}

// Document dispatches on the document type.
func (r *Runner) Document(ctx context.Context, dt model.DocType, partID string) (*model.QualityDocument, error) {
	switch dt {
	case model.DocTypeProcess:
		return r.ProcessDocument(ctx, partID)
	case model.DocTypeData:
		return r.DataDocument(ctx, partID)
	case model.DocTypeProduct:
		return r.ProductDocument(ctx, partID)
	default:
		return nil, eris.Errorf("pipeline: unknown document type %q", dt)
	}
}

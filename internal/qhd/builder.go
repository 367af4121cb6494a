// Package qhd assembles quality hallmark documents.
package qhd

import (
	"math"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/qhd-cli/internal/catalog"
	"github.com/sells-group/qhd-cli/internal/feature"
	"github.com/sells-group/qhd-cli/internal/model"
)

// ProcessingTimeKey is the unprefixed per-step duration field.
const ProcessingTimeKey = "processing_time"

// Identity carries the credentials and header constants of the publisher.
type Identity struct {
	Owner string
	Model string
	CID   string
	Pwd   string
}

// Builder builds documents for one process type.
type Builder struct {
	cat *catalog.Catalog
	id  Identity
}

// NewBuilder creates a builder.
func NewBuilder(cat *catalog.Catalog, id Identity) *Builder {
	return &Builder{cat: cat, id: id}
}

// ProcessInput is everything a process document is built from.
type ProcessInput struct {
	PartID          string
	ProcessingTimes map[string]float64 // segment id -> seconds
	End             model.Timestamp    // last sample of the last step
	Features        map[string]*feature.Table
}

// BuildProcess emits one body entry per catalog step holding the
// processing time and one indicator group per catalog feature group.
func (b *Builder) BuildProcess(in ProcessInput) (*model.QualityDocument, error) {
	header, err := b.header(in.PartID, model.DocTypeProcess, FormatTimeref(in.End))
	if err != nil {
		return nil, err
	}

	body := make(map[string]any, len(b.cat.Steps))
	for _, id := range b.cat.SegmentIDs() {
		pt, ok := in.ProcessingTimes[id]
		if !ok {
			return nil, eris.Wrapf(model.ErrEmptySegment, "qhd: no processing time for %s", id)
		}
		entry := map[string]any{ProcessingTimeKey: finite(pt)}

		for _, group := range b.cat.FeatureGroups() {
			table, ok := in.Features[group.Group]
			if !ok {
				return nil, eris.Wrapf(model.ErrSchemaMismatch, "qhd: missing feature group %s", group.Group)
			}
			feats, err := table.Lookup(id)
			if err != nil {
				return nil, eris.Wrapf(err, "qhd: group %s", group.Group)
			}
			values := make(RawBody, len(feats))
			for name, v := range feats {
				values[name] = v
			}
			entry[group.Group] = map[string]any(nullNonFinite(MarkIndicators(values)))
		}
		body[id] = entry
	}

	return b.document(header, body), nil
}

// BuildData turns a data-quality service response into a data document.
// The response header is discarded; the timeref is taken from the part's
// process document.
func (b *Builder) BuildData(partID, timeref string, response map[string]any) (*model.QualityDocument, error) {
	raw, ok := response["qhd"].(map[string]any)
	if !ok {
		return nil, eris.Wrap(model.ErrSchemaMismatch, "qhd: data response has no qhd object")
	}
	body, ok := raw["qhd-body"].(map[string]any)
	if !ok {
		return nil, eris.Wrap(model.ErrSchemaMismatch, "qhd: data response has no qhd-body object")
	}
	header, err := b.header(partID, model.DocTypeData, timeref)
	if err != nil {
		return nil, err
	}
	return b.document(header, nullNonFinite(MarkIndicators(body))), nil
}

// BuildProduct builds a product document from one quality table row.
func (b *Builder) BuildProduct(partID string, measuredAt time.Time, fields map[string]any) (*model.QualityDocument, error) {
	header, err := b.header(partID, model.DocTypeProduct, FormatTime(measuredAt))
	if err != nil {
		return nil, err
	}
	return b.document(header, nullNonFinite(MarkIndicators(fields))), nil
}

// Subject returns the subject a part's document of type dt carries.
func (b *Builder) Subject(partID string, dt model.DocType) (string, error) {
	return Subject{
		PartType: b.cat.PartType,
		PartID:   partID,
		Process:  b.cat.Process,
		DocType:  dt,
	}.Format()
}

func (b *Builder) header(partID string, dt model.DocType, timeref string) (model.Header, error) {
	subject, err := b.Subject(partID, dt)
	if err != nil {
		return model.Header{}, err
	}
	return model.Header{
		Owner:   b.id.Owner,
		Subject: subject,
		Timeref: timeref,
		Model:   b.id.Model,
		Asset:   "type::" + string(dt),
	}, nil
}

func (b *Builder) document(h model.Header, body map[string]any) *model.QualityDocument {
	return &model.QualityDocument{
		Pwd: b.id.Pwd,
		CID: b.id.CID,
		QHD: model.QHD{Header: h, Body: body},
	}
}

// nullNonFinite replaces non-finite numeric leaves of a marked body with
// nil, in place. Marking runs first so such leaves keep their prefix.
func nullNonFinite(body IndicatorBody) IndicatorBody {
	for k, v := range body {
		switch x := v.(type) {
		case float64:
			body[k] = finite(x)
		case map[string]any:
			nullNonFinite(IndicatorBody(x))
		case IndicatorBody:
			nullNonFinite(x)
		}
	}
	return body
}

// finite maps NaN and ±Inf to nil so they encode as JSON null.
func finite(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

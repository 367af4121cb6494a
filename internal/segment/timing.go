package segment

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/qhd-cli/internal/model"
)

// ProcessingTimes returns, for each id in catalog order, the time between
// the first and last sample of its segments expressed in unit, and the
// last sample time of the final id. Segments sharing an id are combined.
// A missing or zero-row segment fails with model.ErrEmptySegment.
func ProcessingTimes(segs []model.Segment, ids []string, unit model.TimeUnit) (map[string]float64, model.Timestamp, error) {
	type span struct {
		first, last model.Timestamp
		rows        int
	}
	spans := make(map[string]*span, len(ids))
	for _, seg := range segs {
		if seg.Len() == 0 {
			continue
		}
		first, last := seg.Time[0], seg.Time[seg.Len()-1]
		sp, ok := spans[seg.ID]
		if !ok {
			spans[seg.ID] = &span{first: first, last: last, rows: seg.Len()}
			continue
		}
		sp.first = min(sp.first, first)
		sp.last = max(sp.last, last)
		sp.rows += seg.Len()
	}

	times := make(map[string]float64, len(ids))
	var end model.Timestamp
	for _, id := range ids {
		sp, ok := spans[id]
		if !ok {
			return nil, 0, eris.Wrapf(model.ErrEmptySegment, "segment: no samples for %s", id)
		}
		times[id] = unit.FromDuration(sp.last - sp.first)
		end = sp.last
	}
	return times, end, nil
}

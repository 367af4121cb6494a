package feature

import (
	"context"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/rotisserie/eris"

	"github.com/sells-group/qhd-cli/internal/model"
)

// MinimalFeatures lists the minimal statistical feature set in output
// order.
var MinimalFeatures = []string{
	"sum_values",
	"median",
	"mean",
	"length",
	"standard_deviation",
	"variance",
	"root_mean_square",
	"maximum",
	"absolute_maximum",
	"minimum",
}

// MinimalExtractor computes MinimalFeatures for every channel.
type MinimalExtractor struct{}

// NewMinimal returns the minimal statistical extractor.
func NewMinimal() *MinimalExtractor {
	return &MinimalExtractor{}
}

// Extract groups rows by segment id in order of first appearance, sorts
// each group by time and computes the feature set per channel.
func (e *MinimalExtractor) Extract(ctx context.Context, in LabeledRows) (*Table, error) {
	columns := make([]string, 0, len(in.Channels)*len(MinimalFeatures))
	for _, ch := range in.Channels {
		for _, f := range MinimalFeatures {
			columns = append(columns, ColumnName(ch, f))
		}
	}
	table := NewTable(columns)

	var order []string
	groups := make(map[string][]Row)
	for _, r := range in.Rows {
		if len(r.Values) != len(in.Channels) {
			return nil, eris.Wrapf(model.ErrSchemaMismatch, "feature: segment %s row has %d values for %d channels",
				r.SegmentID, len(r.Values), len(in.Channels))
		}
		if _, ok := groups[r.SegmentID]; !ok {
			order = append(order, r.SegmentID)
		}
		groups[r.SegmentID] = append(groups[r.SegmentID], r)
	}

	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "feature: extraction cancelled")
		}
		rows := groups[id]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Time < rows[j].Time })

		values := make([]float64, 0, len(columns))
		series := make(stats.Float64Data, len(rows))
		for c := range in.Channels {
			for i, r := range rows {
				series[i] = r.Values[c]
			}
			fs, err := minimal(series)
			if err != nil {
				return nil, eris.Wrapf(err, "feature: segment %s channel %s", id, in.Channels[c])
			}
			values = append(values, fs...)
		}
		if err := table.Append(id, values); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// minimal computes MinimalFeatures for one non-empty series, population
// statistics throughout.
func minimal(x stats.Float64Data) ([]float64, error) {
	sum, err := stats.Sum(x)
	if err != nil {
		return nil, eris.Wrap(err, "sum")
	}
	median, err := stats.Median(x)
	if err != nil {
		return nil, eris.Wrap(err, "median")
	}
	mean, err := stats.Mean(x)
	if err != nil {
		return nil, eris.Wrap(err, "mean")
	}
	std, err := stats.StandardDeviationPopulation(x)
	if err != nil {
		return nil, eris.Wrap(err, "standard deviation")
	}
	variance, err := stats.PopulationVariance(x)
	if err != nil {
		return nil, eris.Wrap(err, "variance")
	}
	maximum, err := stats.Max(x)
	if err != nil {
		return nil, eris.Wrap(err, "maximum")
	}
	minimum, err := stats.Min(x)
	if err != nil {
		return nil, eris.Wrap(err, "minimum")
	}

	squares := make(stats.Float64Data, len(x))
	for i, v := range x {
		squares[i] = v * v
	}
	meanSquare, err := stats.Mean(squares)
	if err != nil {
		return nil, eris.Wrap(err, "root mean square")
	}

	return []float64{
		sum,
		median,
		mean,
		float64(len(x)),
		std,
		variance,
		math.Sqrt(meanSquare),
		maximum,
		math.Max(math.Abs(maximum), math.Abs(minimum)),
		minimum,
	}, nil
}

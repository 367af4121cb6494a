package publish

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/qhd-cli/internal/metrics"
	"github.com/sells-group/qhd-cli/internal/model"
	"github.com/sells-group/qhd-cli/internal/resilience"
)

// PartFunc builds and publishes the documents of one part.
type PartFunc func(ctx context.Context, partID string) error

// BatchResult summarises a PublishAll run.
type BatchResult struct {
	Succeeded int64
	Failed    int64
}

// PublishAll runs fn for every id on a bounded worker pool. A failing
// part is logged and appended to the failure log; the batch continues.
func (p *Publisher) PublishAll(ctx context.Context, process string, docType model.DocType, ids []string, fn PartFunc) (*BatchResult, error) {
	if len(ids) == 0 {
		zap.L().Info("no parts to publish", zap.String("process", process))
		return &BatchResult{}, nil
	}

	zap.L().Info("publishing batch",
		zap.String("process", process),
		zap.Int("parts", len(ids)),
		zap.Int("concurrency", p.workers),
	)

	rec := metrics.NewRecorder(process)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	var succeeded, failed atomic.Int64
	for _, id := range ids {
		g.Go(func() error {
			log := zap.L().With(zap.String("part_id", id), zap.String("process", process))

			if err := fn(gctx, id); err != nil {
				failed.Add(1)
				log.Error("part failed", zap.Error(err))
				entry := resilience.NewFailure(id, process, docType, err)
				rec.Failure(entry.ErrorType)
				if p.store != nil {
					if sErr := p.store.AppendFailure(gctx, entry); sErr != nil {
						log.Warn("failed to append failure entry", zap.Error(sErr))
					}
				}
				return nil // don't abort batch on individual failure
			}
			succeeded.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "publish: batch")
	}

	res := &BatchResult{Succeeded: succeeded.Load(), Failed: failed.Load()}
	zap.L().Info("batch complete",
		zap.String("process", process),
		zap.Int64("succeeded", res.Succeeded),
		zap.Int64("failed", res.Failed),
	)
	return res, nil
}

// Package publish submits quality documents to the hallmark service and
// records the outcome.
package publish

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/qhd-cli/internal/metrics"
	"github.com/sells-group/qhd-cli/internal/model"
	"github.com/sells-group/qhd-cli/internal/resilience"
	"github.com/sells-group/qhd-cli/internal/store"
	"github.com/sells-group/qhd-cli/pkg/qhs"
)

// Ref identifies the document being published.
type Ref struct {
	PartID  string
	Process string
	DocType model.DocType
}

// Publisher posts documents with a bounded retry.
type Publisher struct {
	client  qhs.Client
	store   store.Store
	mirror  Mirror
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
	workers int
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithStore records publish results and failures in st.
func WithStore(st store.Store) Option {
	return func(p *Publisher) { p.store = st }
}

// WithMirror copies every accepted document to m.
func WithMirror(m Mirror) Option {
	return func(p *Publisher) { p.mirror = m }
}

// WithRetry sets the retry policy for transient responses.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(p *Publisher) { p.retry = cfg }
}

// WithBreaker guards the service with b.
func WithBreaker(b *resilience.Breaker) Option {
	return func(p *Publisher) { p.breaker = b }
}

// WithConcurrency sets the number of parts PublishAll runs at once.
func WithConcurrency(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.workers = n
		}
	}
}

// New creates a Publisher.
func New(client qhs.Client, opts ...Option) *Publisher {
	p := &Publisher{
		client:  client,
		retry:   resilience.DefaultRetryConfig(),
		workers: 4,
	}
	for _, o := range opts {
		o(p)
	}
	if p.breaker == nil {
		p.breaker = resilience.NewBreaker(resilience.BreakerConfig{})
	}
	return p
}

// Publish posts doc. A duplicate reported by the service counts as
// success. Transient responses are retried until the policy gives up.
func (p *Publisher) Publish(ctx context.Context, doc *model.QualityDocument, ref Ref) (*model.PublishRecord, error) {
	log := zap.L().With(
		zap.String("part_id", ref.PartID),
		zap.String("process", ref.Process),
		zap.String("doc_type", string(ref.DocType)),
	)

	cfg := p.retry
	cfg.OnRetry = resilience.RetryLogger("publish", zap.String("part_id", ref.PartID), zap.String("doc_type", string(ref.DocType)))

	attempts := 0
	res, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*qhs.PostResult, error) {
		attempts++
		var res *qhs.PostResult
		err := p.breaker.Execute(ctx, func(ctx context.Context) error {
			r, err := p.client.Post(ctx, doc)
			if err != nil {
				metrics.Publish(string(ref.DocType), "error")
				return resilience.NewTransientError(err, 0)
			}
			metrics.Publish(string(ref.DocType), string(r.Outcome))
			if r.Outcome == qhs.Transient {
				return resilience.NewTransientError(
					eris.Wrapf(model.ErrPublishTransient, "publish: status %d: %s", r.StatusCode, r.Message),
					r.StatusCode,
				)
			}
			res = r
			return nil
		})
		return res, err
	})
	if err != nil {
		return nil, eris.Wrapf(err, "publish: %s %s after %d attempts", ref.DocType, ref.PartID, attempts)
	}

	rec := &model.PublishRecord{
		PartID:      ref.PartID,
		Process:     ref.Process,
		DocType:     ref.DocType,
		Subject:     doc.QHD.Header.Subject,
		Outcome:     model.PublishCreated,
		DocumentID:  res.ID,
		Attempts:    attempts,
		PublishedAt: time.Now().UTC(),
	}
	if res.Outcome == qhs.Conflict {
		rec.Outcome = model.PublishConflict
		log.Info("document already published", zap.Error(eris.Wrap(model.ErrPublishConflict, res.Message)))
	} else {
		log.Info("document published", zap.String("document_id", res.ID), zap.Int("attempts", attempts))
	}

	if p.store != nil {
		if err := p.store.RecordPublish(ctx, *rec); err != nil {
			log.Warn("failed to record publish", zap.Error(err))
		}
	}
	if p.mirror != nil {
		if err := p.mirror.Mirror(ctx, doc); err != nil {
			log.Warn("failed to mirror document", zap.Error(err))
		}
	}
	return rec, nil
}

package publish

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/qhd-cli/internal/qhd"
)

// Exists reports whether the service already stores a document with the
// given subject. Stored documents whose subject does not parse are ignored.
func (p *Publisher) Exists(ctx context.Context, subject string) (bool, error) {
	want, err := qhd.ParseSubject(subject)
	if err != nil {
		return false, eris.Wrap(err, "publish: exists")
	}
	docs, err := p.client.Query(ctx, subject)
	if err != nil {
		return false, eris.Wrapf(err, "publish: query %s", subject)
	}
	for _, d := range docs {
		raw := subjectOf(d)
		got, err := qhd.ParseSubject(raw)
		if err != nil {
			zap.L().Warn("stored document has malformed subject", zap.String("subject", raw), zap.Error(err))
			continue
		}
		if got == want {
			return true, nil
		}
	}
	return false, nil
}

// Available reports whether the breaker currently lets posts through.
func (p *Publisher) Available() bool {
	return !p.breaker.Open()
}

// subjectOf reads qhd.qhd-header.subject, falling back to a top-level
// subject field.
func subjectOf(doc map[string]any) string {
	if q, ok := doc["qhd"].(map[string]any); ok {
		if h, ok := q["qhd-header"].(map[string]any); ok {
			if s, ok := h["subject"].(string); ok {
				return s
			}
		}
	}
	s, _ := doc["subject"].(string)
	return s
}

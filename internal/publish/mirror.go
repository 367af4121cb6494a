package publish

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/segmentio/kafka-go"

	"github.com/sells-group/qhd-cli/internal/model"
)

// Mirror receives a copy of every accepted document.
type Mirror interface {
	Mirror(ctx context.Context, doc *model.QualityDocument) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer the mirror uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaMirror writes documents to a Kafka topic keyed by subject.
type KafkaMirror struct {
	w messageWriter
}

// NewKafkaMirror creates a mirror writing to topic on brokers.
func NewKafkaMirror(brokers []string, topic string) (*KafkaMirror, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, eris.New("publish: kafka mirror needs brokers and a topic")
	}
	return &KafkaMirror{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}}, nil
}

// Mirror publishes doc as JSON.
func (m *KafkaMirror) Mirror(ctx context.Context, doc *model.QualityDocument) error {
	value, err := json.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "publish: marshal mirror message")
	}
	h := doc.QHD.Header
	msg := kafka.Message{
		Key:   []byte(h.Subject),
		Value: value,
		Headers: []kafka.Header{
			{Key: "asset", Value: []byte(h.Asset)},
			{Key: "timeref", Value: []byte(h.Timeref)},
		},
	}
	if err := m.w.WriteMessages(ctx, msg); err != nil {
		return eris.Wrap(err, "publish: write mirror message")
	}
	return nil
}

// Close flushes and closes the writer.
func (m *KafkaMirror) Close() error {
	return m.w.Close()
}

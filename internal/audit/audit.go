// Package audit publishes one record per processed event so that deliveries
// can be traced after the fact.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Record describes what a dispatch run did with one scheduled event.
type Record struct {
	RunID      string    `json:"run_id"`
	EventID    string    `json:"event_id"`
	Day        string    `json:"day"`
	Status     string    `json:"status"`
	Audience   int       `json:"audience"`
	Tokens     int       `json:"tokens"`
	Success    int       `json:"success"`
	Failure    int       `json:"failure"`
	Retired    bool      `json:"retired"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher ships audit records.
type Publisher interface {
	Publish(ctx context.Context, records ...Record) error
	Close() error
}

// Nop drops every record.
type Nop struct{}

func (Nop) Publish(context.Context, ...Record) error { return nil }
func (Nop) Close() error                             { return nil }

// Kafka writes records to a topic keyed by event id, so that all records of
// one event land on the same partition.
type Kafka struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewKafka creates a publisher for topic on brokers.
func NewKafka(brokers []string, topic string, logger *slog.Logger) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		logger: logger,
	}
}

// Publish implements Publisher.
func (k *Kafka) Publish(ctx context.Context, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		value, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode audit record %s: %w", r.EventID, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(r.EventID), Value: value, Time: r.OccurredAt})
	}
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d audit records to %s: %w", len(msgs), k.writer.Topic, err)
	}
	k.logger.Debug("Audit records published", "topic", k.writer.Topic, "count", len(msgs))
	return nil
}

// Close flushes pending writes.
func (k *Kafka) Close() error { return k.writer.Close() }

// Memory keeps records in process. Used by tests and local runs.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

// Publish implements Publisher.
func (m *Memory) Publish(_ context.Context, records ...Record) error {
	m.mu.Lock()
	m.records = append(m.records, records...)
	m.mu.Unlock()
	return nil
}

// Close implements Publisher.
func (m *Memory) Close() error { return nil }

// Records returns a copy of everything published so far.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

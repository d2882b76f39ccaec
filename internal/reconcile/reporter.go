// Package reconcile publishes capacity leaks: reservations whose
// compensating release failed, leaving seats counted for a participant who
// was never registered. Records go to a Kafka topic for operators to fix the
// counts by hand. They are notifications, not a replay log.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Leak describes seats that stayed reserved after a failed registration.
type Leak struct {
	AttemptID    string    `json:"attempt_id"`
	EventID      string    `json:"event_id"`
	Resources    []string  `json:"resources"`
	Cause        string    `json:"cause"`
	ReleaseError string    `json:"release_error"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Producer is the subset of *kafka.Writer the reporter uses.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaReporter writes one message per leak, keyed by event id so all leaks
// of an event land on the same partition.
type KafkaReporter struct {
	log      *zap.Logger
	producer Producer
	topic    string
}

// NewKafkaReporter constructs a reporter over producer.
func NewKafkaReporter(log *zap.Logger, producer Producer, topic string) *KafkaReporter {
	return &KafkaReporter{log: log, producer: producer, topic: topic}
}

// NewKafkaWriter builds the producer used in production.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// ReportLeak publishes leak.
func (r *KafkaReporter) ReportLeak(ctx context.Context, leak Leak) error {
	payload, err := json.Marshal(leak)
	if err != nil {
		return fmt.Errorf("encode leak: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(leak.EventID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("CapacityLeaked")},
			{Key: "attempt_id", Value: []byte(leak.AttemptID)},
		},
	}
	if err := r.producer.WriteMessages(ctx, msg); err != nil {
		r.log.Error("leak report failed", zap.String("attempt_id", leak.AttemptID), zap.Error(err))
		return fmt.Errorf("publish leak: %w", err)
	}
	r.log.Info("leak reported",
		zap.String("attempt_id", leak.AttemptID),
		zap.String("event_id", leak.EventID),
		zap.String("topic", r.topic),
	)
	return nil
}

// Close flushes and closes the producer.
func (r *KafkaReporter) Close() error {
	return r.producer.Close()
}

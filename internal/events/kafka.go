package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes events as JSON keyed by company so one tenant's events
// stay ordered on a partition.
type Kafka struct {
	w     messageWriter
	topic string
}

func NewKafka(brokers []string, topic string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, errors.New("topic must not be empty")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: false,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
	}
	return &Kafka{w: w, topic: topic}, nil
}

func (k *Kafka) PublishAnalysisCompleted(ctx context.Context, evt AnalysisCompleted) error {
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return k.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.CompanyID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte("analysis.completed")},
		},
		Time: evt.OccurredAt,
	})
}

func (k *Kafka) Close() error { return k.w.Close() }

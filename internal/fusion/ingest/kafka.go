package ingest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/nvoloshin/betfuse/internal/pkg/config"
)

// KafkaConsumer pulls observations from a topic for deployments where
// producers publish through a broker instead of pushing HTTP.
type KafkaConsumer struct {
	reader   *kafka.Reader
	pipeline *Pipeline
}

func NewKafkaConsumer(cfg config.KafkaConfig, p *Pipeline) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 1 << 20,
		}),
		pipeline: p,
	}
}

// Run consumes until ctx is cancelled. A malformed message is dropped
// like any other bad observation; broker errors are logged and the read
// loop continues, kafka-go handles reconnection itself.
func (c *KafkaConsumer) Run(ctx context.Context) {
	slog.Info("Kafka consumer started", "topic", c.reader.Config().Topic)
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			slog.Warn("Kafka read failed", "error", err)
			continue
		}
		for _, obs := range decodeObservations(msg.Value) {
			c.pipeline.Apply(obs)
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

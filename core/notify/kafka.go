package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/relabs-tech/modelgate/core"
	"github.com/relabs-tech/modelgate/core/logger"
)

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the kafka notifier
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaNotifier writes one kafka message per notification. Messages are keyed by
// "<model>:<id>", so all changes of a record end up in the same partition.
type KafkaNotifier struct {
	writer kafkaWriter
}

// NewKafkaNotifier creates a notifier writing to cfg.Topic
func NewKafkaNotifier(cfg KafkaConfig) (*KafkaNotifier, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		trimmed := strings.TrimSpace(b)
		if trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("kafka topic required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &KafkaNotifier{writer: w}, nil
}

// Notify implements core.Notifier
func (k *KafkaNotifier) Notify(ctx context.Context, n core.Notification) error {
	if k == nil || k.writer == nil {
		return fmt.Errorf("kafka notifier not initialized")
	}
	body, err := Encode(ctx, n)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(Key(n)),
		Value: body,
		Headers: []kafka.Header{
			{Key: "operation", Value: []byte(n.Operation)},
			{Key: "logger", Value: logger.SerializeLoggerContext(ctx)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("cannot write kafka message for %s: %w", Key(n), err)
	}
	return nil
}

// Close flushes pending messages and closes the writer
func (k *KafkaNotifier) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

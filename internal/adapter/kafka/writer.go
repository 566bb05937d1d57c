package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	kafkago "github.com/segmentio/kafka-go"
)

// Publisher sends completion notifications to Kafka topics.
// It implements pipeline.Notifier.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer. The topic is chosen per message.
func NewPublisher(brokers []string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish writes one notification and waits for broker acknowledgement.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte, attrs map[string]string) error {
	msg := buildMessage(topic, payload, attrs)
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to kafka topic %s: %w", topic, err)
	}
	p.logger.Debug("notification published", "backend", "kafka", "topic", topic)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// buildMessage keys the message by run_id and carries attributes as headers
// in sorted order.
func buildMessage(topic string, payload []byte, attrs map[string]string) kafkago.Message {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := make([]kafkago.Header, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(attrs[k])})
	}
	return kafkago.Message{
		Topic:   topic,
		Key:     []byte(attrs["run_id"]),
		Value:   payload,
		Headers: headers,
	}
}

package pubsub

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// Publisher sends completion notifications to Pub/Sub topics.
// It implements pipeline.Notifier.
type Publisher struct {
	client *pubsub.Client
	logger *slog.Logger
}

// NewPublisher creates a Pub/Sub client for projectID.
func NewPublisher(ctx context.Context, projectID string, logger *slog.Logger, opts ...option.ClientOption) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &Publisher{client: client, logger: logger}, nil
}

// Publish sends one message and blocks until the server acknowledges it or ctx ends.
func (p *Publisher) Publish(ctx context.Context, topicID string, payload []byte, attrs map[string]string) error {
	topic := p.client.Topic(topicID)
	defer topic.Stop()

	id, err := topic.Publish(ctx, &pubsub.Message{Data: payload, Attributes: attrs}).Get(ctx)
	if err != nil {
		return fmt.Errorf("publish to pubsub topic %s: %w", topicID, err)
	}
	p.logger.Debug("notification published", "backend", "pubsub", "topic", topicID, "message_id", id)
	return nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

package broadcast

import (
	"context"
	"time"
)

// Message is a single broadcast payload delivered to topic subscribers.
type Message struct {
	ID        string         `json:"id"`
	Topic     string         `json:"topic"`
	Payload   []byte         `json:"payload"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Subscriber receives messages published to a single topic.
type Subscriber interface {
	// Messages returns the channel messages are delivered on.
	// The channel is closed when the subscriber is closed.
	Messages() <-chan Message

	// Topic returns the topic this subscriber is attached to.
	Topic() string

	// Close detaches the subscriber and closes its message channel.
	// Close is idempotent.
	Close() error
}

// Broadcaster is a best-effort topic fan-out. Delivery is not guaranteed:
// implementations drop messages for slow or disconnected consumers rather
// than blocking the publisher, and callers must treat a durable store as
// the correctness backstop, not the broadcast.
type Broadcaster interface {
	// Publish sends payload to every subscriber of topic. A topic with no
	// subscribers is not an error.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe attaches a new subscriber to topic. The subscription is
	// torn down when ctx is cancelled or the subscriber is closed.
	Subscribe(ctx context.Context, topic string) (Subscriber, error)

	// Close shuts down the broadcaster and all attached subscribers.
	Close() error
}

package jetstream

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
)

// Delivery is the acknowledgement surface of a JetStream message. *nats.Msg
// satisfies it; handlers take it so tests can observe the chosen outcome.
type Delivery interface {
	Metadata() (*nats.MsgMetadata, error)
	Ack(opts ...nats.AckOpt) error
	Nak(opts ...nats.AckOpt) error
	NakWithDelay(delay time.Duration, opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

var _ Delivery = (*nats.Msg)(nil)

// ClientInterface is the slice of JetStream the service uses. Consumers,
// the DLQ worker, the reminder job and the load generator depend on it so
// tests can swap in a mock.
type ClientInterface interface {
	// SetupStream creates the stream or updates it when the core settings drifted
	SetupStream(ctx context.Context, streamConfig *nats.StreamConfig) error

	// SetupConsumer creates the durable consumer on streamName, recreating it on drift
	SetupConsumer(ctx context.Context, streamName string, consumerConfig *nats.ConsumerConfig) error

	// SubscribePush binds a queue subscription to an existing push consumer
	SubscribePush(subject, consumer, group, stream string, handler nats.MsgHandler) (*nats.Subscription, error)

	// SubscribePull binds a pull subscription to an existing durable consumer
	SubscribePull(streamName, subject, consumer string) (*nats.Subscription, error)

	// Publish publishes a message to a subject with optional headers
	Publish(subject string, data []byte, headers map[string]string) error

	// IsConnected reports whether the underlying connection is up
	IsConnected() bool

	// Close closes the NATS connection
	Close()
}

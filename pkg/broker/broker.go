package broker

import (
	"context"
	"time"

	"github.com/digsinet/digsinet/pkg/task"
)

// RealnetChannel is the fixed channel name the real network's supervisor
// tick publishes to and waits on, alongside one channel per sibling.
const RealnetChannel = "realnet"

// Consumer is an opaque, backend-owned handle returned by Subscribe and
// passed back to Poll. Callers must treat it as single-owner: only the
// goroutine that subscribed should poll it.
type Consumer any

// Broker is the uniform publish/subscribe/poll surface implemented by
// every backend. Implementations must preserve FIFO order within one
// channel from a single publisher; no ordering is guaranteed across
// channels or across publishers.
type Broker interface {
	// Publish encodes msg with task.Marshal and sends it on channel.
	// task.Marshal substitutes "<not serializable>" for payload values
	// that cannot be JSON-encoded instead of failing the publish.
	Publish(ctx context.Context, channel string, msg task.Message) error

	// Subscribe creates an isolated consumer group on channel so that this
	// subscriber observes every message published to it, independent of
	// any other subscriber. groupPrefix is combined with a random suffix
	// to guarantee isolation even across repeated subscriptions with the
	// same prefix. It returns a Consumer handle for Poll and a key for
	// CloseConsumer.
	Subscribe(ctx context.Context, channel, groupPrefix string) (Consumer, string, error)

	// Poll blocks up to timeout waiting for the next message on consumer.
	// It returns (nil, nil) on timeout, never an error, so that callers
	// can treat "no message yet" as a normal outcome rather than a fault.
	Poll(ctx context.Context, consumer Consumer, timeout time.Duration) (task.Message, error)

	// GetSiblingChannels returns the full set of channel names currently
	// known to the broker (realnet plus every sibling channel).
	GetSiblingChannels() []string

	// NewSiblingChannel idempotently creates a channel if it does not
	// already exist.
	NewSiblingChannel(ctx context.Context, channel string) error

	// PendingHint returns a best-effort, non-authoritative count of
	// messages waiting on channel, or -1 if the backend cannot report one
	// without side effects (e.g. Kafka/AMQP, unlike an in-process queue).
	PendingHint(channel string) int

	// CloseConsumer releases the resources held by one consumer.
	CloseConsumer(key string) error

	// Close releases all broker resources. Implementations that support
	// it may also delete channels/topics they created, gated by
	// configuration (see KafkaConfig.DeleteTopicsOnClose and
	// RabbitConfig.DeleteQueuesOnClose).
	Close() error
}

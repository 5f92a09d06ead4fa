package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/digsinet/digsinet/pkg/log"
	"github.com/digsinet/digsinet/pkg/task"
)

// memoryConsumer is the Consumer handle returned by MemoryBroker.Subscribe.
type memoryConsumer struct {
	key     string
	channel string
	ch      chan []byte
}

type memoryChannel struct {
	mu        sync.RWMutex
	consumers map[string]*memoryConsumer
}

// MemoryBroker is an in-process implementation of Broker: channels are Go
// channels, consumer groups are independent buffered queues fed by
// Publish, and nothing crosses a process boundary. It backs unit tests; the
// supervisor itself always builds a Kafka or AMQP broker from its
// configuration.
type MemoryBroker struct {
	mu       sync.RWMutex
	channels map[string]*memoryChannel
}

// NewMemoryBroker creates an empty in-process broker with the given
// channel set pre-created (mirroring how the Kafka/AMQP constructors
// provision their channel set up front).
func NewMemoryBroker(channels []string) *MemoryBroker {
	b := &MemoryBroker{channels: make(map[string]*memoryChannel)}
	for _, c := range channels {
		b.ensureChannel(c)
	}
	return b
}

func (b *MemoryBroker) ensureChannel(name string) *memoryChannel {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.channels[name]
	if !ok {
		ch = &memoryChannel{consumers: make(map[string]*memoryConsumer)}
		b.channels[name] = ch
	}
	return ch
}

func (b *MemoryBroker) Publish(ctx context.Context, channel string, msg task.Message) error {
	data, err := task.Marshal(msg)
	if err != nil {
		return fmt.Errorf("broker: marshal message for channel %s: %w", channel, err)
	}

	ch := b.ensureChannel(channel)
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	for _, c := range ch.consumers {
		select {
		case c.ch <- data:
		default:
			log.WithChannel(channel).Warn().Str("consumer", c.key).Msg("memory broker: consumer buffer full, dropping message")
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, channel, groupPrefix string) (Consumer, string, error) {
	ch := b.ensureChannel(channel)
	key := channel + "|" + groupPrefix + "_" + uuid.New().String()

	c := &memoryConsumer{key: key, channel: channel, ch: make(chan []byte, 256)}
	ch.mu.Lock()
	ch.consumers[key] = c
	ch.mu.Unlock()

	return c, key, nil
}

func (b *MemoryBroker) Poll(ctx context.Context, consumer Consumer, timeout time.Duration) (task.Message, error) {
	c, ok := consumer.(*memoryConsumer)
	if !ok {
		return nil, fmt.Errorf("broker: poll called with foreign consumer handle %T", consumer)
	}

	// A message already queued is returned even when timeout is zero; a
	// closed consumer reports no message.
	select {
	case data, open := <-c.ch:
		if !open {
			return nil, nil
		}
		return task.Unmarshal(data)
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data, open := <-c.ch:
		if !open {
			return nil, nil
		}
		return task.Unmarshal(data)
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *MemoryBroker) GetSiblingChannels() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.channels))
	for name := range b.channels {
		names = append(names, name)
	}
	return names
}

func (b *MemoryBroker) NewSiblingChannel(ctx context.Context, channel string) error {
	b.ensureChannel(channel)
	return nil
}

func (b *MemoryBroker) PendingHint(channel string) int {
	b.mu.RLock()
	ch, ok := b.channels[channel]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	total := 0
	for _, c := range ch.consumers {
		total += len(c.ch)
	}
	return total
}

func (b *MemoryBroker) CloseConsumer(key string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.channels {
		ch.mu.Lock()
		if c, ok := ch.consumers[key]; ok {
			close(c.ch)
			delete(ch.consumers, key)
		}
		ch.mu.Unlock()
	}
	return nil
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.channels {
		ch.mu.Lock()
		for key, c := range ch.consumers {
			close(c.ch)
			delete(ch.consumers, key)
		}
		ch.mu.Unlock()
	}
	b.channels = make(map[string]*memoryChannel)
	return nil
}

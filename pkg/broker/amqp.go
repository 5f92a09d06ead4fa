package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/digsinet/digsinet/pkg/log"
	"github.com/digsinet/digsinet/pkg/task"
)

const exchangeName = "digsinet"

// RabbitConfig configures the AMQP-backed broker. All channels share one
// durable direct exchange; a channel's name doubles as its routing key.
type RabbitConfig struct {
	URL                 string `yaml:"url"`
	DeleteQueuesOnClose bool   `yaml:"delete_queues_on_close"`
}

type rabbitConsumer struct {
	ch         *amqp.Channel
	queue      string
	deliveries <-chan amqp.Delivery
}

// RabbitBroker implements Broker over a single AMQP connection: every
// channel is a routing key on one durable direct exchange, and every
// Subscribe declares its own exclusive, auto-deleted queue bound to that
// key, giving each subscriber an independent copy of every message.
type RabbitBroker struct {
	cfg  RabbitConfig
	conn *amqp.Connection

	mu        sync.Mutex
	publishCh *amqp.Channel
	consumers map[string]*rabbitConsumer
	channels  map[string]bool
}

// NewRabbitBroker connects, declares the shared exchange, and provisions
// one queue-less routing key per channel (queues are created lazily by
// Subscribe; the exchange alone is enough for Publish to succeed).
func NewRabbitBroker(ctx context.Context, cfg RabbitConfig, channels []string) (*RabbitBroker, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("broker: rabbitmq config needs a connection URL")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("broker: dial rabbitmq: %w", err)
	}

	publishCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker: open publish channel: %w", err)
	}

	if err := publishCh.ExchangeDeclare(exchangeName, "direct", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker: declare exchange %s: %w", exchangeName, err)
	}

	b := &RabbitBroker{
		cfg:       cfg,
		conn:      conn,
		publishCh: publishCh,
		consumers: make(map[string]*rabbitConsumer),
		channels:  make(map[string]bool),
	}
	for _, c := range channels {
		b.channels[c] = true
	}
	return b, nil
}

func (b *RabbitBroker) Publish(ctx context.Context, channel string, msg task.Message) error {
	data, err := task.Marshal(msg)
	if err != nil {
		return fmt.Errorf("broker: marshal message for channel %s: %w", channel, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.publishCh.PublishWithContext(ctx, exchangeName, channel, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        data,
		Timestamp:   time.Now(),
	})
}

func (b *RabbitBroker) Subscribe(ctx context.Context, channel, groupPrefix string) (Consumer, string, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, "", fmt.Errorf("broker: open consumer channel: %w", err)
	}

	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return nil, "", fmt.Errorf("broker: declare queue for %s: %w", channel, err)
	}

	if err := ch.QueueBind(queue.Name, channel, exchangeName, false, nil); err != nil {
		ch.Close()
		return nil, "", fmt.Errorf("broker: bind queue for %s: %w", channel, err)
	}

	consumerTag := channel + "_" + groupPrefix + "_" + uuid.New().String()
	deliveries, err := ch.Consume(queue.Name, consumerTag, true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, "", fmt.Errorf("broker: consume from %s: %w", channel, err)
	}

	c := &rabbitConsumer{ch: ch, queue: queue.Name, deliveries: deliveries}

	b.mu.Lock()
	b.consumers[consumerTag] = c
	b.mu.Unlock()

	return c, consumerTag, nil
}

func (b *RabbitBroker) Poll(ctx context.Context, consumer Consumer, timeout time.Duration) (task.Message, error) {
	c, ok := consumer.(*rabbitConsumer)
	if !ok {
		return nil, fmt.Errorf("broker: poll called with foreign consumer handle %T", consumer)
	}

	// A delivery already buffered is returned even when timeout is zero.
	select {
	case d, open := <-c.deliveries:
		if !open {
			return nil, fmt.Errorf("broker: consumer channel for queue %s closed", c.queue)
		}
		return task.Unmarshal(d.Body)
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case d, open := <-c.deliveries:
		if !open {
			return nil, fmt.Errorf("broker: consumer channel for queue %s closed", c.queue)
		}
		return task.Unmarshal(d.Body)
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *RabbitBroker) GetSiblingChannels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.channels))
	for name := range b.channels {
		names = append(names, name)
	}
	return names
}

func (b *RabbitBroker) NewSiblingChannel(ctx context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels[channel] = true
	log.WithChannel(channel).Debug().Msg("rabbitmq routing key registered")
	return nil
}

// PendingHint always returns -1: message counts require an inspect call
// against a bound queue, which Subscribe only creates per-consumer.
func (b *RabbitBroker) PendingHint(channel string) int {
	return -1
}

func (b *RabbitBroker) CloseConsumer(key string) error {
	b.mu.Lock()
	c, ok := b.consumers[key]
	if ok {
		delete(b.consumers, key)
	}
	b.mu.Unlock()

	if !ok {
		return nil
	}
	return c.ch.Close()
}

func (b *RabbitBroker) Close() error {
	b.mu.Lock()
	consumers := make([]*rabbitConsumer, 0, len(b.consumers))
	for key, c := range b.consumers {
		consumers = append(consumers, c)
		delete(b.consumers, key)
	}
	b.mu.Unlock()

	var firstErr error
	for _, c := range consumers {
		if b.cfg.DeleteQueuesOnClose {
			if _, err := c.ch.QueueDelete(c.queue, false, false, false); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if err := c.ch.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := b.publishCh.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := b.conn.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	kafka "github.com/segmentio/kafka-go"

	"github.com/digsinet/digsinet/pkg/log"
	"github.com/digsinet/digsinet/pkg/task"
)

// KafkaConfig configures the Kafka-backed broker. One topic is created per
// channel (realnet plus one per sibling), each with NumPartitions
// partitions and ReplicationFactor replicas.
type KafkaConfig struct {
	Brokers             []string `yaml:"brokers"`
	NumPartitions       int      `yaml:"num_partitions"`
	ReplicationFactor   int      `yaml:"replication_factor"`
	OffsetReset         string   `yaml:"offset_reset"` // "earliest" or "latest"
	DeleteTopicsOnClose bool     `yaml:"delete_topics_on_close"`
}

func (c KafkaConfig) startOffset() int64 {
	if c.OffsetReset == "latest" {
		return kafka.LastOffset
	}
	return kafka.FirstOffset
}

// KafkaBroker is the production event broker backend, mapping channels onto
// Kafka topics and Subscribe's isolated consumer groups onto Kafka consumer
// groups of one member each.
type KafkaBroker struct {
	cfg KafkaConfig

	mu       sync.Mutex
	writers  map[string]*kafka.Writer
	readers  map[string]*kafka.Reader
	channels map[string]bool
}

// NewKafkaBroker dials the cluster, creates a topic for every channel that
// does not already exist, and returns a ready-to-use broker.
func NewKafkaBroker(ctx context.Context, cfg KafkaConfig, channels []string) (*KafkaBroker, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("broker: kafka config needs at least one broker address")
	}

	b := &KafkaBroker{
		cfg:      cfg,
		writers:  make(map[string]*kafka.Writer),
		readers:  make(map[string]*kafka.Reader),
		channels: make(map[string]bool),
	}

	for _, c := range channels {
		if err := b.NewSiblingChannel(ctx, c); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *KafkaBroker) NewSiblingChannel(ctx context.Context, channel string) error {
	b.mu.Lock()
	if b.channels[channel] {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	conn, err := kafka.DialContext(ctx, "tcp", b.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("broker: dial kafka for topic creation: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("broker: find kafka controller: %w", err)
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("broker: dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	numPartitions := b.cfg.NumPartitions
	if numPartitions <= 0 {
		numPartitions = 1
	}
	replicationFactor := b.cfg.ReplicationFactor
	if replicationFactor <= 0 {
		replicationFactor = 1
	}

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             channel,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	})
	if err != nil {
		return fmt.Errorf("broker: create topic %s: %w", channel, err)
	}

	b.mu.Lock()
	b.channels[channel] = true
	b.mu.Unlock()

	log.WithChannel(channel).Debug().Msg("kafka topic ready")
	return nil
}

func (b *KafkaBroker) writerFor(channel string) *kafka.Writer {
	b.mu.Lock()
	defer b.mu.Unlock()

	w, ok := b.writers[channel]
	if !ok {
		w = &kafka.Writer{
			Addr:     kafka.TCP(b.cfg.Brokers...),
			Topic:    channel,
			Balancer: &kafka.LeastBytes{},
		}
		b.writers[channel] = w
	}
	return w
}

func (b *KafkaBroker) Publish(ctx context.Context, channel string, msg task.Message) error {
	data, err := task.Marshal(msg)
	if err != nil {
		return fmt.Errorf("broker: marshal message for channel %s: %w", channel, err)
	}

	w := b.writerFor(channel)
	if err := w.WriteMessages(ctx, kafka.Message{Value: data}); err != nil {
		return fmt.Errorf("broker: publish to %s: %w", channel, err)
	}
	return nil
}

func (b *KafkaBroker) Subscribe(ctx context.Context, channel, groupPrefix string) (Consumer, string, error) {
	key := groupPrefix + "_" + uuid.New().String()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.cfg.Brokers,
		Topic:       channel,
		GroupID:     key,
		StartOffset: b.cfg.startOffset(),
		MinBytes:    1,
		MaxBytes:    10e6,
	})

	b.mu.Lock()
	b.readers[key] = reader
	b.mu.Unlock()

	return reader, key, nil
}

func (b *KafkaBroker) Poll(ctx context.Context, consumer Consumer, timeout time.Duration) (task.Message, error) {
	reader, ok := consumer.(*kafka.Reader)
	if !ok {
		return nil, fmt.Errorf("broker: poll called with foreign consumer handle %T", consumer)
	}

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m, err := reader.ReadMessage(pollCtx)
	if err != nil {
		if pollCtx.Err() != nil && ctx.Err() == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("broker: read from %s: %w", reader.Config().Topic, err)
	}

	return task.Unmarshal(m.Value)
}

func (b *KafkaBroker) GetSiblingChannels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.channels))
	for name := range b.channels {
		names = append(names, name)
	}
	return names
}

// PendingHint always returns -1: Kafka exposes consumer-group lag only
// through broker-side admin APIs, not the lightweight per-consumer Reader.
func (b *KafkaBroker) PendingHint(channel string) int {
	return -1
}

func (b *KafkaBroker) CloseConsumer(key string) error {
	b.mu.Lock()
	reader, ok := b.readers[key]
	if ok {
		delete(b.readers, key)
	}
	b.mu.Unlock()

	if !ok {
		return nil
	}
	return reader.Close()
}

func (b *KafkaBroker) Close() error {
	b.mu.Lock()
	readers := make([]*kafka.Reader, 0, len(b.readers))
	for key, r := range b.readers {
		readers = append(readers, r)
		delete(b.readers, key)
	}
	writers := make([]*kafka.Writer, 0, len(b.writers))
	for name, w := range b.writers {
		writers = append(writers, w)
		delete(b.writers, name)
	}
	channels := make([]string, 0, len(b.channels))
	for name := range b.channels {
		channels = append(channels, name)
	}
	b.mu.Unlock()

	var firstErr error
	for _, r := range readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, w := range writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if b.cfg.DeleteTopicsOnClose && len(channels) > 0 {
		if err := b.deleteTopics(channels); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (b *KafkaBroker) deleteTopics(channels []string) error {
	conn, err := kafka.Dial("tcp", b.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("broker: dial kafka for topic deletion: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("broker: find kafka controller: %w", err)
	}
	controllerConn, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("broker: dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	return controllerConn.DeleteTopics(channels...)
}

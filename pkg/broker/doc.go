// Package broker defines the event broker contract shared by every backend
// (Kafka, AMQP, and an in-process implementation used by tests): named
// channels, publish, subscribe with
// an isolated consumer group, bounded poll, and graceful shutdown. One
// channel exists per sibling plus "realnet"; every subscriber to a channel
// receives every message published to it, independent of other
// subscribers, because each Subscribe call creates its own consumer group.
package broker

package supervisor

import (
	"context"
	"fmt"

	"github.com/digsinet/digsinet/pkg/broker"
	"github.com/digsinet/digsinet/pkg/config"
)

// newBroker instantiates the configured event-broker backend. Exactly
// one of cfg.Kafka/cfg.Rabbit is set by the time Validate has run, so
// this never falls through to an error in a config Load has accepted.
func newBroker(ctx context.Context, cfg *config.Config, channels []string) (broker.Broker, error) {
	switch {
	case cfg.Kafka != nil:
		return broker.NewKafkaBroker(ctx, cfg.Kafka.ToBrokerConfig(), channels)
	case cfg.Rabbit != nil:
		return broker.NewRabbitBroker(ctx, cfg.Rabbit.ToBrokerConfig(), channels)
	default:
		return nil, fmt.Errorf("supervisor: no event broker configured")
	}
}

package apps

import (
	"context"

	"github.com/digsinet/digsinet/pkg/broker"
	"github.com/digsinet/digsinet/pkg/log"
	"github.com/digsinet/digsinet/pkg/task"
)

// Sec reacts to "run fuzzer" requests and reports the (simulated) result
// back to the continuous_integration channel, echoing the request's
// timestamp so the requester can measure round-trip latency.
type Sec struct{}

func (Sec) Run(ctx context.Context, topo Topo, br broker.Broker, t task.Message) error {
	if t == nil {
		return nil
	}

	req, ok := t.(task.RunFuzzer)
	if !ok {
		return nil
	}

	log.WithSibling(topo.Name).Info().Float64("age_seconds", nowSeconds()-req.Timestamp).Msg("sec: running fuzzer")
	result := task.NewFuzzerResult("sec", req.Timestamp, nowSeconds(), "")
	return br.Publish(ctx, "continuous_integration", result)
}

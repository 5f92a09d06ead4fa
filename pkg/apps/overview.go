package apps

import (
	"context"
	"sync"

	"github.com/digsinet/digsinet/pkg/broker"
	"github.com/digsinet/digsinet/pkg/log"
	"github.com/digsinet/digsinet/pkg/task"
)

const defaultOverviewEvery = 10

// Overview publishes a summary view of a topology's cached node state
// every Nth tick, to reduce load compared to running on every tick.
type Overview struct {
	mu    sync.Mutex
	cycle map[string]int
	every int
}

// NewOverview builds an Overview that runs every `every` ticks (default
// 10 when every <= 0).
func NewOverview(every int) *Overview {
	if every <= 0 {
		every = defaultOverviewEvery
	}
	return &Overview{cycle: make(map[string]int), every: every}
}

func (o *Overview) Run(ctx context.Context, topo Topo, br broker.Broker, t task.Message) error {
	if !topo.Running {
		return nil
	}
	if t != nil {
		return nil
	}

	o.mu.Lock()
	n := o.cycle[topo.Name]
	o.cycle[topo.Name] = n + 1
	o.mu.Unlock()

	if n%o.every != 0 {
		return nil
	}

	if _, ok := topo.Interfaces["gnmi"]; !ok {
		log.Logger.Warn().Str("topology", topo.Name).Msg("overview: no gNMI interface configured, skipping")
		return nil
	}

	summary := make(map[string]any, len(topo.Nodes))
	for node, paths := range topo.Nodes {
		summary[node] = paths
	}

	return br.Publish(ctx, "overview", task.NewOverview(topo.Name, summary))
}

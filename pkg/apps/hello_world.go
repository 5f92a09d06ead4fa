package apps

import (
	"context"
	"time"

	"github.com/digsinet/digsinet/pkg/broker"
	"github.com/digsinet/digsinet/pkg/log"
	"github.com/digsinet/digsinet/pkg/nodemgmt"
	"github.com/digsinet/digsinet/pkg/task"
)

const ethernet1Path = "openconfig:interfaces/interface[name=Ethernet1]"

// HelloWorld periodically stamps a timestamped description onto every
// node's Ethernet1 interface. It never reacts to tasks.
type HelloWorld struct{}

func (HelloWorld) Run(ctx context.Context, topo Topo, br broker.Broker, t task.Message) error {
	if !topo.Running {
		return nil
	}
	if t != nil {
		return nil
	}

	gnmi, ok := topo.Interfaces["gnmi"]
	if !ok {
		log.Logger.Warn().Str("topology", topo.Name).Msg("hello-world: no gNMI interface configured, skipping")
		return nil
	}

	for node := range topo.Nodes {
		message := "Hello World! update for node " + node + " in topology " + topo.Name + " at " + time.Now().Format("15:04:05")
		data := []nodemgmt.Update{{
			Path: ethernet1Path,
			Val: map[string]any{
				"config": map[string]any{
					"name":        "Ethernet1",
					"description": message,
				},
			},
		}}
		if err := gnmi.Set(ctx, topo.Nodes, node, nodemgmt.OpUpdate, data); err != nil {
			log.WithSibling(topo.Name).Error().Err(err).Str("node", node).Msg("hello-world: failed to set interface description")
		}
	}
	return nil
}

package apps

import (
	"context"
	"fmt"

	"github.com/digsinet/digsinet/pkg/broker"
	"github.com/digsinet/digsinet/pkg/nodemgmt"
	"github.com/digsinet/digsinet/pkg/task"
)

// Topo is the view of a topology an app runs against: its name, the
// node-management manager(s) keyed by interface name (only "gnmi" is
// populated today, but the map mirrors how a topology can declare more
// than one interface), the cached node state, and whether the topology's
// containers are actually running.
type Topo struct {
	Name       string
	Nodes      nodemgmt.Nodes
	Interfaces map[string]*nodemgmt.Manager
	Running    bool
}

// App is run once per controller tick, either periodically (task == nil)
// or in response to a dequeued task.
type App interface {
	Run(ctx context.Context, topo Topo, br broker.Broker, t task.Message) error
}

// Factory builds a fresh App instance, e.g. so overview's per-topology
// cycle counters start at zero for every controller that loads it.
type Factory func() App

var registry = map[string]Factory{
	"hello-world": func() App { return &HelloWorld{} },
	"overview":    func() App { return NewOverview(0) },
	"ci":          func() App { return &CI{} },
	"sec":         func() App { return &Sec{} },
}

// Register adds or overrides a named app factory.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// RegisterOverviewCadence overrides the "overview" factory to publish
// every N ticks instead of the default 10, e.g. from a controller
// reading apps.overview.every_n out of its configuration.
func RegisterOverviewCadence(every int) {
	Register("overview", func() App { return NewOverview(every) })
}

// New builds a fresh instance of the named app.
func New(name string) (App, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("apps: unknown app %q", name)
	}
	return factory(), nil
}

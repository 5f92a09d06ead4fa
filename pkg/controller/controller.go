package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/digsinet/digsinet/pkg/apps"
	"github.com/digsinet/digsinet/pkg/broker"
	"github.com/digsinet/digsinet/pkg/builder"
	"github.com/digsinet/digsinet/pkg/log"
	"github.com/digsinet/digsinet/pkg/metrics"
	"github.com/digsinet/digsinet/pkg/nodemgmt"
	"github.com/digsinet/digsinet/pkg/task"
	"github.com/digsinet/digsinet/pkg/topology"
	"github.com/rs/zerolog"
)

// Config builds one Controller.
type Config struct {
	// Name is the sibling name this controller drives; it doubles as the
	// broker channel the controller subscribes to for its inbox.
	Name string

	// AppNames are resolved, in order, via apps.New at construction time.
	AppNames []string

	// Interfaces are the already-constructed node-management managers
	// this controller refreshes every tick, keyed by interface name
	// (e.g. "gnmi").
	Interfaces map[string]*nodemgmt.Manager

	// Builder deploys this sibling's topology on a TopologyBuildRequest.
	// May be nil; a build request is then answered with a not-running
	// TopologyBuildResponse.
	Builder *builder.Builder

	// SyncInterval is the sleep between ticks when run via Run.
	SyncInterval time.Duration
}

// Controller owns one sibling's lifecycle: periodic node-state refresh,
// app execution, and inbox-driven reactions to gNMI notifications and
// topology build requests.
type Controller struct {
	name         string
	appNames     []string
	appInstances []apps.App
	interfaces   map[string]*nodemgmt.Manager
	builder      *builder.Builder
	syncInterval time.Duration

	nodes   nodemgmt.Nodes
	running bool
	topo    topology.Topology

	br          broker.Broker
	consumer    broker.Consumer
	consumerKey string
}

// New constructs a Controller and resolves its configured apps. It does
// not subscribe to the broker yet; call Start for that.
func New(cfg Config) (*Controller, error) {
	c := &Controller{
		name:         cfg.Name,
		appNames:     cfg.AppNames,
		interfaces:   cfg.Interfaces,
		builder:      cfg.Builder,
		syncInterval: cfg.SyncInterval,
		nodes:        nodemgmt.Nodes{},
	}
	for _, name := range cfg.AppNames {
		app, err := apps.New(name)
		if err != nil {
			return nil, fmt.Errorf("controller %s: %w", cfg.Name, err)
		}
		c.appInstances = append(c.appInstances, app)
	}
	return c, nil
}

// Start subscribes the controller to its own sibling channel so Tick can
// drain the inbox. It must be called once before the first Tick.
func (c *Controller) Start(ctx context.Context, br broker.Broker) error {
	consumer, key, err := br.Subscribe(ctx, c.name, "controller_"+c.name)
	if err != nil {
		return fmt.Errorf("controller %s: subscribe: %w", c.name, err)
	}
	c.br = br
	c.consumer = consumer
	c.consumerKey = key
	return nil
}

// Stop releases the controller's broker consumer.
func (c *Controller) Stop() error {
	if c.br == nil {
		return nil
	}
	return c.br.CloseConsumer(c.consumerKey)
}

// Run ticks the controller every SyncInterval until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// topoView builds the apps.Topo snapshot passed into every app.Run call.
func (c *Controller) topoView() apps.Topo {
	return apps.Topo{
		Name:       c.name,
		Nodes:      c.nodes,
		Interfaces: c.interfaces,
		Running:    c.running,
	}
}

// Tick runs exactly one cycle: refresh node state, run every configured
// app once with no task, then drain and react to whatever arrived on the
// inbox since the previous tick. The refresh-then-apps-then-drain
// ordering is fixed; within the drain, messages are processed strictly
// in delivery order.
func (c *Controller) Tick(ctx context.Context) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ControllerTickDuration, c.name)
	defer metrics.ControllerTicksTotal.WithLabelValues(c.name).Inc()

	logger := log.WithSibling(c.name)

	if c.running {
		for _, mgr := range c.interfaces {
			c.nodes = mgr.GetNodesUpdate(ctx, c.nodes, c.br, true)
		}
	}

	c.runApps(ctx, nil)

	c.drainInbox(ctx, logger)
}

func (c *Controller) runApps(ctx context.Context, t task.Message) {
	topo := c.topoView()
	for i, app := range c.appInstances {
		name := c.appNames[i]
		timer := metrics.NewTimer()
		if err := app.Run(ctx, topo, c.br, t); err != nil {
			log.WithSibling(c.name).Error().Err(err).Str("app", name).Msg("app run failed")
		}
		timer.ObserveDurationVec(metrics.AppRunDuration, name, c.name)
	}
}

// drainInbox polls the controller's consumer until empty, dispatching
// each message by kind. Unrecognised or app-addressed messages are
// forwarded to every configured app's Run.
func (c *Controller) drainInbox(ctx context.Context, logger zerolog.Logger) {
	if c.br == nil {
		return
	}
	for {
		msg, err := c.br.Poll(ctx, c.consumer, 0)
		if err != nil {
			logger.Error().Err(err).Msg("inbox poll failed")
			return
		}
		if msg == nil {
			return
		}
		c.handle(ctx, msg)
	}
}

func (c *Controller) handle(ctx context.Context, msg task.Message) {
	switch m := msg.(type) {
	case task.GNMINotification:
		c.handleNotification(ctx, m)
	case task.TopologyBuildRequest:
		if m.Sibling == c.name {
			c.handleBuildRequest(ctx, m)
		}
	case task.TopologyBuildResponse:
		if m.Sibling == c.name {
			c.running = m.Running
		}
	default:
		c.runApps(ctx, msg)
	}
}

// handleNotification mirrors a real-network gNMI change onto this
// sibling's own copy of the node, matching the source's controller
// replaying realnet diffs onto its digital twin.
func (c *Controller) handleNotification(ctx context.Context, n task.GNMINotification) {
	if n.Source != "realnet" {
		c.runApps(ctx, n)
		return
	}
	for _, mgr := range c.interfaces {
		data := nodemgmt.NotificationData{
			Notification: []nodemgmt.NotificationEntry{{
				Update: []nodemgmt.Update{{Path: n.Path, Val: n.Data}},
			}},
		}
		mgr.SetNodeUpdate(ctx, c.nodes, n.Node, n.Path, data)
	}
	c.runApps(ctx, n)
}

func (c *Controller) handleBuildRequest(ctx context.Context, req task.TopologyBuildRequest) {
	running := false
	if c.builder == nil {
		log.WithSibling(c.name).Warn().Msg("topology build requested but no builder configured")
	} else {
		var err error
		running, err = c.builder.BuildTopology(ctx, c.name, c.topo, true)
		if err != nil {
			log.WithSibling(c.name).Error().Err(err).Msg("topology build failed")
		}
	}
	c.running = running

	resp := task.NewTopologyBuildResponse(c.name, c.name, c.topo, nil, interfaceNames(c.interfaces), running)
	for _, channel := range c.br.GetSiblingChannels() {
		if err := c.br.Publish(ctx, channel, resp); err != nil {
			log.WithSibling(c.name).Error().Err(err).Str("channel", channel).Msg("publish build response failed")
		}
	}
}

// SetTopology records the sibling topology this controller builds when
// it receives a TopologyBuildRequest for itself, and seeds the node
// cache so GetNodesUpdate has something to poll on the first tick.
func (c *Controller) SetTopology(topo topology.Topology) {
	c.topo = topo
	c.SeedNodes(topo.NodeNames())
}

// SeedNodes ensures every name in names has an entry in the node cache,
// without disturbing any already-cached values.
func (c *Controller) SeedNodes(names map[string]bool) {
	for name := range names {
		if _, ok := c.nodes[name]; !ok {
			c.nodes[name] = map[string]any{}
		}
	}
}

func interfaceNames(m map[string]*nodemgmt.Manager) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return names
}

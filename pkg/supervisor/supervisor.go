package supervisor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/digsinet/digsinet/pkg/apps"
	"github.com/digsinet/digsinet/pkg/broker"
	"github.com/digsinet/digsinet/pkg/builder"
	"github.com/digsinet/digsinet/pkg/config"
	"github.com/digsinet/digsinet/pkg/controller"
	"github.com/digsinet/digsinet/pkg/hostlock"
	"github.com/digsinet/digsinet/pkg/log"
	"github.com/digsinet/digsinet/pkg/metrics"
	"github.com/digsinet/digsinet/pkg/nodemgmt"
	"github.com/digsinet/digsinet/pkg/task"
	"github.com/digsinet/digsinet/pkg/topology"
)

// Deps carries the collaborators Supervisor cannot construct itself: a
// management-protocol client (the concrete gNMI wire implementation is
// an external, contract-only concern the caller supplies, per pygnmi's
// role in the source) and the shared per-host write-lock table.
type Deps struct {
	Client nodemgmt.Client
	Locks  *hostlock.Table
}

// Supervisor runs DigSiNet's boot sequence and, once started, the
// real-network tick loop.
type Supervisor struct {
	cfg  *config.Config
	deps Deps

	br           broker.Broker
	realTopo     topology.Topology
	realNodes    nodemgmt.Nodes
	realIfaces   map[string]*nodemgmt.Manager
	realApps     []apps.App
	realAppNames []string

	controllers    map[string]*controller.Controller
	controllerWG   sync.WaitGroup
	siblingRunning map[string]bool
	builder        *builder.Builder

	consumer    broker.Consumer
	consumerKey string
}

// New constructs a Supervisor for a loaded, validated configuration.
func New(cfg *config.Config, deps Deps) *Supervisor {
	if deps.Locks == nil {
		deps.Locks = &hostlock.Table{}
	}
	return &Supervisor{
		cfg:            cfg,
		deps:           deps,
		realNodes:      nodemgmt.Nodes{},
		controllers:    map[string]*controller.Controller{},
		siblingRunning: map[string]bool{},
	}
}

// Cleanup overwrites every sibling topology file this configuration could
// have produced with an empty topology, regardless of whether this process
// created them. It does not invoke the container runtime, so running
// containers are not torn down. It is the only action that runs without a
// broker.
func (s *Supervisor) Cleanup(ctx context.Context) error {
	b := builder.New(builder.Config{TopologyName: s.cfg.TopologyName, ReconfigureFlag: reconfigureFlag(s.cfg)})
	for sibling := range s.cfg.Siblings {
		if _, err := b.BuildTopology(ctx, sibling, topology.Topology{Name: s.cfg.TopologyName}, false); err != nil {
			log.Logger.Error().Err(err).Str("sibling", sibling).Msg("cleanup: failed to clear sibling topology file")
		}
	}
	return nil
}

// Stop logs the stop request and returns. It does not tear down the
// real-net topology or any sibling topology; that is left to the external
// container runtime.
func (s *Supervisor) Stop(ctx context.Context) error {
	log.Logger.Info().Msg("stopping digsinet: autostarted topologies are left for the external container runtime's own teardown")
	return nil
}

// Start runs the full boot sequence: load the real topology, stand up
// the broker, deploy the real network, create every sibling and wait
// for its first build response, then enter the real-net tick loop until
// ctx is cancelled.
func (s *Supervisor) Start(ctx context.Context) error {
	realTopo, err := topology.Load(s.cfg.Topology.File)
	if err != nil {
		return fmt.Errorf("supervisor: load real topology: %w", err)
	}
	s.realTopo = realTopo

	channels := append([]string{broker.RealnetChannel}, s.cfg.SiblingNames()...)
	br, err := newBroker(ctx, s.cfg, channels)
	if err != nil {
		return fmt.Errorf("supervisor: start broker: %w", err)
	}
	s.br = br

	s.realIfaces, err = buildInterfaces("realnet", s.cfg.TopologyName, s.cfg.Realnet.Interfaces, s.cfg.Interfaces, s.deps)
	if err != nil {
		return err
	}
	for _, name := range s.cfg.Realnet.Apps {
		app, err := apps.New(name)
		if err != nil {
			return fmt.Errorf("supervisor: realnet app: %w", err)
		}
		s.realApps = append(s.realApps, app)
		s.realAppNames = append(s.realAppNames, name)
	}
	seedNodes(s.realNodes, realTopo.NodeNames())

	s.builder = builder.New(builder.Config{TopologyName: s.cfg.TopologyName, ReconfigureFlag: reconfigureFlag(s.cfg)})
	if _, err := s.builder.BuildTopology(ctx, "realnet", realTopo, true); err != nil {
		return fmt.Errorf("supervisor: deploy real network: %w", err)
	}

	consumer, key, err := br.Subscribe(ctx, broker.RealnetChannel, "supervisor")
	if err != nil {
		return fmt.Errorf("supervisor: subscribe realnet: %w", err)
	}
	s.consumer, s.consumerKey = consumer, key

	for name := range s.cfg.Siblings {
		if err := s.createSibling(ctx, name); err != nil {
			return err
		}
	}

	return s.runTickLoop(ctx)
}

func (s *Supervisor) createSibling(ctx context.Context, name string) error {
	sib := s.cfg.Siblings[name]
	ctrl, err := s.newController(name, sib)
	if err != nil {
		return err
	}
	if err := ctrl.Start(ctx, s.br); err != nil {
		return err
	}
	s.controllers[name] = ctrl

	adj := sib.TopologyAdjustments.ToTopologyAdjustment()
	sibTopo, err := topology.Apply(s.realTopo, adj)
	if err != nil {
		return fmt.Errorf("supervisor: derive topology for sibling %s: %w", name, err)
	}
	ctrl.SetTopology(sibTopo)

	s.controllerWG.Add(1)
	go func() {
		defer s.controllerWG.Done()
		if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Logger.Error().Err(err).Str("sibling", name).Msg("controller stopped")
		}
	}()

	if err := s.br.Publish(ctx, name, task.NewTopologyBuildRequest("supervisor", name)); err != nil {
		return fmt.Errorf("supervisor: request build for sibling %s: %w", name, err)
	}

	return s.waitForBuildResponse(ctx, name)
}

// waitForBuildResponse polls the realnet channel until it sees a
// topology build response for sibling, or sibling_timeout elapses.
func (s *Supervisor) waitForBuildResponse(ctx context.Context, sibling string) error {
	deadline := time.Now().Add(time.Duration(s.cfg.SiblingTimeout) * time.Millisecond)
	for time.Now().Before(deadline) {
		remaining := time.Until(deadline)
		pollTimeout := 200 * time.Millisecond
		if remaining < pollTimeout {
			pollTimeout = remaining
		}
		msg, err := s.br.Poll(ctx, s.consumer, pollTimeout)
		if err != nil {
			return fmt.Errorf("supervisor: waiting for sibling %s: %w", sibling, err)
		}
		if msg == nil {
			continue
		}
		s.dispatchRealnetTask(ctx, msg)
		if resp, ok := msg.(task.TopologyBuildResponse); ok && resp.Sibling == sibling {
			return nil
		}
	}
	return fmt.Errorf("supervisor: timed out waiting for sibling %s to build its topology", sibling)
}

// runTickLoop drives the real network exactly as a controller drives a
// sibling: refresh node state, then drain the realnet channel, fanning
// any message carrying a "sibling" field out to the real-net apps.
func (s *Supervisor) runTickLoop(ctx context.Context) error {
	interval := time.Duration(s.cfg.SyncInterval) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return s.shutdown()
		case <-ticker.C:
			s.realnetTick(ctx)
			tick++
			if tick%10 == 0 {
				s.logQueueStats()
			}
		}
	}
}

func (s *Supervisor) realnetTick(ctx context.Context) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ControllerTickDuration, "realnet")

	for _, mgr := range s.realIfaces {
		s.realNodes = mgr.GetNodesUpdate(ctx, s.realNodes, s.br, true)
	}

	for {
		msg, err := s.br.Poll(ctx, s.consumer, 0)
		if err != nil {
			log.Logger.Error().Err(err).Msg("supervisor: realnet poll failed")
			return
		}
		if msg == nil {
			return
		}
		s.dispatchRealnetTask(ctx, msg)
	}
}

func (s *Supervisor) dispatchRealnetTask(ctx context.Context, msg task.Message) {
	if resp, ok := msg.(task.TopologyBuildResponse); ok {
		s.siblingRunning[resp.Sibling] = resp.Running
		log.Logger.Info().Str("sibling", resp.Sibling).Bool("running", resp.Running).Msg("sibling state updated")
	}

	sibling := siblingOf(msg)
	if sibling == "" {
		return
	}
	topo := apps.Topo{Name: sibling, Nodes: s.realNodes, Interfaces: s.realIfaces, Running: true}
	for i, app := range s.realApps {
		name := s.realAppNames[i]
		timer := metrics.NewTimer()
		if err := app.Run(ctx, topo, s.br, msg); err != nil {
			log.Logger.Error().Err(err).Str("app", name).Msg("realnet app run failed")
		}
		timer.ObserveDurationVec(metrics.AppRunDuration, name, "realnet")
	}
}

// siblingOf extracts the sibling field from a task message, if it has
// one, so realnetTick knows which tasks to fan out to real-net apps.
func siblingOf(msg task.Message) string {
	if m, ok := msg.(task.TopologyBuildRequest); ok {
		return m.Sibling
	}
	if m, ok := msg.(task.TopologyBuildResponse); ok {
		return m.Sibling
	}
	return ""
}

func (s *Supervisor) logQueueStats() {
	event := log.Logger.Info()
	for _, channel := range s.br.GetSiblingChannels() {
		event = event.Int(channel, s.br.PendingHint(channel))
	}
	event.Msg("queue depth")
}

func (s *Supervisor) shutdown() error {
	log.Logger.Info().Msg("supervisor: shutting down")
	s.controllerWG.Wait()
	for name, ctrl := range s.controllers {
		if err := ctrl.Stop(); err != nil {
			log.Logger.Error().Err(err).Str("sibling", name).Msg("error stopping controller")
		}
	}
	if s.br != nil {
		_ = s.br.CloseConsumer(s.consumerKey)
		return s.br.Close()
	}
	return nil
}

func (s *Supervisor) newController(name string, sib config.SiblingSettings) (*controller.Controller, error) {
	ctrlName := sib.Controller
	ctrlCfg, ok := s.cfg.Controllers[ctrlName]
	if !ok {
		return nil, fmt.Errorf("supervisor: sibling %s references unknown controller %s", name, ctrlName)
	}

	ifaces, err := buildInterfaces(name, s.cfg.TopologyName, sib.Interfaces, s.cfg.Interfaces, s.deps)
	if err != nil {
		return nil, err
	}

	if every := appEveryN(s.cfg, ctrlCfg.Apps); every > 0 {
		apps.RegisterOverviewCadence(every)
	}

	var bld *builder.Builder
	if _, ok := s.cfg.Builders[ctrlCfg.Builder]; ok {
		bld = builder.New(builder.Config{TopologyName: s.cfg.TopologyName, ReconfigureFlag: reconfigureFlag(s.cfg)})
	}

	return controller.New(controller.Config{
		Name:         name,
		AppNames:     ctrlCfg.Apps,
		Interfaces:   ifaces,
		Builder:      bld,
		SyncInterval: time.Duration(s.cfg.SyncInterval) * time.Millisecond,
	})
}

func appEveryN(cfg *config.Config, appNames []string) int {
	for _, name := range appNames {
		if name == "overview" {
			return cfg.Apps[name].EveryN
		}
	}
	return 0
}

func buildInterfaces(target, topologyName string, settings map[string]config.InterfaceSettings, creds map[string]config.InterfaceCredentials, deps Deps) (map[string]*nodemgmt.Manager, error) {
	out := make(map[string]*nodemgmt.Manager, len(settings))
	for name, s := range settings {
		if _, ok := creds[name]; !ok {
			return nil, fmt.Errorf("supervisor: interface %s has no credentials configured", name)
		}
		var selector *regexp.Regexp
		if s.Nodes != "" && s.Nodes != ".*" {
			re, err := regexp.Compile(s.Nodes)
			if err != nil {
				return nil, fmt.Errorf("supervisor: interface %s node selector: %w", name, err)
			}
			selector = re
		}
		out[name] = nodemgmt.NewManager(target, "clab", topologyName, selector, s.Paths, deps.Client, deps.Locks)
	}
	return out, nil
}

func reconfigureFlag(cfg *config.Config) string {
	if cfg.CLI.Reconfigure {
		return "--reconfigure"
	}
	return ""
}

// seedNodes ensures every name in names has an entry in nodes, without
// disturbing any already-cached values, the same seeding Controller
// does for a sibling's own node cache.
func seedNodes(nodes nodemgmt.Nodes, names map[string]bool) {
	for name := range names {
		if _, ok := nodes[name]; !ok {
			nodes[name] = map[string]any{}
		}
	}
}

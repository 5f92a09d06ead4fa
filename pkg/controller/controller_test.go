package controller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digsinet/digsinet/pkg/broker"
	"github.com/digsinet/digsinet/pkg/hostlock"
	"github.com/digsinet/digsinet/pkg/nodemgmt"
	"github.com/digsinet/digsinet/pkg/task"
	"github.com/digsinet/digsinet/pkg/topology"
	"github.com/rs/zerolog"
)

type fakeClient struct {
	values map[string]any
}

func (f *fakeClient) Get(ctx context.Context, host, path string) (any, error) {
	return f.values[host+"|"+path], nil
}

func (f *fakeClient) Replace(ctx context.Context, host, path string, value any) error {
	f.values[host+"|"+path] = value
	return nil
}

func (f *fakeClient) SetRaw(ctx context.Context, host string, op nodemgmt.SetOp, data any) error {
	return nil
}

func sampleTopology(t *testing.T) topology.Topology {
	t.Helper()
	b := topology.NewBuilder("ci")
	b.AddNode("r1", "ceos", "ceos:4.30")
	return b.Build()
}

func TestTickRunsAppsAndSeedsOnlyConfiguredPaths(t *testing.T) {
	ctx := context.Background()
	br := broker.NewMemoryBroker([]string{"realnet", "ci"})
	defer br.Close()

	client := &fakeClient{values: map[string]any{"clab-ci_ci-r1|openconfig:interfaces": map[string]any{"mtu": 1500.0}}}
	mgr := nodemgmt.NewManager("ci", "clab", "ci", nil, []string{"openconfig:interfaces"}, client, &hostlock.Table{})

	c, err := New(Config{
		Name:         "ci",
		AppNames:     []string{"overview"},
		Interfaces:   map[string]*nodemgmt.Manager{"gnmi": mgr},
		SyncInterval: time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx, br))
	defer c.Stop()

	c.SetTopology(sampleTopology(t))
	c.running = true
	c.Tick(ctx)

	require.Contains(t, c.nodes, "r1")
	assert.Equal(t, map[string]any{"mtu": 1500.0}, c.nodes["r1"]["openconfig:interfaces"])
}

func TestHandleBuildRequestPublishesResponseToEveryChannel(t *testing.T) {
	ctx := context.Background()
	br := broker.NewMemoryBroker([]string{"realnet", "ci"})
	defer br.Close()

	realnetCons, _, err := br.Subscribe(ctx, "realnet", "watcher")
	require.NoError(t, err)

	c, err := New(Config{Name: "ci", Builder: nil})
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx, br))
	defer c.Stop()
	c.SetTopology(sampleTopology(t))

	require.NoError(t, br.Publish(ctx, "ci", task.NewTopologyBuildRequest("supervisor", "ci")))

	c.drainInbox(ctx, zerolog.Nop())

	msg, err := br.Poll(ctx, realnetCons, time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
	_, ok := msg.(task.TopologyBuildResponse)
	assert.True(t, ok, "expected a TopologyBuildResponse without a builder configured to still report not-running")
}

func TestHandleNotificationMirrorsRealnetChangeOntoSibling(t *testing.T) {
	ctx := context.Background()
	br := broker.NewMemoryBroker([]string{"realnet", "ci"})
	defer br.Close()

	client := &fakeClient{values: map[string]any{}}
	mgr := nodemgmt.NewManager("ci", "clab", "ci", nil, []string{"openconfig:interfaces"}, client, &hostlock.Table{})

	c, err := New(Config{
		Name:       "ci",
		Interfaces: map[string]*nodemgmt.Manager{"gnmi": mgr},
	})
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx, br))
	defer c.Stop()
	c.SetTopology(sampleTopology(t))

	notif := task.NewGNMINotification("realnet", "r1", "openconfig:interfaces", map[string]any{"mtu": 9000.0}, nil)
	require.NoError(t, br.Publish(ctx, "ci", notif))

	c.drainInbox(ctx, zerolog.Nop())

	assert.Equal(t, map[string]any{"mtu": 9000.0}, client.values["clab-ci_ci-r1|openconfig:interfaces"])
}

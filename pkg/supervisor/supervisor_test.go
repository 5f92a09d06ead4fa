package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digsinet/digsinet/pkg/apps"
	"github.com/digsinet/digsinet/pkg/broker"
	"github.com/digsinet/digsinet/pkg/config"
	"github.com/digsinet/digsinet/pkg/hostlock"
	"github.com/digsinet/digsinet/pkg/nodemgmt"
	"github.com/digsinet/digsinet/pkg/task"
	"github.com/digsinet/digsinet/pkg/topology"
)

type fakeClient struct{}

func (fakeClient) Get(ctx context.Context, host, path string) (any, error) { return nil, nil }
func (fakeClient) Replace(ctx context.Context, host, path string, value any) error { return nil }
func (fakeClient) SetRaw(ctx context.Context, host string, op nodemgmt.SetOp, data any) error {
	return nil
}

func baseConfig() *config.Config {
	return &config.Config{
		TopologyName:   "lab",
		SyncInterval:   50,
		SiblingTimeout: 200,
		Siblings: map[string]config.SiblingSettings{
			"ci": {Controller: "default", Autostart: false},
		},
		Controllers: map[string]config.ControllerSettings{
			"default": {Builder: "clab", Interfaces: nil, Apps: []string{"ci"}},
		},
		Builders: map[string]config.BuilderSettings{"clab": {Module: "clab_builder"}},
		Apps:     map[string]config.AppSettings{"ci": {Module: "ci"}},
		Kafka:    &config.KafkaSettings{Host: "localhost", Port: 9092},
	}
}

func newTestSupervisor(t *testing.T) (*Supervisor, broker.Broker, context.Context) {
	t.Helper()
	cfg := baseConfig()
	s := New(cfg, Deps{Client: fakeClient{}, Locks: &hostlock.Table{}})
	br := broker.NewMemoryBroker([]string{broker.RealnetChannel, "ci"})
	t.Cleanup(func() { br.Close() })
	s.br = br
	s.realTopo = topology.Topology{Name: "lab"}
	s.realNodes = nodemgmt.Nodes{}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		s.controllerWG.Wait()
	})
	consumer, key, err := br.Subscribe(ctx, broker.RealnetChannel, "supervisor")
	require.NoError(t, err)
	s.consumer, s.consumerKey = consumer, key

	return s, br, ctx
}

func TestCreateSiblingTimesOutWithoutBuildResponse(t *testing.T) {
	s, _, ctx := newTestSupervisor(t)
	s.cfg.SiblingTimeout = 50

	err := s.createSibling(ctx, "ci")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestCreateSiblingSucceedsWhenControllerAcksBuild(t *testing.T) {
	s, br, ctx := newTestSupervisor(t)

	done := make(chan error, 1)
	go func() { done <- s.createSibling(ctx, "ci") }()

	ciConsumer, _, err := br.Subscribe(ctx, "ci", "test-watcher")
	require.NoError(t, err)
	msg, err := br.Poll(ctx, ciConsumer, time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
	req, ok := msg.(task.TopologyBuildRequest)
	require.True(t, ok)
	assert.Equal(t, "ci", req.Sibling)

	resp := task.NewTopologyBuildResponse("ci", "ci", topology.Topology{Name: "lab_sib_ci"}, nil, nil, true)
	require.NoError(t, br.Publish(ctx, broker.RealnetChannel, resp))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("createSibling did not return after build response")
	}

	assert.True(t, s.siblingRunning["ci"])
}

func TestDispatchRealnetTaskRunsAppsForMessagesWithSiblingField(t *testing.T) {
	s, _, _ := newTestSupervisor(t)
	app, err := apps.New("ci")
	require.NoError(t, err)
	s.realApps = []apps.App{app}
	s.realAppNames = []string{"ci"}
	s.realIfaces = map[string]*nodemgmt.Manager{}

	req := task.NewTopologyBuildRequest("supervisor", "ci")
	s.dispatchRealnetTask(context.Background(), req)
}

func TestSeedNodesDoesNotOverwriteExistingEntries(t *testing.T) {
	nodes := nodemgmt.Nodes{"r1": {"path": "cached"}}
	seedNodes(nodes, map[string]bool{"r1": true, "r2": true})
	assert.Equal(t, map[string]any{"path": "cached"}, nodes["r1"])
	assert.Equal(t, map[string]any{}, nodes["r2"])
}

func TestReconfigureFlagReflectsCLI(t *testing.T) {
	cfg := baseConfig()
	assert.Equal(t, "", reconfigureFlag(cfg))
	cfg.CLI.Reconfigure = true
	assert.Equal(t, "--reconfigure", reconfigureFlag(cfg))
}

package nodemgmt

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digsinet/digsinet/pkg/broker"
	"github.com/digsinet/digsinet/pkg/hostlock"
)

type fakeClient struct {
	values map[string]any // host|path -> value
}

func (f *fakeClient) Get(ctx context.Context, host, path string) (any, error) {
	return f.values[host+"|"+path], nil
}

func (f *fakeClient) Replace(ctx context.Context, host, path string, value any) error {
	f.values[host+"|"+path] = value
	return nil
}

func (f *fakeClient) SetRaw(ctx context.Context, host string, op SetOp, data any) error {
	return nil
}

func TestHostNameDerivation(t *testing.T) {
	assert.Equal(t, "clab-net-r1", HostName("clab", "net", "realnet", "r1"))
	assert.Equal(t, "clab-net_sib1-r1", HostName("clab", "net", "sib1", "r1"))
}

func TestGetNodesUpdatePublishesOnlyWhenDiffChanges(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{values: map[string]any{"clab-net-r1|interfaces": map[string]any{"mtu": 1500.0}}}
	mgr := NewManager("realnet", "clab", "net", nil, []string{"interfaces"}, client, &hostlock.Table{})
	br := broker.NewMemoryBroker([]string{"sib1"})

	nodes := Nodes{"r1": {}}
	mgr.GetNodesUpdate(ctx, nodes, br, true)

	cons, _, err := br.Subscribe(ctx, "sib1", "watcher")
	require.NoError(t, err)

	client.values["clab-net-r1|interfaces"] = map[string]any{"mtu": 1500.0}
	mgr.GetNodesUpdate(ctx, nodes, br, true)
	msg, err := br.Poll(ctx, cons, shortTimeout)
	require.NoError(t, err)
	assert.Nil(t, msg, "no change should not publish a notification")

	client.values["clab-net-r1|interfaces"] = map[string]any{"mtu": 9000.0}
	mgr.GetNodesUpdate(ctx, nodes, br, true)
	msg, err = br.Poll(ctx, cons, shortTimeout)
	require.NoError(t, err)
	require.NotNil(t, msg, "a real change should publish a notification")
}

func TestGetNodesUpdateIgnoresTimestampOnlyChange(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{values: map[string]any{
		"clab-net-r1|interfaces": map[string]any{"mtu": 1500.0, "timestamp": 1.0},
	}}
	mgr := NewManager("realnet", "clab", "net", nil, []string{"interfaces"}, client, &hostlock.Table{})
	br := broker.NewMemoryBroker([]string{"sib1"})
	nodes := Nodes{"r1": {}}

	mgr.GetNodesUpdate(ctx, nodes, br, true)
	cons, _, err := br.Subscribe(ctx, "sib1", "watcher")
	require.NoError(t, err)

	client.values["clab-net-r1|interfaces"] = map[string]any{"mtu": 1500.0, "timestamp": 2.0}
	mgr.GetNodesUpdate(ctx, nodes, br, true)

	msg, err := br.Poll(ctx, cons, shortTimeout)
	require.NoError(t, err)
	assert.Nil(t, msg, "a timestamp-only change must not surface in the diff")
}

func TestGetNodesUpdateSuppressesHelloWorldMarker(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{values: map[string]any{"clab-net-r1|interfaces": "baseline"}}
	mgr := NewManager("realnet", "clab", "net", nil, []string{"interfaces"}, client, &hostlock.Table{})
	br := broker.NewMemoryBroker([]string{"sib1"})
	nodes := Nodes{"r1": {}}

	mgr.GetNodesUpdate(ctx, nodes, br, true)
	cons, _, err := br.Subscribe(ctx, "sib1", "watcher")
	require.NoError(t, err)

	client.values["clab-net-r1|interfaces"] = "Hello World! update for node r1"
	mgr.GetNodesUpdate(ctx, nodes, br, true)

	msg, err := br.Poll(ctx, cons, shortTimeout)
	require.NoError(t, err)
	assert.Nil(t, msg, "the hello-world app's own writes must be treated as no-op")
}

func TestSetRejectsUnknownOp(t *testing.T) {
	client := &fakeClient{values: map[string]any{}}
	mgr := NewManager("realnet", "clab", "net", nil, nil, client, &hostlock.Table{})
	nodes := Nodes{"r1": {}}

	err := mgr.Set(context.Background(), nodes, "r1", SetOp("bogus"), nil)
	require.Error(t, err)
	var unsupported *ErrUnsupportedOp
	require.ErrorAs(t, err, &unsupported)
}

func TestNodeSelectorExcludesNonMatchingNodes(t *testing.T) {
	client := &fakeClient{values: map[string]any{}}
	selector := regexp.MustCompile(`^r[0-9]+$`)
	mgr := NewManager("realnet", "clab", "net", selector, []string{"interfaces"}, client, &hostlock.Table{})
	nodes := Nodes{"host-x": {}}

	assert.Equal(t, "", mgr.hostFor(nodes, "host-x"))
}

const shortTimeout = 50 * time.Millisecond

package apps

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
)

type noopClient struct{}

func (noopClient) Get(ctx context.Context, host, path string) (any, error) { return nil, nil }
func (noopClient) Replace(ctx context.Context, host, path string, value any) error { return nil }
func (noopClient) SetRaw(ctx context.Context, host string, op nodemgmt.SetOp, data any) error {
	return nil
}

func TestCIAndSecRoundTrip(t *testing.T) {
	ctx := context.Background()
	br := broker.NewMemoryBroker([]string{"security", "continuous_integration"})
	defer br.Close()

	secInbox, _, err := br.Subscribe(ctx, "security", "sec")
	require.NoError(t, err)
	ciInbox, _, err := br.Subscribe(ctx, "continuous_integration", "ci")
	require.NoError(t, err)

	ci := CI{}
	notif := task.NewGNMINotification("realnet", "r1", "interfaces", nil, map[string]any{"values_changed": "fuzz_me"})
	require.NoError(t, ci.Run(ctx, Topo{Name: "sib1", Running: true}, br, notif))

	msg, err := br.Poll(ctx, secInbox, time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
	runFuzzer, ok := msg.(task.RunFuzzer)
	require.True(t, ok)

	sec := Sec{}
	require.NoError(t, sec.Run(ctx, Topo{Name: "sib1", Running: true}, br, runFuzzer))

	result, err := br.Poll(ctx, ciInbox, time.Second)
	require.NoError(t, err)
	require.NotNil(t, result)
	fuzzerResult, ok := result.(task.FuzzerResult)
	require.True(t, ok)
	assert.Equal(t, runFuzzer.Timestamp, fuzzerResult.RequestTimestamp)

	require.NoError(t, ci.Run(ctx, Topo{Name: "sib1", Running: true}, br, fuzzerResult))
}

func TestCIIgnoresNotificationWithoutTrigger(t *testing.T) {
	ctx := context.Background()
	br := broker.NewMemoryBroker([]string{"security"})
	defer br.Close()
	cons, _, err := br.Subscribe(ctx, "security", "sec")
	require.NoError(t, err)

	ci := CI{}
	notif := task.NewGNMINotification("realnet", "r1", "interfaces", nil, map[string]any{"values_changed": "something_else"})
	require.NoError(t, ci.Run(ctx, Topo{Name: "sib1"}, br, notif))

	msg, err := br.Poll(ctx, cons, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestOverviewRunsOnceEveryNTicks(t *testing.T) {
	ctx := context.Background()
	br := broker.NewMemoryBroker([]string{"overview"})
	defer br.Close()
	cons, _, err := br.Subscribe(ctx, "overview", "watcher")
	require.NoError(t, err)

	mgr := nodemgmt.NewManager("realnet", "sib1", "lab", nil, nil, noopClient{}, &hostlock.Table{})
	topo := Topo{
		Name:       "sib1",
		Running:    true,
		Nodes:      nodemgmt.Nodes{"r1": map[string]any{}},
		Interfaces: map[string]*nodemgmt.Manager{"gnmi": mgr},
	}

	o := NewOverview(3)

	published := 0
	for i := 0; i < 9; i++ {
		err := o.Run(ctx, topo, br, nil)
		require.NoError(t, err)
	}
	for {
		msg, err := br.Poll(ctx, cons, 10*time.Millisecond)
		require.NoError(t, err)
		if msg == nil {
			break
		}
		published++
	}
	assert.Equal(t, 3, published, "overview must publish on ticks 0, 3 and 6 out of 9")
}

func TestOverviewSkipsWithoutGNMIInterface(t *testing.T) {
	ctx := context.Background()
	br := broker.NewMemoryBroker([]string{"overview"})
	defer br.Close()
	cons, _, err := br.Subscribe(ctx, "overview", "watcher")
	require.NoError(t, err)

	o := NewOverview(3)

	for i := 0; i < 9; i++ {
		err := o.Run(ctx, Topo{Name: "sib1", Running: true}, br, nil)
		require.NoError(t, err)
	}

	msg, err := br.Poll(ctx, cons, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, msg, "without a gnmi interface configured overview must not publish")
}

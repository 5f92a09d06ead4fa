package topology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderAddLinkRequiresKnownNodes(t *testing.T) {
	b := NewBuilder("net")
	b.AddNode("a", "linux", "")

	err := b.AddLink("a", "e1", "b", "e1")
	require.Error(t, err)
	var unknown *ErrUnknownEndpoint
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "b", unknown.Node)
}

func TestBuilderAddLinkAddsBothEndpointsToNodeSet(t *testing.T) {
	b := NewBuilder("net")
	b.AddNode("a", "linux", "")
	b.AddNode("b", "linux", "")

	require.NoError(t, b.AddLink("a", "e1", "b", "e1"))
	topo := b.Build()

	names := topo.NodeNames()
	assert.True(t, names["a"])
	assert.True(t, names["b"])
}

func TestBuilderClear(t *testing.T) {
	b := NewBuilder("net")
	b.AddNode("a", "linux", "")
	b.Clear()

	topo := b.Build()
	assert.Empty(t, topo.Nodes)
	assert.Empty(t, topo.Links)
}

func baseTopology(t *testing.T) Topology {
	t.Helper()
	b := NewBuilder("net")
	b.AddNode("a", "linux", "")
	b.AddNode("b", "linux", "")
	b.AddNode("c", "linux", "")
	require.NoError(t, b.AddLink("a", "e1", "b", "e1"))
	require.NoError(t, b.AddLink("b", "e2", "c", "e1"))
	return b.Build()
}

func TestApplyNodeRemoveCascadesLinks(t *testing.T) {
	base := baseTopology(t)

	adjusted, err := Apply(base, Adjustment{NodeRemove: "c"})
	require.NoError(t, err)

	assert.False(t, adjusted.HasNode("c"))
	for _, l := range adjusted.Links {
		assert.NotEqual(t, "c", l.From.Node)
		assert.NotEqual(t, "c", l.To.Node)
	}
	require.Len(t, adjusted.Links, 1)
	assert.Equal(t, "a", adjusted.Links[0].From.Node)
	assert.Equal(t, "b", adjusted.Links[0].To.Node)
}

func TestApplyNodeAddAndLinkAdd(t *testing.T) {
	base := baseTopology(t)

	adjusted, err := Apply(base, Adjustment{
		NodeAdd: map[string]NodeSpec{"d": {Kind: "linux", Image: "linux:latest"}},
		LinkAdd: []EndpointPair{{
			From: Endpoint{Node: "d", Interface: "e1"},
			To:   Endpoint{Node: "a", Interface: "e2"},
		}},
	})
	require.NoError(t, err)

	assert.True(t, adjusted.HasNode("d"))
	require.Len(t, adjusted.Links, 3)
}

func TestApplyLinkRemoveIgnoresEndpointOrder(t *testing.T) {
	base := baseTopology(t)

	adjusted, err := Apply(base, Adjustment{
		LinkRemove: []EndpointPair{{
			From: Endpoint{Node: "b", Interface: "e1"},
			To:   Endpoint{Node: "a", Interface: "e1"},
		}},
	})
	require.NoError(t, err)
	require.Len(t, adjusted.Links, 1)
	assert.Equal(t, "b", adjusted.Links[0].From.Node)
	assert.Equal(t, "c", adjusted.Links[0].To.Node)
}

func TestDumpShape(t *testing.T) {
	base := baseTopology(t)
	out, err := base.Dump()
	require.NoError(t, err)
	assert.Contains(t, string(out), "name: net")
	assert.Contains(t, string(out), "kind: linux")
	assert.Contains(t, string(out), "image: linux:latest")
	assert.Contains(t, string(out), "a:e1")
}

func TestLoadRoundTripsDump(t *testing.T) {
	base := baseTopology(t)
	out, err := base.Dump()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "net.clab.yml")
	require.NoError(t, os.WriteFile(path, out, 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, base.Name, loaded.Name)
	assert.Equal(t, base.NodeNames(), loaded.NodeNames())
	require.Len(t, loaded.Links, 2)
	assert.Equal(t, "a", loaded.Links[0].From.Node)
	assert.Equal(t, "e1", loaded.Links[0].From.Interface)
	assert.Equal(t, "b", loaded.Links[0].To.Node)
	assert.Equal(t, "e1", loaded.Links[0].To.Interface)
}

func TestLoadRejectsLinkWithUnknownEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.clab.yml")
	contents := "name: net\ntopology:\n  nodes:\n    a:\n      kind: linux\n      image: linux:latest\n  links:\n    - endpoints: [\"a:e1\", \"missing:e1\"]\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	var unknown *ErrUnknownEndpoint
	require.ErrorAs(t, err, &unknown)
}

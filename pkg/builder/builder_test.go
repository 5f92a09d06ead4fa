package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digsinet/digsinet/pkg/topology"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(cwd) })
	return dir
}

func sampleTopology() topology.Topology {
	bld := topology.NewBuilder("net")
	bld.AddNode("r1", "linux", "")
	return bld.Build()
}

func TestBuildTopologyWritesDeterministicFile(t *testing.T) {
	dir := chdirTemp(t)
	b := New(Config{TopologyName: "net"})

	running, err := b.BuildTopology(context.Background(), "sib1", sampleTopology(), false)
	require.NoError(t, err)
	assert.False(t, running, "non-autostarted sibling must not be reported as running")

	_, err = os.Stat(filepath.Join(dir, "net_sib_sib1.clab.yml"))
	require.NoError(t, err)
}

func TestBuildTopologyAutostartSuccess(t *testing.T) {
	chdirTemp(t)
	b := New(Config{TopologyName: "net", Binary: "true"})

	running, err := b.BuildTopology(context.Background(), "sib1", sampleTopology(), true)
	require.NoError(t, err)
	assert.True(t, running)
}

func TestBuildTopologyAutostartFailure(t *testing.T) {
	chdirTemp(t)
	b := New(Config{TopologyName: "net", Binary: "false"})

	running, err := b.BuildTopology(context.Background(), "sib1", sampleTopology(), true)
	require.NoError(t, err, "a failed deploy is reported via the return value, not an error")
	assert.False(t, running)
}

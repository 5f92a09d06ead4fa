package builder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/digsinet/digsinet/pkg/log"
	"github.com/digsinet/digsinet/pkg/metrics"
	"github.com/digsinet/digsinet/pkg/topology"
)

// Config configures one Builder instance.
type Config struct {
	// TopologyName is the real network's name; sibling files are named
	// "<TopologyName>_sib_<sibling>.clab.yml".
	TopologyName string

	// Binary is the container-lab executable to invoke, default "clab".
	Binary string

	// ReconfigureFlag, when non-empty, is passed to "clab deploy" (e.g.
	// "--reconfigure") to force redeploying an existing lab.
	ReconfigureFlag string
}

func (c Config) binary() string {
	if c.Binary == "" {
		return "clab"
	}
	return c.Binary
}

// Builder writes sibling topology files and, when asked, deploys them via
// the external container-lab binary. It is the only component that
// invokes an external process.
type Builder struct {
	cfg Config
}

// New creates a Builder for one real network topology name.
func New(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// filePath returns the deterministic path a sibling's topology is written to.
func (b *Builder) filePath(sibling string) string {
	return fmt.Sprintf("./%s_sib_%s.clab.yml", b.cfg.TopologyName, sibling)
}

// BuildTopology writes sibling's topology file and, if autostart is set,
// deploys it. It returns true iff the deploy subprocess exited zero; a
// sibling that isn't autostarted returns false with no error.
func (b *Builder) BuildTopology(ctx context.Context, sibling string, siblingTopology topology.Topology, autostart bool) (bool, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.TopologyBuildDuration, sibling)

	logger := log.WithSibling(sibling)
	logger.Info().Msg("building sibling topology")

	data, err := siblingTopology.Dump()
	if err != nil {
		metrics.TopologyBuildsTotal.WithLabelValues(sibling, "dump_error").Inc()
		return false, fmt.Errorf("builder: dump topology for sibling %s: %w", sibling, err)
	}

	path := b.filePath(sibling)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		metrics.TopologyBuildsTotal.WithLabelValues(sibling, "write_error").Inc()
		return false, fmt.Errorf("builder: write topology file %s: %w", path, err)
	}

	if !autostart {
		metrics.TopologyBuildsTotal.WithLabelValues(sibling, "written").Inc()
		return false, nil
	}

	running := b.deploy(ctx, sibling, path)
	outcome := "deployed"
	if !running {
		outcome = "deploy_failed"
	}
	metrics.TopologyBuildsTotal.WithLabelValues(sibling, outcome).Inc()
	return running, nil
}

// deploy synchronously runs the container-lab binary against path, never
// returning an error: a non-zero exit or launch failure is logged and
// simply reported as "not running" so the control plane keeps serving
// every other sibling.
func (b *Builder) deploy(ctx context.Context, sibling, path string) bool {
	logger := log.WithSibling(sibling)
	logger.Info().Str("file", path).Msg("deploying sibling topology")

	args := []string{"deploy"}
	if b.cfg.ReconfigureFlag != "" {
		args = append(args, b.cfg.ReconfigureFlag)
	}
	args = append(args, "-t", path)

	cmd := exec.CommandContext(ctx, b.cfg.binary(), args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logger.Error().Err(err).Str("stderr", stderr.String()).Msg("container-lab deploy failed")
		return false
	}

	logger.Info().Msg("sibling topology deployed")
	return true
}

package main

import (
	"context"
	"fmt"

	"github.com/digsinet/digsinet/pkg/nodemgmt"
)

// unconfiguredClient satisfies nodemgmt.Client when no management-protocol
// wire implementation has been wired into this binary. The real gNMI
// transport is an external, contract-only collaborator each deployment
// supplies for its own device stack; this stub exists so digsinet starts
// and runs its tick loop (polling and mirroring simply no-op) rather than
// refusing to boot, and reports the gap loudly on every call instead of
// silently doing nothing.
type unconfiguredClient struct{}

func (unconfiguredClient) Get(ctx context.Context, host, path string) (any, error) {
	return nil, fmt.Errorf("nodemgmt: no management-protocol client configured (host=%s path=%s)", host, path)
}

func (unconfiguredClient) Replace(ctx context.Context, host, path string, value any) error {
	return fmt.Errorf("nodemgmt: no management-protocol client configured (host=%s path=%s)", host, path)
}

func (unconfiguredClient) SetRaw(ctx context.Context, host string, op nodemgmt.SetOp, data any) error {
	return fmt.Errorf("nodemgmt: no management-protocol client configured (host=%s op=%s)", host, op)
}

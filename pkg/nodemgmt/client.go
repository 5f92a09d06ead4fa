package nodemgmt

import (
	"context"
	"fmt"
)

// SetOp is one of the write operations a management protocol supports.
type SetOp string

const (
	OpUpdate  SetOp = "update"
	OpReplace SetOp = "replace"
	OpDelete  SetOp = "delete"
)

// ErrUnsupportedOp is returned by Client.SetRaw for any op outside
// {update, replace, delete}.
type ErrUnsupportedOp struct {
	Op SetOp
}

func (e *ErrUnsupportedOp) Error() string {
	return fmt.Sprintf("nodemgmt: unsupported operation %q", e.Op)
}

// Client is the transport to one management-protocol host. Implementations
// dial per call (or pool internally); callers never assume a persistent
// session survives across calls.
type Client interface {
	// Get fetches the current value at path on host.
	Get(ctx context.Context, host, path string) (any, error)

	// Replace overwrites the value at path on host. Used to mirror an
	// observed update as a replace, since some management protocols
	// reject blind updates to container fields (e.g. interface
	// addresses) that a replace accepts.
	Replace(ctx context.Context, host, path string, value any) error

	// SetRaw issues op with data exactly as given, for callers that
	// already have a protocol-shaped payload. Returns *ErrUnsupportedOp
	// for any op outside {update, replace, delete}.
	SetRaw(ctx context.Context, host string, op SetOp, data any) error
}

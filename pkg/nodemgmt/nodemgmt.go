package nodemgmt

import (
	"context"
	"regexp"

	"github.com/digsinet/digsinet/pkg/broker"
	"github.com/digsinet/digsinet/pkg/hostlock"
	"github.com/digsinet/digsinet/pkg/log"
	"github.com/digsinet/digsinet/pkg/task"
)

// Nodes caches, per node name and watched path, the last value observed
// for that node. GetNodesUpdate both reads and refreshes this cache.
type Nodes map[string]map[string]any

// HostName derives the management host for a node, branching on whether
// target is the real network or a sibling.
func HostName(prefix, topologyName, target, node string) string {
	if target == "realnet" {
		return prefix + "-" + topologyName + "-" + node
	}
	return prefix + "-" + topologyName + "_" + target + "-" + node
}

// Update is one value assignment inside a NotificationEntry.
type Update struct {
	Path string
	Val  any
}

// NotificationEntry mirrors one element of a gNMI-shaped notification
// list; only Update entries are replayed, anything else is logged and
// skipped.
type NotificationEntry struct {
	Update []Update
}

// NotificationData is the payload SetNodeUpdate replays onto a node.
type NotificationData struct {
	Notification []NotificationEntry
}

// Manager is a façade over one management-protocol client scoped to one
// topology target ("realnet" or a sibling name).
type Manager struct {
	target       string
	prefix       string
	topologyName string
	nodeSelector *regexp.Regexp
	paths        []string
	client       Client
	locks        *hostlock.Table
}

// NewManager builds a Manager for target, selecting nodes by
// nodeSelector (nil matches every node) and polling paths on every call.
func NewManager(target, prefix, topologyName string, nodeSelector *regexp.Regexp, paths []string, client Client, locks *hostlock.Table) *Manager {
	return &Manager{
		target:       target,
		prefix:       prefix,
		topologyName: topologyName,
		nodeSelector: nodeSelector,
		paths:        paths,
		client:       client,
		locks:        locks,
	}
}

func (m *Manager) hostFor(nodes Nodes, nodeName string) string {
	if _, ok := nodes[nodeName]; !ok {
		return ""
	}
	if m.nodeSelector != nil && !m.nodeSelector.MatchString(nodeName) {
		return ""
	}
	return HostName(m.prefix, m.topologyName, m.target, nodeName)
}

// GetNodesUpdate fetches every watched path on every selected node,
// updating nodes in place. When diff is true, a changed value (after
// stripping timestamps and hello-world noise) is published as a gNMI
// notification to every known channel. Unreachable hosts are logged and
// skipped; a single bad node never stalls the rest of the tick.
func (m *Manager) GetNodesUpdate(ctx context.Context, nodes Nodes, br broker.Broker, diff bool) Nodes {
	for nodeName := range nodes {
		host := m.hostFor(nodes, nodeName)
		if host == "" {
			continue
		}

		logger := log.WithHost(host)
		for _, path := range m.paths {
			data, err := m.client.Get(ctx, host, path)
			if err != nil {
				logger.Error().Err(err).Str("path", path).Msg("nodemgmt: failed to read path")
				continue
			}

			if nodes[nodeName] == nil {
				nodes[nodeName] = make(map[string]any)
			}
			old := nodes[nodeName][path]
			nodes[nodeName][path] = data

			if !diff {
				continue
			}

			changed, diffVal := computeDiff(old, data)
			if !changed {
				continue
			}

			notif := task.NewGNMINotification(m.target, nodeName, path, data, diffVal)
			for _, channel := range br.GetSiblingChannels() {
				if err := br.Publish(ctx, channel, notif); err != nil {
					logger.Error().Err(err).Str("channel", channel).Msg("nodemgmt: failed to publish gNMI notification")
				}
			}
		}
	}
	return nodes
}

// SetNodeUpdate replays every update entry in data as a replace at path
// on nodeName, serialised per host by the write lock. Anything that
// isn't a plain update entry is logged and skipped.
func (m *Manager) SetNodeUpdate(ctx context.Context, nodes Nodes, nodeName, path string, data NotificationData) {
	host := m.hostFor(nodes, nodeName)
	if host == "" {
		return
	}
	logger := log.WithHost(host)

	for _, entry := range data.Notification {
		if len(entry.Update) == 0 {
			logger.Debug().Msg("nodemgmt: notification entry has no update, skipping")
			continue
		}
		for _, u := range entry.Update {
			unlock := m.locks.Lock(host)
			err := m.client.Replace(ctx, host, path, u.Val)
			unlock()
			if err != nil {
				logger.Error().Err(err).Str("path", path).Msg("nodemgmt: failed to sync update")
			}
		}
	}
}

// Set issues a single op against nodeName, serialised by the write lock.
// It returns *ErrUnsupportedOp for any op outside {update, replace,
// delete} rather than swallowing it, since that is a caller programming
// error rather than a transient device failure.
func (m *Manager) Set(ctx context.Context, nodes Nodes, nodeName string, op SetOp, data any) error {
	if op != OpUpdate && op != OpReplace && op != OpDelete {
		return &ErrUnsupportedOp{Op: op}
	}

	host := m.hostFor(nodes, nodeName)
	if host == "" {
		return nil
	}

	unlock := m.locks.Lock(host)
	defer unlock()

	if err := m.client.SetRaw(ctx, host, op, data); err != nil {
		log.WithHost(host).Error().Err(err).Msg("nodemgmt: set failed")
		return nil
	}
	return nil
}

package topology

import "regexp"

// NodeSpec describes a node to be added by an Adjustment.
type NodeSpec struct {
	Kind  string
	Image string
}

// EndpointPair names both sides of a link to add or remove.
type EndpointPair struct {
	From Endpoint
	To   Endpoint
}

// Adjustment is a declarative diff applied to a topology to derive a
// sibling's topology from the real one. All fields are optional; a zero
// Adjustment leaves the topology unchanged.
//
// Ordering is fixed regardless of field order in the struct: node removal
// (and its cascading link pruning) happens before node addition, and link
// removal happens before link addition.
type Adjustment struct {
	// NodeRemove is a regular expression matched, in full, against node
	// names; matching nodes and every link mentioning them are dropped.
	NodeRemove string
	// NodeAdd maps new node names to their kind/image.
	NodeAdd map[string]NodeSpec
	// LinkRemove lists links to drop, matched by endpoint pair (order of
	// the two endpoints does not matter).
	LinkRemove []EndpointPair
	// LinkAdd lists links to add once nodes have been adjusted.
	LinkAdd []EndpointPair
}

// Apply derives a new topology from base by applying the adjustment:
// removals first (node-remove cascades to link removal), then additions.
// AddLink failures during LinkAdd (an endpoint naming a node absent from
// the adjusted topology) are returned as *ErrUnknownEndpoint.
func Apply(base Topology, adj Adjustment) (Topology, error) {
	removeRe, err := compileNodeRemove(adj.NodeRemove)
	if err != nil {
		return Topology{}, err
	}

	removedNodes := make(map[string]bool)
	b := NewBuilder(base.Name)
	for _, n := range base.Nodes {
		if removeRe != nil && removeRe.MatchString(n.Name) {
			removedNodes[n.Name] = true
			continue
		}
		b.AddNode(n.Name, n.Kind, n.Image)
	}

	for name, spec := range adj.NodeAdd {
		b.AddNode(name, spec.Kind, spec.Image)
	}

	removeLinks := make(map[linkKey]bool, len(adj.LinkRemove))
	for _, pair := range adj.LinkRemove {
		removeLinks[pairKey(pair)] = true
	}

	for _, l := range base.Links {
		if removedNodes[l.From.Node] || removedNodes[l.To.Node] {
			continue
		}
		if removeLinks[linkKey{l.From, l.To}] || removeLinks[linkKey{l.To, l.From}] {
			continue
		}
		if err := b.AddLink(l.From.Node, l.From.Interface, l.To.Node, l.To.Interface); err != nil {
			return Topology{}, err
		}
	}

	for _, pair := range adj.LinkAdd {
		if err := b.AddLink(pair.From.Node, pair.From.Interface, pair.To.Node, pair.To.Interface); err != nil {
			return Topology{}, err
		}
	}

	return b.Build(), nil
}

func compileNodeRemove(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile("^(?:" + pattern + ")$")
}

type linkKey struct {
	A, B Endpoint
}

func pairKey(p EndpointPair) linkKey {
	return linkKey{p.From, p.To}
}

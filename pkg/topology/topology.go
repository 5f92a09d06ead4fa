package topology

import "fmt"

// Node is a single network element: its name (unique within a topology),
// its kind (vendor/OS tag, e.g. "ceos", "linux"), and the image reference
// used to materialise it.
type Node struct {
	Name  string
	Kind  string
	Image string
}

// Endpoint names one side of a Link: a node name and the interface on it.
type Endpoint struct {
	Node      string
	Interface string
}

// Link connects two endpoints in different nodes.
type Link struct {
	From Endpoint
	To   Endpoint
}

// Topology is an ordered set of nodes and an ordered sequence of links.
// Values are built exclusively through Builder and are not mutated in
// place afterwards; callers that need a modified topology start a new
// Builder from the existing nodes/links.
type Topology struct {
	Name  string
	Nodes []Node
	Links []Link
}

// NodeNames returns the set of node names present in the topology.
func (t *Topology) NodeNames() map[string]bool {
	names := make(map[string]bool, len(t.Nodes))
	for _, n := range t.Nodes {
		names[n.Name] = true
	}
	return names
}

// HasNode reports whether a node with the given name exists.
func (t *Topology) HasNode(name string) bool {
	for _, n := range t.Nodes {
		if n.Name == name {
			return true
		}
	}
	return false
}

// ErrUnknownEndpoint is returned by Builder.AddLink when either endpoint
// names a node that has not been added to the topology yet.
type ErrUnknownEndpoint struct {
	Node string
}

func (e *ErrUnknownEndpoint) Error() string {
	return fmt.Sprintf("unknown endpoint: node %q not in topology", e.Node)
}

// Builder assembles a Topology incrementally. The zero value is not usable;
// construct one with NewBuilder.
type Builder struct {
	name  string
	nodes []Node
	links []Link
}

// NewBuilder starts a new topology builder for a topology with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// AddNode appends a node to the topology under construction. Duplicate
// names are the caller's responsibility to avoid; AddNode does not dedupe.
func (b *Builder) AddNode(name, kind, image string) *Builder {
	b.nodes = append(b.nodes, Node{Name: name, Kind: kind, Image: image})
	return b
}

// AddLink appends a link between two existing nodes. It returns
// *ErrUnknownEndpoint if either node has not been added yet.
func (b *Builder) AddLink(nodeFrom, ifaceFrom, nodeTo, ifaceTo string) error {
	if !b.hasNode(nodeFrom) {
		return &ErrUnknownEndpoint{Node: nodeFrom}
	}
	if !b.hasNode(nodeTo) {
		return &ErrUnknownEndpoint{Node: nodeTo}
	}
	b.links = append(b.links, Link{
		From: Endpoint{Node: nodeFrom, Interface: ifaceFrom},
		To:   Endpoint{Node: nodeTo, Interface: ifaceTo},
	})
	return nil
}

func (b *Builder) hasNode(name string) bool {
	for _, n := range b.nodes {
		if n.Name == name {
			return true
		}
	}
	return false
}

// Clear resets the builder to an empty topology, keeping its name.
func (b *Builder) Clear() *Builder {
	b.nodes = nil
	b.links = nil
	return b
}

// Build returns the assembled Topology. The builder remains usable
// afterwards (further calls continue from the current state).
func (b *Builder) Build() Topology {
	nodes := make([]Node, len(b.nodes))
	copy(nodes, b.nodes)
	links := make([]Link, len(b.links))
	copy(links, b.links)
	return Topology{Name: b.name, Nodes: nodes, Links: links}
}

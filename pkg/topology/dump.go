package topology

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// clabNode is the container-runtime's per-node YAML shape:
// {kind, image: "kind:latest"}.
type clabNode struct {
	Kind  string `yaml:"kind"`
	Image string `yaml:"image"`
}

type clabLink struct {
	Endpoints []string `yaml:"endpoints"`
}

type clabTopology struct {
	Nodes map[string]clabNode `yaml:"nodes"`
	Links []clabLink          `yaml:"links"`
}

type clabFile struct {
	Name     string       `yaml:"name"`
	Topology clabTopology `yaml:"topology"`
}

// Dump renders the topology to the container-runtime's YAML schema:
//
//	name: <name>
//	topology:
//	  nodes:
//	    <node>: {kind: <kind>, image: "<kind>:latest"}
//	  links:
//	    - endpoints: ["n1:if1", "n2:if2"]
//
// Image defaults to "<kind>:latest" when a node's Image field is empty, the
// same default the original clab builder applied unconditionally.
func (t Topology) Dump() ([]byte, error) {
	nodes := make(map[string]clabNode, len(t.Nodes))
	for _, n := range t.Nodes {
		image := n.Image
		if image == "" {
			image = n.Kind + ":latest"
		}
		nodes[n.Name] = clabNode{Kind: n.Kind, Image: image}
	}

	links := make([]clabLink, 0, len(t.Links))
	for _, l := range t.Links {
		links = append(links, clabLink{
			Endpoints: []string{
				l.From.Node + ":" + l.From.Interface,
				l.To.Node + ":" + l.To.Interface,
			},
		})
	}

	out := clabFile{
		Name: t.Name,
		Topology: clabTopology{
			Nodes: nodes,
			Links: links,
		},
	}
	return yaml.Marshal(out)
}

// Load parses the container-runtime's YAML schema (the inverse of Dump)
// from path into a Topology. Endpoints are expected as "node:interface"
// pairs; a link whose endpoint names a node absent from the file is
// rejected with *ErrUnknownEndpoint.
func Load(path string) (Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Topology{}, fmt.Errorf("topology: read %s: %w", path, err)
	}

	var raw clabFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Topology{}, fmt.Errorf("topology: parse %s: %w", path, err)
	}

	b := NewBuilder(raw.Name)
	for name, n := range raw.Topology.Nodes {
		b.AddNode(name, n.Kind, n.Image)
	}
	for _, l := range raw.Topology.Links {
		if len(l.Endpoints) != 2 {
			return Topology{}, fmt.Errorf("topology: link in %s does not have exactly two endpoints: %v", path, l.Endpoints)
		}
		fromNode, fromIface := splitEndpoint(l.Endpoints[0])
		toNode, toIface := splitEndpoint(l.Endpoints[1])
		if err := b.AddLink(fromNode, fromIface, toNode, toIface); err != nil {
			return Topology{}, err
		}
	}
	return b.Build(), nil
}

func splitEndpoint(ep string) (node, iface string) {
	node, iface, found := strings.Cut(ep, ":")
	if !found {
		return ep, ""
	}
	return node, iface
}

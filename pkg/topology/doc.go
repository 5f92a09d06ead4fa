// Package topology models a network topology as an immutable set of nodes
// and links, built through a Builder, and adjusted by a declarative
// Adjustment (node/link add/remove) to derive a sibling's topology from the
// real one.
package topology

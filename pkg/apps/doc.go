// Package apps implements the pluggable applications a controller runs
// against its topology every tick: hello-world, overview, ci, and sec.
// Every app is stateless across ticks except for small internal counters
// (overview's cadence) and must never mutate sibling state directly —
// only the controller does that, through the node management façade.
package apps

// Package nodemgmt implements the node-oriented management façade used by
// controllers to poll, diff, and write configuration on topology nodes
// (real or sibling). The concrete wire protocol (gNMI-shaped) is modelled
// as a small Client interface: DigSiNet consumes it the way the source
// consumes pygnmi, as an opaque client to an external device, never as a
// service this codebase implements.
package nodemgmt

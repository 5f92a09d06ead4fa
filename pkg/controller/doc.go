// Package controller drives one topology, real or sibling, through its
// per-tick lifecycle: refresh node state, run its apps, then drain and
// react to whatever the broker delivered since the last tick.
//
// One Controller exists per sibling (plus the supervisor's own real-net
// tick loop, which follows the same shape without needing a
// builder). Controllers never talk to each other directly; all
// coordination happens through the broker.
package controller

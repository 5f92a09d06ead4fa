// Package supervisor implements DigSiNet's boot sequence and real-network
// tick loop: parse the loaded configuration's action, stand up the event
// broker and every sibling controller, deploy the real-net topology, and
// then drive the real network the same way a controller drives a
// sibling, fanning task messages that carry a sibling field out to that
// sibling's real-net-side app instances.
package supervisor

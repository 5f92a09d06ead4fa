// Package metrics defines and registers the Prometheus metrics exposed by
// the DigSiNet control plane: broker publish/poll counts, node management
// read/write latency, per-controller tick duration, per-app run duration,
// and topology build outcomes. All metrics are registered at package init
// against the default Prometheus registry; Handler exposes them over HTTP
// for scraping.
package metrics

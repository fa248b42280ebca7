// Package metric provides Prometheus metrics for TLSMesh.
//
// Metrics include:
//
//   - Certificate reloads by channel and result
//   - Fan-out rounds, per-node failures and round latency
//   - Peer disconnects by result
//
// Metrics are exposed at /metrics in Prometheus format.
package metric

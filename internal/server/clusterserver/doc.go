// Package clusterserver provides cluster communication for TLSMesh.
//
// This package handles inter-node communication:
//
//   - Node discovery and membership (gossip via memberlist)
//   - The ReloadService RPC that takes part in reload rounds
//   - Per-peer connection pools that can be dropped and re-dialed
//
// Communication uses Connect RPC with a JSON codec over mTLS, using the
// transport channel's certificate material.
package clusterserver

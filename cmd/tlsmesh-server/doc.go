// Package main provides the entry point for tlsmesh-server.
//
// The server is one TLSMesh node. It provides:
//
//   - REST API for certificate reloads, certificate info and health checks
//   - Cluster RPC over mutual TLS for reload fan-out between nodes
//   - Gossip membership so every node knows every other node's RPC address
//   - Optional file watching that reloads certificates when they change on disk
//
// Usage:
//
//	tlsmesh-server [flags]
//	tlsmesh-server --config /path/to/config.yaml
//
// Every setting can also come from TLSMESH_* environment variables, with
// "__" separating sections (TLSMESH_CLUSTER__NODE_ID).
package main

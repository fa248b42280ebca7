// Package tests holds multi-node integration tests for TLSMesh.
//
// They start real cluster nodes on loopback (gossip membership, mTLS
// cluster RPC and certificate stores) and are skipped in short mode.
package tests

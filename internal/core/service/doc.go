// Package service provides the cluster certificate reload protocol.
//
// Services contain the protocol logic and define interfaces for the
// collaborators they drive (certificate store, membership, transport),
// allowing for dependency injection and testability.
//
// This package contains:
//
//   - AuthorizationGate / AdminRegistry: admin-only access checks
//   - NodeReloadHandler: per-node handling of a reload trigger
//   - ClusterFanout: broadcast of a trigger with per-node failure isolation
//   - ReloadCoordinator: the entry point driving reload and disconnect
//
// Services hold no state across reload rounds and are safe for concurrent use.
package service

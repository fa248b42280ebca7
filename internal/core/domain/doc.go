// Package domain defines the core domain models for TLSMesh.
//
// Domain models are pure value objects without any IO dependencies
// or framework coupling. This package contains:
//
//   - ChannelType: which certificate material a reload targets
//   - ReloadTrigger / NodeOutcome / ClusterOutcome: the cluster reload wire model
//   - Node: a member of the cluster membership snapshot
//   - Principal: the authenticated caller carried in a context
//   - Errors: Domain-specific error definitions
package domain

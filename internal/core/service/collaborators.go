package service

import (
	"context"

	"github.com/yndnr/tlsmesh-go/internal/core/domain"
)

// CertificateStore reloads key and trust material for a channel.
// Reload fails when the new material is structurally invalid, in which case
// the previously active material stays in place.
type CertificateStore interface {
	Reload(channel domain.ChannelType) error
}

// Membership provides cluster membership snapshots.
type Membership interface {
	// LocalNode returns this node.
	LocalNode() domain.Node

	// Nodes returns the current members, including the local node.
	Nodes() []domain.Node

	// Node looks up a member by ID.
	Node(id string) (domain.Node, bool)
}

// Disconnector drops connections to a peer. The transport re-establishes
// them on demand.
type Disconnector interface {
	Disconnect(ctx context.Context, node domain.Node) error
}

// NodeInvoker delivers a reload trigger to a remote node.
type NodeInvoker interface {
	Invoke(ctx context.Context, node domain.Node, trigger domain.ReloadTrigger) (domain.NodeOutcome, error)
}

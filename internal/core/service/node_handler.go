package service

import (
	"context"
	"log/slog"

	"github.com/yndnr/tlsmesh-go/internal/core/domain"
	"github.com/yndnr/tlsmesh-go/internal/telemetry/metric"
)

// NodeReloadHandler runs on every cluster member when a reload trigger
// arrives. It never touches certificate material; the originator reloaded
// its own material before broadcasting.
type NodeReloadHandler struct {
	gate         *AuthorizationGate
	membership   Membership
	disconnector Disconnector
	metrics      *metric.Registry
	logger       *slog.Logger
}

// NodeReloadHandlerConfig configures a NodeReloadHandler.
type NodeReloadHandlerConfig struct {
	Gate         *AuthorizationGate
	Membership   Membership
	Disconnector Disconnector
	Metrics      *metric.Registry
	Logger       *slog.Logger
}

// NewNodeReloadHandler creates a node handler.
func NewNodeReloadHandler(cfg NodeReloadHandlerConfig) *NodeReloadHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &NodeReloadHandler{
		gate:         cfg.Gate,
		membership:   cfg.Membership,
		disconnector: cfg.Disconnector,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
}

// Handle processes one trigger on this node.
//
// The caller must be an administrator according to this node's own
// configuration. When the trigger came from another node, this node drops
// its connections to the originator; a failed disconnect is logged only.
func (h *NodeReloadHandler) Handle(ctx context.Context, trigger domain.ReloadTrigger) (domain.NodeOutcome, error) {
	if err := trigger.Validate(); err != nil {
		return domain.NodeOutcome{}, err
	}

	if err := h.gate.Authorize(ctx); err != nil {
		h.logger.Warn("reload trigger rejected",
			"initiating_node", trigger.InitiatingNodeID,
			"error", err)
		return domain.NodeOutcome{}, err
	}

	local := h.membership.LocalNode()

	// The originator disconnects from everyone after the round completes.
	if trigger.InitiatingNodeID != local.ID {
		h.disconnectFrom(ctx, trigger.InitiatingNodeID)
	}

	return domain.NodeOutcome{RespondingNodeID: local.ID}, nil
}

func (h *NodeReloadHandler) disconnectFrom(ctx context.Context, nodeID string) {
	node, ok := h.membership.Node(nodeID)
	if !ok {
		h.logger.Info("initiating node not in membership, nothing to disconnect",
			"initiating_node", nodeID)
		return
	}

	err := h.disconnector.Disconnect(ctx, node)
	h.metrics.ObserveDisconnect(err)
	if err != nil {
		h.logger.Error("disconnect from initiating node failed",
			"node_id", node.ID,
			"error", domain.ErrDisconnect.WithCause(err))
		return
	}

	h.logger.Info("disconnected from node because of reloading transport certificates",
		"node_id", node.ID)
}

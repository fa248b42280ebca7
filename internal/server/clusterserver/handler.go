package clusterserver

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	clusterv1 "github.com/yndnr/tlsmesh-go/api/cluster/v1"
	"github.com/yndnr/tlsmesh-go/internal/core/domain"
)

// TriggerHandler handles a reload trigger on this node.
type TriggerHandler interface {
	Handle(ctx context.Context, trigger domain.ReloadTrigger) (domain.NodeOutcome, error)
}

// Handler implements clusterv1.ReloadServiceHandler.
//
// This connects the Connect RPC layer with the node reload handler.
type Handler struct {
	node   TriggerHandler
	logger *slog.Logger
}

var _ clusterv1.ReloadServiceHandler = (*Handler)(nil)

// NewHandler creates a new RPC handler.
func NewHandler(node TriggerHandler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{node: node, logger: logger}
}

// Reload handles the Reload RPC.
func (h *Handler) Reload(
	ctx context.Context,
	req *connect.Request[clusterv1.ReloadRequest],
) (*connect.Response[clusterv1.ReloadResponse], error) {
	h.logger.Debug("reload trigger received",
		"initiating_node", req.Msg.InitiatingNodeID,
		"peer_node", PeerNodeID(ctx))

	out, err := h.node.Handle(ctx, domain.NewReloadTrigger(req.Msg.InitiatingNodeID))
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&clusterv1.ReloadResponse{
		RespondingNodeID: out.RespondingNodeID,
	}), nil
}

// toConnectError maps a domain error onto a Connect error. The domain code
// travels in error metadata.
func toConnectError(err error) *connect.Error {
	code := connect.CodeInternal
	switch {
	case errors.Is(err, domain.ErrInvalidTrigger):
		code = connect.CodeInvalidArgument
	case errors.Is(err, domain.ErrUnauthorized):
		code = connect.CodePermissionDenied
	}

	cerr := connect.NewError(code, err)
	if dc := domain.GetErrorCode(err); dc != "" {
		cerr.Meta().Set(clusterv1.ErrorCodeKey, dc)
	}
	return cerr
}

// fromConnectError maps a Connect error from a peer back onto the domain
// taxonomy. Anything that is not an explicit refusal counts as unreachable.
func fromConnectError(err error) *domain.DomainError {
	switch connect.CodeOf(err) {
	case connect.CodePermissionDenied:
		return domain.ErrUnauthorized.WithCause(err)
	case connect.CodeInvalidArgument:
		return domain.ErrInvalidTrigger.WithCause(err)
	default:
		return domain.ErrPeerUnreachable.WithCause(err)
	}
}

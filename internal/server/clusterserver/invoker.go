package clusterserver

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	clusterv1 "github.com/yndnr/tlsmesh-go/api/cluster/v1"
	"github.com/yndnr/tlsmesh-go/internal/core/domain"
)

// Invoker delivers reload triggers to peers over the cluster RPC.
// It implements service.NodeInvoker.
type Invoker struct {
	pool         *PeerPool
	interceptors []connect.Interceptor
	logger       *slog.Logger
}

// NewInvoker creates an invoker dialing through pool.
func NewInvoker(pool *PeerPool, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		pool:         pool,
		interceptors: []connect.Interceptor{NewPrincipalInterceptor()},
		logger:       logger,
	}
}

// Invoke implements service.NodeInvoker.
func (i *Invoker) Invoke(ctx context.Context, node domain.Node, trigger domain.ReloadTrigger) (domain.NodeOutcome, error) {
	if node.Addr == "" {
		return domain.NodeOutcome{}, domain.ErrPeerUnreachable.WithDetails("node " + node.ID + " advertises no rpc address")
	}

	httpClient, err := i.pool.Client(node)
	if err != nil {
		return domain.NodeOutcome{}, domain.ErrPeerUnreachable.WithCause(err)
	}

	client := clusterv1.NewReloadServiceClient(httpClient, node.Addr,
		connect.WithInterceptors(i.interceptors...))

	resp, err := client.Reload(ctx, connect.NewRequest(&clusterv1.ReloadRequest{
		InitiatingNodeID: trigger.InitiatingNodeID,
	}))
	if err != nil {
		return domain.NodeOutcome{}, fromConnectError(err)
	}

	return domain.NodeOutcome{RespondingNodeID: resp.Msg.RespondingNodeID}, nil
}

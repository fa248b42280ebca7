package service

import (
	"context"
	"log/slog"

	"github.com/yndnr/tlsmesh-go/internal/core/domain"
	"github.com/yndnr/tlsmesh-go/internal/telemetry/metric"
)

// Broadcaster runs one reload fan-out round across the cluster.
type Broadcaster interface {
	Broadcast(ctx context.Context, trigger domain.ReloadTrigger) (domain.ClusterOutcome, error)
}

// Result messages.
const (
	MessageHTTPUpdated                  = "updated http certs"
	MessageTransportUpdated             = "updated transport certs"
	MessageTransportUpdatedDisconnected = "updated transport certs and disconnected"
)

// StatusOK is the status reported for a completed reload.
const StatusOK = "OK"

// ReloadRequest asks for a certificate reload on one channel.
type ReloadRequest struct {
	Channel domain.ChannelType

	// DisconnectAfterReload forces every cluster link to be re-established
	// with the new material. Only meaningful for the transport channel.
	DisconnectAfterReload bool
}

// ReloadResult is the caller-facing result of a reload.
type ReloadResult struct {
	Channel domain.ChannelType     `json:"channel"`
	Status  string                 `json:"status"`
	Message string                 `json:"message"`
	Outcome *domain.ClusterOutcome `json:"outcome,omitempty"`

	// DisconnectedPeers counts peers this node dropped after the fan-out.
	DisconnectedPeers int `json:"disconnected_peers"`
}

// ReloadCoordinator is the entry point for certificate reloads.
type ReloadCoordinator struct {
	gate         *AuthorizationGate
	store        CertificateStore
	membership   Membership
	fanout       Broadcaster
	disconnector Disconnector
	metrics      *metric.Registry
	logger       *slog.Logger
}

// ReloadCoordinatorConfig configures a ReloadCoordinator.
type ReloadCoordinatorConfig struct {
	Gate         *AuthorizationGate
	Store        CertificateStore
	Membership   Membership
	Fanout       Broadcaster
	Disconnector Disconnector
	Metrics      *metric.Registry
	Logger       *slog.Logger
}

// NewReloadCoordinator creates a coordinator.
func NewReloadCoordinator(cfg ReloadCoordinatorConfig) *ReloadCoordinator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ReloadCoordinator{
		gate:         cfg.Gate,
		store:        cfg.Store,
		membership:   cfg.Membership,
		fanout:       cfg.Fanout,
		disconnector: cfg.Disconnector,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
}

// ReloadChannel authorizes the caller, parses the raw channel selector and
// reloads. An unknown selector fails before any state changes.
func (c *ReloadCoordinator) ReloadChannel(ctx context.Context, raw string, disconnectAfterReload bool) (ReloadResult, error) {
	if err := c.gate.Authorize(ctx); err != nil {
		return ReloadResult{}, err
	}
	ch, err := domain.ParseChannelType(raw)
	if err != nil {
		return ReloadResult{}, err
	}
	return c.Reload(ctx, ReloadRequest{Channel: ch, DisconnectAfterReload: disconnectAfterReload})
}

// Reload reloads local certificate material for req.Channel.
//
// For the transport channel with DisconnectAfterReload set, it then runs the
// two disconnect phases in order: every node drops its links to this node
// (fan-out), then this node drops its links to every other node. Peer
// failures in either phase are reported or logged but do not fail the call.
func (c *ReloadCoordinator) Reload(ctx context.Context, req ReloadRequest) (ReloadResult, error) {
	if err := c.gate.Authorize(ctx); err != nil {
		c.logger.Warn("certificate reload denied",
			"channel", req.Channel.String(),
			"error", err)
		return ReloadResult{}, err
	}
	if !req.Channel.IsValid() {
		return ReloadResult{}, domain.ErrInvalidChannelType.WithDetails(req.Channel.String())
	}
	if c.store == nil {
		return ReloadResult{}, domain.ErrStoreUnavailable
	}

	if err := c.reloadLocal(req.Channel); err != nil {
		return ReloadResult{}, err
	}

	result := ReloadResult{Channel: req.Channel, Status: StatusOK}

	switch {
	case !req.Channel.SupportsDisconnect():
		result.Message = MessageHTTPUpdated
		return result, nil
	case !req.DisconnectAfterReload:
		result.Message = MessageTransportUpdated
		return result, nil
	}

	// Phase one: every node disconnects from us. The snapshot for phase two
	// is taken before the round so nodes leaving mid-round are still dropped.
	local := c.membership.LocalNode()
	snapshot := c.membership.Nodes()

	outcome, err := c.fanout.Broadcast(ctx, domain.NewReloadTrigger(local.ID))
	if err != nil {
		return ReloadResult{}, err
	}

	// Phase two: we disconnect from every other node.
	result.DisconnectedPeers = c.disconnectAll(ctx, local, snapshot)
	result.Message = MessageTransportUpdatedDisconnected
	result.Outcome = &outcome

	c.logger.Info("transport certificates reloaded cluster-wide",
		"cluster", outcome.ClusterName,
		"succeeded", len(outcome.Nodes),
		"failed", len(outcome.Failures),
		"disconnected_peers", result.DisconnectedPeers)

	return result, nil
}

func (c *ReloadCoordinator) reloadLocal(ch domain.ChannelType) error {
	err := c.store.Reload(ch)
	c.metrics.ObserveCertReload(ch.String(), err)
	if err != nil {
		c.logger.Error("certificate reload failed",
			"channel", ch.String(),
			"error", err)
		if domain.IsDomainError(err, "") {
			return err
		}
		return domain.ErrCertificateLoad.WithCause(err)
	}
	c.logger.Info("certificates reloaded", "channel", ch.String())
	return nil
}

// disconnectAll drops links to every node in snapshot except local and
// returns how many disconnects succeeded.
func (c *ReloadCoordinator) disconnectAll(ctx context.Context, local domain.Node, snapshot []domain.Node) int {
	ctx = context.WithoutCancel(ctx)

	disconnected := 0
	for _, node := range snapshot {
		if node.ID == local.ID {
			continue
		}
		err := c.disconnector.Disconnect(ctx, node)
		c.metrics.ObserveDisconnect(err)
		if err != nil {
			c.logger.Error("disconnect from node failed",
				"node_id", node.ID,
				"error", domain.ErrDisconnect.WithCause(err))
			continue
		}
		disconnected++
	}

	c.logger.Info("disconnected from nodes because of reloading transport certificates",
		"count", disconnected)
	return disconnected
}

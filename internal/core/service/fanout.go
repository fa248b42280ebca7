package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/yndnr/tlsmesh-go/internal/core/domain"
	"github.com/yndnr/tlsmesh-go/internal/telemetry/metric"
)

// Fan-out defaults.
const (
	DefaultFanoutTimeout     = 30 * time.Second
	DefaultFanoutConcurrency = 16
)

// LocalNodeHandler handles a trigger in-process on the local node.
type LocalNodeHandler interface {
	Handle(ctx context.Context, trigger domain.ReloadTrigger) (domain.NodeOutcome, error)
}

// ClusterFanoutConfig configures a ClusterFanout.
type ClusterFanoutConfig struct {
	// ClusterName is reported in every ClusterOutcome.
	ClusterName string

	Membership Membership

	// Local handles the trigger on this node without a network hop.
	Local LocalNodeHandler

	// Remote delivers the trigger to every other node.
	Remote NodeInvoker

	// Timeout bounds each node call. Default: 30s.
	Timeout time.Duration

	// Concurrency bounds in-flight node calls. Default: 16.
	Concurrency int

	Metrics *metric.Registry
	Logger  *slog.Logger
}

// ClusterFanout broadcasts a reload trigger to every member and waits for
// all of them. Unreachable or failing nodes become failure entries; they
// never fail the round.
type ClusterFanout struct {
	clusterName string
	membership  Membership
	local       LocalNodeHandler
	remote      NodeInvoker
	timeout     time.Duration
	concurrency int
	metrics     *metric.Registry
	logger      *slog.Logger
}

// NewClusterFanout creates a fan-out.
func NewClusterFanout(cfg ClusterFanoutConfig) *ClusterFanout {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFanoutTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultFanoutConcurrency
	}
	return &ClusterFanout{
		clusterName: cfg.ClusterName,
		membership:  cfg.Membership,
		local:       cfg.Local,
		remote:      cfg.Remote,
		timeout:     cfg.Timeout,
		concurrency: cfg.Concurrency,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

// Broadcast sends trigger to every node in the current membership snapshot,
// the local node included, and returns once each node has answered or
// definitively failed.
//
// The round is detached from ctx cancellation: once started it runs to
// completion. Values carried by ctx (the caller's principal) still flow to
// every node call. An error is returned only for an invalid trigger.
func (f *ClusterFanout) Broadcast(ctx context.Context, trigger domain.ReloadTrigger) (domain.ClusterOutcome, error) {
	if err := trigger.Validate(); err != nil {
		return domain.ClusterOutcome{}, err
	}

	roundCtx := context.WithoutCancel(ctx)
	roundID := ulid.Make().String()
	logger := f.logger.With("round_id", roundID, "initiating_node", trigger.InitiatingNodeID)

	nodes := f.membership.Nodes()
	local := f.membership.LocalNode()
	f.metrics.SetClusterMembers(len(nodes))

	logger.Info("reload fan-out started", "nodes", len(nodes))
	start := time.Now()

	var (
		mu      sync.Mutex
		outcome = domain.ClusterOutcome{
			ClusterName: f.clusterName,
			Nodes:       make([]domain.NodeOutcome, 0, len(nodes)),
			Failures:    make([]domain.NodeFailure, 0),
		}
	)

	var g errgroup.Group
	g.SetLimit(f.concurrency)

	for _, node := range nodes {
		g.Go(func() error {
			res, err := f.call(roundCtx, local, node, trigger)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				logger.Warn("node failed to process reload trigger",
					"node_id", node.ID,
					"error", err)
				outcome.Failures = append(outcome.Failures, domain.NewNodeFailure(node.ID, err))
				return nil
			}

			if res.RespondingNodeID == "" {
				res.RespondingNodeID = node.ID
			}
			outcome.Nodes = append(outcome.Nodes, res)
			return nil
		})
	}

	// Workers never return errors; failures live in outcome.
	_ = g.Wait()

	elapsed := time.Since(start)
	f.metrics.ObserveFanout(len(outcome.Nodes), len(outcome.Failures), elapsed)

	logger.Info("reload fan-out completed",
		"succeeded", len(outcome.Nodes),
		"failed", len(outcome.Failures),
		"duration_ms", elapsed.Milliseconds())

	return outcome, nil
}

// call delivers the trigger to a single node within the per-node timeout.
// Errors that are not domain errors are reported as unreachable peers.
func (f *ClusterFanout) call(ctx context.Context, local, node domain.Node, trigger domain.ReloadTrigger) (domain.NodeOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var (
		res domain.NodeOutcome
		err error
	)
	if node.ID == local.ID {
		res, err = f.local.Handle(ctx, trigger)
	} else {
		res, err = f.remote.Invoke(ctx, node, trigger)
	}

	if err != nil && !domain.IsDomainError(err, "") {
		err = domain.ErrPeerUnreachable.WithCause(err)
	}
	return res, err
}

package clusterserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/memberlist"

	"github.com/yndnr/tlsmesh-go/internal/core/domain"
	"github.com/yndnr/tlsmesh-go/internal/telemetry/logger"
)

// leaveTimeout bounds the wait for the leave broadcast to go out.
const leaveTimeout = 5 * time.Second

// Discovery handles node discovery and membership using Gossip protocol.
// It implements service.Membership.
type Discovery struct {
	config     *memberlist.Config
	memberList *memberlist.Memberlist
	logger     *slog.Logger
	rpcAddr    string

	mu       sync.RWMutex
	shutdown bool

	// Callbacks
	onJoin  func(node domain.Node)
	onLeave func(nodeID string)
}

// DiscoveryConfig configures the discovery mechanism.
type DiscoveryConfig struct {
	// NodeID is the unique node identifier.
	NodeID string

	// BindAddr is the address to bind for gossip communication.
	BindAddr string

	// BindPort is the port to bind for gossip communication.
	BindPort int

	// AdvertiseAddr is the gossip address announced to peers.
	// Empty means the bind address.
	AdvertiseAddr string

	// RPCAddr is the base URL of this node's cluster RPC endpoint
	// (e.g., "https://10.0.0.5:5343"). It is stored in node metadata so
	// peers know where to send reload triggers.
	RPCAddr string

	// SeedNodes are the initial nodes to join (host:port).
	SeedNodes []string

	// Logger for logging.
	Logger *slog.Logger
}

// nodeMetadata is gossiped with every member.
type nodeMetadata struct {
	RPCAddr string `json:"rpc_addr"`
}

// NewDiscovery creates a new discovery instance and joins the seed nodes.
func NewDiscovery(cfg DiscoveryConfig) (*Discovery, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NodeID == "" {
		return nil, fmt.Errorf("discovery: node id is required")
	}

	meta, err := json.Marshal(nodeMetadata{RPCAddr: cfg.RPCAddr})
	if err != nil {
		return nil, fmt.Errorf("encode node metadata: %w", err)
	}
	if len(meta) > memberlist.MetaMaxSize {
		return nil, fmt.Errorf("node metadata exceeds %d bytes", memberlist.MetaMaxSize)
	}

	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = cfg.NodeID
	mlConfig.BindAddr = cfg.BindAddr
	mlConfig.BindPort = cfg.BindPort
	if cfg.AdvertiseAddr != "" {
		mlConfig.AdvertiseAddr = cfg.AdvertiseAddr
		mlConfig.AdvertisePort = cfg.BindPort
	}
	mlConfig.Delegate = &metadataDelegate{meta: meta}

	// memberlist logs through hclog-style tagged lines.
	mlConfig.LogOutput = nil
	mlConfig.Logger = logger.NewHCLogger("memberlist", cfg.Logger).
		StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true})

	d := &Discovery{
		config:  mlConfig,
		logger:  cfg.Logger,
		rpcAddr: cfg.RPCAddr,
	}
	mlConfig.Events = &eventDelegate{discovery: d}

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("create memberlist: %w", err)
	}
	d.memberList = ml

	if len(cfg.SeedNodes) > 0 {
		n, err := ml.Join(cfg.SeedNodes)
		if err != nil {
			ml.Shutdown()
			return nil, fmt.Errorf("join seed nodes: %w", err)
		}
		cfg.Logger.Info("joined cluster",
			"node_id", cfg.NodeID,
			"seed_nodes", cfg.SeedNodes,
			"joined_count", n)
	} else {
		cfg.Logger.Info("started discovery (bootstrap mode)",
			"node_id", cfg.NodeID)
	}

	return d, nil
}

// LocalNode implements service.Membership.
func (d *Discovery) LocalNode() domain.Node {
	if d.memberList == nil {
		return domain.Node{ID: d.config.Name, Addr: d.rpcAddr}
	}
	return toNode(d.memberList.LocalNode())
}

// Nodes implements service.Membership. The result is sorted by node ID and
// includes the local node.
func (d *Discovery) Nodes() []domain.Node {
	if d.memberList == nil {
		return []domain.Node{d.LocalNode()}
	}

	members := d.memberList.Members()
	nodes := make([]domain.Node, 0, len(members))
	for _, m := range members {
		nodes = append(nodes, toNode(m))
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// Node implements service.Membership.
func (d *Discovery) Node(id string) (domain.Node, bool) {
	if d.memberList == nil {
		local := d.LocalNode()
		return local, local.ID == id
	}
	for _, m := range d.memberList.Members() {
		if m.Name == id {
			return toNode(m), true
		}
	}
	return domain.Node{}, false
}

// NumMembers returns the number of live members.
func (d *Discovery) NumMembers() int {
	if d.memberList == nil {
		return 1
	}
	return d.memberList.NumMembers()
}

// GossipAddr returns the host:port peers use to join this node.
func (d *Discovery) GossipAddr() string {
	if d.memberList == nil {
		return ""
	}
	n := d.memberList.LocalNode()
	return net.JoinHostPort(n.Addr.String(), fmt.Sprintf("%d", n.Port))
}

// Leave gracefully leaves the cluster.
func (d *Discovery) Leave() error {
	if d.memberList == nil {
		return nil
	}

	// Broadcast leave notification
	if err := d.memberList.Leave(leaveTimeout); err != nil {
		d.logger.Error("failed to leave cluster", "error", err)
		return err
	}

	d.logger.Info("left cluster")
	return nil
}

// Shutdown stops the discovery mechanism.
func (d *Discovery) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.shutdown || d.memberList == nil {
		return nil
	}
	d.shutdown = true

	if err := d.memberList.Shutdown(); err != nil {
		return fmt.Errorf("shutdown memberlist: %w", err)
	}

	d.logger.Info("discovery shutdown complete")
	return nil
}

// OnJoin registers a callback for node join events.
func (d *Discovery) OnJoin(fn func(node domain.Node)) {
	d.mu.Lock()
	d.onJoin = fn
	d.mu.Unlock()
}

// OnLeave registers a callback for node leave events.
func (d *Discovery) OnLeave(fn func(nodeID string)) {
	d.mu.Lock()
	d.onLeave = fn
	d.mu.Unlock()
}

// toNode converts a memberlist node, reading the RPC address from metadata.
// A member without metadata has no RPC address and cannot be invoked.
func toNode(n *memberlist.Node) domain.Node {
	var meta nodeMetadata
	if len(n.Meta) > 0 {
		_ = json.Unmarshal(n.Meta, &meta)
	}
	return domain.Node{ID: n.Name, Addr: meta.RPCAddr}
}

// eventDelegate implements memberlist.EventDelegate.
type eventDelegate struct {
	discovery *Discovery
}

// NotifyJoin is called when a node joins.
func (e *eventDelegate) NotifyJoin(n *memberlist.Node) {
	node := toNode(n)
	gossipAddr := net.JoinHostPort(n.Addr.String(), fmt.Sprintf("%d", n.Port))

	if node.Addr == "" {
		e.discovery.logger.Warn("node joined without rpc metadata",
			"node_id", n.Name,
			"gossip_addr", gossipAddr)
	}

	e.discovery.logger.Info("node joined",
		"node_id", n.Name,
		"gossip_addr", gossipAddr,
		"rpc_addr", node.Addr)

	e.discovery.mu.RLock()
	fn := e.discovery.onJoin
	e.discovery.mu.RUnlock()
	if fn != nil {
		fn(node)
	}
}

// NotifyLeave is called when a node leaves.
func (e *eventDelegate) NotifyLeave(n *memberlist.Node) {
	e.discovery.logger.Info("node left",
		"node_id", n.Name,
		"addr", n.Addr.String())

	e.discovery.mu.RLock()
	fn := e.discovery.onLeave
	e.discovery.mu.RUnlock()
	if fn != nil {
		fn(n.Name)
	}
}

// NotifyUpdate is called when a node is updated.
func (e *eventDelegate) NotifyUpdate(n *memberlist.Node) {
	e.discovery.logger.Debug("node updated",
		"node_id", n.Name,
		"addr", n.Addr.String())
}

// metadataDelegate provides node metadata (RPC address) to memberlist.
type metadataDelegate struct {
	meta []byte
}

// NodeMeta returns metadata about this node (up to limit bytes).
func (m *metadataDelegate) NodeMeta(limit int) []byte {
	if len(m.meta) > limit {
		return nil
	}
	return m.meta
}

// NotifyMsg is called when a user message is received (not used).
func (m *metadataDelegate) NotifyMsg([]byte) {}

// GetBroadcasts is called to get broadcasts to send (not used).
func (m *metadataDelegate) GetBroadcasts(overhead, limit int) [][]byte {
	return nil
}

// LocalState returns the local state for synchronization (not used).
func (m *metadataDelegate) LocalState(join bool) []byte {
	return nil
}

// MergeRemoteState merges remote state (not used).
func (m *metadataDelegate) MergeRemoteState(buf []byte, join bool) {
}

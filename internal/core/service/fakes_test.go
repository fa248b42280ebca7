package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/yndnr/tlsmesh-go/internal/core/domain"
)

const testAdminDN = "CN=admin,OU=Ops,O=Example"

var (
	adminPrincipal    = domain.Principal{Name: testAdminDN, Source: domain.SourceCertificate}
	nonAdminPrincipal = domain.Principal{Name: "CN=guest,O=Example", Source: domain.SourceCertificate}

	errPartitioned = errors.New("connection refused")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func adminCtx() context.Context {
	return domain.WithPrincipal(context.Background(), adminPrincipal)
}

func testGate() *AuthorizationGate {
	return NewAuthorizationGate(NewAdminRegistry([]string{testAdminDN}, nil))
}

// ====================
// Membership
// ====================

type staticMembership struct {
	local domain.Node
	nodes []domain.Node
}

func newStaticMembership(localID string, ids ...string) *staticMembership {
	m := &staticMembership{local: domain.Node{ID: localID, Addr: "https://" + localID}}
	for _, id := range ids {
		m.nodes = append(m.nodes, domain.Node{ID: id, Addr: "https://" + id})
	}
	return m
}

func (m *staticMembership) LocalNode() domain.Node { return m.local }

func (m *staticMembership) Nodes() []domain.Node {
	out := make([]domain.Node, len(m.nodes))
	copy(out, m.nodes)
	return out
}

func (m *staticMembership) Node(id string) (domain.Node, bool) {
	for _, n := range m.nodes {
		if n.ID == id {
			return n, true
		}
	}
	return domain.Node{}, false
}

// ====================
// Disconnector
// ====================

type recordingDisconnector struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func newRecordingDisconnector() *recordingDisconnector {
	return &recordingDisconnector{fail: make(map[string]error)}
}

func (d *recordingDisconnector) Disconnect(_ context.Context, node domain.Node) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, node.ID)
	return d.fail[node.ID]
}

func (d *recordingDisconnector) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	copy(out, d.calls)
	return out
}

// ====================
// Certificate store
// ====================

type fakeStore struct {
	mu      sync.Mutex
	reloads []domain.ChannelType
	err     error
}

func (s *fakeStore) Reload(ch domain.ChannelType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloads = append(s.reloads, ch)
	return s.err
}

func (s *fakeStore) Reloads() []domain.ChannelType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ChannelType, len(s.reloads))
	copy(out, s.reloads)
	return out
}

// ====================
// In-memory cluster
// ====================

// testNode is one simulated cluster member.
type testNode struct {
	id           string
	membership   *staticMembership
	disconnector *recordingDisconnector
	store        *fakeStore
	handler      *NodeReloadHandler
}

// testCluster routes fan-out calls between simulated members. Calls to
// partitioned nodes fail as a transport error would.
type testCluster struct {
	mu          sync.Mutex
	nodes       map[string]*testNode
	partitioned map[string]bool
	invocations []string
}

func newTestCluster(ids ...string) *testCluster {
	c := &testCluster{
		nodes:       make(map[string]*testNode, len(ids)),
		partitioned: make(map[string]bool),
	}
	for _, id := range ids {
		m := newStaticMembership(id, ids...)
		d := newRecordingDisconnector()
		c.nodes[id] = &testNode{
			id:           id,
			membership:   m,
			disconnector: d,
			store:        &fakeStore{},
			handler: NewNodeReloadHandler(NodeReloadHandlerConfig{
				Gate:         testGate(),
				Membership:   m,
				Disconnector: d,
				Logger:       discardLogger(),
			}),
		}
	}
	return c
}

func (c *testCluster) Partition(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partitioned[id] = true
	// Disconnecting from a node that is gone fails as well.
	for _, n := range c.nodes {
		n.disconnector.mu.Lock()
		n.disconnector.fail[id] = errPartitioned
		n.disconnector.mu.Unlock()
	}
}

// Invoke implements NodeInvoker. Only the principal, as data, crosses the
// simulated wire; the receiving handler authorizes it on its own.
func (c *testCluster) Invoke(ctx context.Context, node domain.Node, trigger domain.ReloadTrigger) (domain.NodeOutcome, error) {
	c.mu.Lock()
	c.invocations = append(c.invocations, node.ID)
	down := c.partitioned[node.ID]
	target := c.nodes[node.ID]
	c.mu.Unlock()

	if down || target == nil {
		return domain.NodeOutcome{}, errPartitioned
	}

	remoteCtx := context.Background()
	if p, ok := domain.PrincipalFromContext(ctx); ok {
		remoteCtx = domain.WithPrincipal(remoteCtx, p)
	}
	return target.handler.Handle(remoteCtx, trigger)
}

func (c *testCluster) Invocations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.invocations))
	copy(out, c.invocations)
	return out
}

// Coordinator builds the reload coordinator of node id.
func (c *testCluster) Coordinator(id string) *ReloadCoordinator {
	n := c.nodes[id]
	fanout := NewClusterFanout(ClusterFanoutConfig{
		ClusterName: "test-cluster",
		Membership:  n.membership,
		Local:       n.handler,
		Remote:      c,
		Logger:      discardLogger(),
	})
	return NewReloadCoordinator(ReloadCoordinatorConfig{
		Gate:         testGate(),
		Store:        n.store,
		Membership:   n.membership,
		Fanout:       fanout,
		Disconnector: n.disconnector,
		Logger:       discardLogger(),
	})
}

// TotalDisconnects counts disconnect calls on every node.
func (c *testCluster) TotalDisconnects() int {
	total := 0
	for _, n := range c.nodes {
		total += len(n.disconnector.Calls())
	}
	return total
}

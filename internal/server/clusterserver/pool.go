package clusterserver

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/yndnr/tlsmesh-go/internal/core/domain"
)

// ClientTLSSource provides client TLS material for a channel.
type ClientTLSSource interface {
	ClientTLSConfig(ch domain.ChannelType) (*tls.Config, error)
}

// PeerPoolConfig configures a PeerPool.
type PeerPoolConfig struct {
	// TLS supplies the transport channel material used when dialing.
	TLS ClientTLSSource

	// DialTimeout bounds TCP connect plus TLS handshake. Default: 5s.
	DialTimeout time.Duration

	// IdleConnTimeout closes idle connections. Default: 90s.
	IdleConnTimeout time.Duration

	Logger *slog.Logger
}

// PeerPool keeps one HTTP connection pool per peer node.
//
// A pool is created on first use with the transport material that is active
// at that moment. Disconnect discards a peer's pool, so the next call dials
// fresh connections with whatever material is active then. PeerPool
// implements service.Disconnector.
type PeerPool struct {
	tls         ClientTLSSource
	dialTimeout time.Duration
	idleTimeout time.Duration
	logger      *slog.Logger

	mu    sync.Mutex
	peers map[string]*peerConn
}

type peerConn struct {
	transport *http.Transport
	client    *http.Client
	dialedAt  time.Time
}

// NewPeerPool creates an empty pool.
func NewPeerPool(cfg PeerPoolConfig) *PeerPool {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}
	return &PeerPool{
		tls:         cfg.TLS,
		dialTimeout: cfg.DialTimeout,
		idleTimeout: cfg.IdleConnTimeout,
		logger:      cfg.Logger,
		peers:       make(map[string]*peerConn),
	}
}

// Client returns the HTTP client for node, creating its pool if needed.
func (p *PeerPool) Client(node domain.Node) (*http.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pc, ok := p.peers[node.ID]; ok {
		return pc.client, nil
	}

	tlsConfig, err := p.tls.ClientTLSConfig(domain.ChannelTransport)
	if err != nil {
		return nil, fmt.Errorf("client tls config: %w", err)
	}

	dialer := &net.Dialer{Timeout: p.dialTimeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSClientConfig:     tlsConfig,
		TLSHandshakeTimeout: p.dialTimeout,
		ForceAttemptHTTP2:   true,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     p.idleTimeout,
	}

	pc := &peerConn{
		transport: transport,
		client:    &http.Client{Transport: transport},
		dialedAt:  time.Now(),
	}
	p.peers[node.ID] = pc

	p.logger.Debug("peer connection pool created", "node_id", node.ID, "addr", node.Addr)
	return pc.client, nil
}

// Disconnect implements service.Disconnector.
//
// It drops this node's outbound connections to node. Idle connections
// close immediately; a request in flight finishes on its connection, which
// then idles out of the discarded pool. Disconnecting from a node without a
// pool is a no-op.
func (p *PeerPool) Disconnect(ctx context.Context, node domain.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	pc, ok := p.peers[node.ID]
	delete(p.peers, node.ID)
	p.mu.Unlock()

	if !ok {
		p.logger.Debug("no connections to node", "node_id", node.ID)
		return nil
	}

	pc.transport.CloseIdleConnections()

	p.logger.Info("disconnected from node",
		"node_id", node.ID,
		"connected_for", time.Since(pc.dialedAt).Round(time.Millisecond).String())
	return nil
}

// Connected reports whether a pool for nodeID exists.
func (p *PeerPool) Connected(nodeID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.peers[nodeID]
	return ok
}

// Len returns the number of peers with a pool.
func (p *PeerPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.peers)
}

// Close drops every pool.
func (p *PeerPool) Close() {
	p.mu.Lock()
	peers := p.peers
	p.peers = make(map[string]*peerConn)
	p.mu.Unlock()

	for _, pc := range peers {
		pc.transport.CloseIdleConnections()
	}
}

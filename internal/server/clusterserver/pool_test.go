package clusterserver

import (
	"context"
	"crypto/tls"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/tlsmesh-go/internal/core/domain"
)

type countingTLSSource struct {
	calls atomic.Int32
	err   error
}

func (s *countingTLSSource) ClientTLSConfig(ch domain.ChannelType) (*tls.Config, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &tls.Config{MinVersion: tls.VersionTLS12}, nil
}

func TestPeerPool_ReusesClientUntilDisconnect(t *testing.T) {
	src := &countingTLSSource{}
	pool := NewPeerPool(PeerPoolConfig{TLS: src, Logger: discardLogger()})
	node := domain.Node{ID: "node-b", Addr: "https://127.0.0.1:1"}

	c1, err := pool.Client(node)
	require.NoError(t, err)
	c2, err := pool.Client(node)
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.Equal(t, int32(1), src.calls.Load())

	require.NoError(t, pool.Disconnect(context.Background(), node))
	assert.False(t, pool.Connected("node-b"))

	c3, err := pool.Client(node)
	require.NoError(t, err)
	assert.NotSame(t, c1, c3)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestPeerPool_DisconnectUnknownNode(t *testing.T) {
	pool := NewPeerPool(PeerPoolConfig{TLS: &countingTLSSource{}, Logger: discardLogger()})

	assert.NoError(t, pool.Disconnect(context.Background(), domain.Node{ID: "node-z"}))
	assert.Equal(t, 0, pool.Len())
}

func TestPeerPool_DisconnectCanceledContext(t *testing.T) {
	pool := NewPeerPool(PeerPoolConfig{TLS: &countingTLSSource{}, Logger: discardLogger()})
	node := domain.Node{ID: "node-b"}
	_, err := pool.Client(node)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, pool.Disconnect(ctx, node), context.Canceled)
	assert.True(t, pool.Connected("node-b"))
}

func TestPeerPool_MaterialUnavailable(t *testing.T) {
	pool := NewPeerPool(PeerPoolConfig{
		TLS:    &countingTLSSource{err: errors.New("channel not configured")},
		Logger: discardLogger(),
	})

	_, err := pool.Client(domain.Node{ID: "node-b"})
	require.Error(t, err)
	assert.Equal(t, 0, pool.Len())
}

func TestPeerPool_Close(t *testing.T) {
	pool := NewPeerPool(PeerPoolConfig{TLS: &countingTLSSource{}, Logger: discardLogger()})
	for _, id := range []string{"node-a", "node-b", "node-c"} {
		_, err := pool.Client(domain.Node{ID: id})
		require.NoError(t, err)
	}
	require.Equal(t, 3, pool.Len())

	pool.Close()
	assert.Equal(t, 0, pool.Len())
}

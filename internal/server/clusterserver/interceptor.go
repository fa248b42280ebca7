package clusterserver

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"connectrpc.com/connect"

	clusterv1 "github.com/yndnr/tlsmesh-go/api/cluster/v1"
	"github.com/yndnr/tlsmesh-go/internal/core/domain"
)

// LoggingInterceptor logs all RPC requests and responses.
type LoggingInterceptor struct {
	logger *slog.Logger
}

// NewLoggingInterceptor creates a new logging interceptor.
func NewLoggingInterceptor(logger *slog.Logger) *LoggingInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingInterceptor{logger: logger}
}

// WrapUnary implements connect.Interceptor.
func (i *LoggingInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		start := time.Now()

		i.logger.Debug("cluster rpc request",
			"method", req.Spec().Procedure,
			"peer", req.Peer().Addr,
			"peer_node", PeerNodeID(ctx))

		resp, err := next(ctx, req)

		duration := time.Since(start)
		if err != nil {
			i.logger.Error("cluster rpc error",
				"method", req.Spec().Procedure,
				"peer_node", PeerNodeID(ctx),
				"duration_ms", duration.Milliseconds(),
				"error", err)
		} else {
			i.logger.Info("cluster rpc response",
				"method", req.Spec().Procedure,
				"peer_node", PeerNodeID(ctx),
				"duration_ms", duration.Milliseconds())
		}

		return resp, err
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *LoggingInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler implements connect.Interceptor.
func (i *LoggingInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}

// NodeLookup finds cluster members by ID.
type NodeLookup interface {
	Node(id string) (domain.Node, bool)
}

// AuthInterceptor authenticates the calling node from its mTLS certificate.
//
// Security requirements:
//   - Client must present a certificate (chain verified during the handshake)
//   - Certificate must be a valid leaf, within its validity period
//   - Certificate CN must be the node ID of a current cluster member
//     (when StrictNodeIDCheck is set)
type AuthInterceptor struct {
	logger            *slog.Logger
	members           NodeLookup
	strictNodeIDCheck bool
	now               func() time.Time
}

// AuthConfig configures the auth interceptor.
type AuthConfig struct {
	// Members resolves certificate CNs to cluster members.
	Members NodeLookup

	// StrictNodeIDCheck requires the CN to be a current member.
	StrictNodeIDCheck bool

	// Logger for auth events.
	Logger *slog.Logger
}

// NewAuthInterceptor creates a new auth interceptor.
func NewAuthInterceptor(cfg AuthConfig) *AuthInterceptor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &AuthInterceptor{
		logger:            cfg.Logger,
		members:           cfg.Members,
		strictNodeIDCheck: cfg.StrictNodeIDCheck,
		now:               time.Now,
	}
}

// WrapUnary implements connect.Interceptor.
func (i *AuthInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		nodeID, err := i.authenticate(ctx)
		if err != nil {
			i.logger.Warn("cluster rpc auth failed",
				"method", req.Spec().Procedure,
				"peer", req.Peer().Addr,
				"error", err)

			return nil, connect.NewError(connect.CodeUnauthenticated, err)
		}

		return next(withPeerNodeID(ctx, nodeID), req)
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *AuthInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler implements connect.Interceptor.
func (i *AuthInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		return connect.NewError(connect.CodeUnimplemented, errors.New("streaming not supported"))
	}
}

// authenticate validates the peer's identity and returns its node ID.
func (i *AuthInterceptor) authenticate(ctx context.Context) (string, error) {
	state, ok := ctx.Value(tlsStateKey{}).(*tls.ConnectionState)
	if !ok || state == nil {
		return "", errors.New("TLS connection state not available")
	}
	if len(state.PeerCertificates) == 0 {
		return "", errors.New("no client certificate provided")
	}

	cert := state.PeerCertificates[0]
	if err := i.checkLeaf(cert); err != nil {
		return "", err
	}

	nodeID := cert.Subject.CommonName
	if nodeID == "" {
		return "", errors.New("certificate CN (node ID) is empty")
	}

	if i.strictNodeIDCheck {
		if i.members == nil {
			return "", errors.New("no membership to check node ID against")
		}
		if _, ok := i.members.Node(nodeID); !ok {
			return "", fmt.Errorf("node ID %q is not a cluster member", nodeID)
		}
	}

	return nodeID, nil
}

func (i *AuthInterceptor) checkLeaf(cert *x509.Certificate) error {
	now := i.now()
	if now.Before(cert.NotBefore) {
		return errors.New("certificate not yet valid")
	}
	if now.After(cert.NotAfter) {
		return errors.New("certificate has expired")
	}
	if cert.IsCA {
		return errors.New("client certificate cannot be a CA certificate")
	}
	return nil
}

// PrincipalInterceptor carries the caller identity between nodes.
//
// On the client it copies the principal from the context into request
// headers. On the server it does the reverse. The identity travels as data
// only; the receiving node authorizes it against its own admin settings.
type PrincipalInterceptor struct{}

// NewPrincipalInterceptor creates a principal interceptor.
func NewPrincipalInterceptor() *PrincipalInterceptor {
	return &PrincipalInterceptor{}
}

// WrapUnary implements connect.Interceptor.
func (PrincipalInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			if p, ok := domain.PrincipalFromContext(ctx); ok {
				req.Header().Set(clusterv1.HeaderPrincipal, url.QueryEscape(p.Name))
				req.Header().Set(clusterv1.HeaderPrincipalSource, string(p.Source))
			}
			return next(ctx, req)
		}

		if p, ok := principalFromHeader(req.Header()); ok {
			ctx = domain.WithPrincipal(ctx, p)
		}
		return next(ctx, req)
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (PrincipalInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler implements connect.Interceptor.
func (PrincipalInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}

func principalFromHeader(h http.Header) (domain.Principal, bool) {
	name, err := url.QueryUnescape(h.Get(clusterv1.HeaderPrincipal))
	if err != nil || name == "" {
		return domain.Principal{}, false
	}
	p := domain.Principal{
		Name:   name,
		Source: domain.PrincipalSource(h.Get(clusterv1.HeaderPrincipalSource)),
	}
	return p, !p.IsZero()
}

// RecoveryInterceptor recovers from panics.
type RecoveryInterceptor struct {
	logger *slog.Logger
}

// NewRecoveryInterceptor creates a new recovery interceptor.
func NewRecoveryInterceptor(logger *slog.Logger) *RecoveryInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecoveryInterceptor{logger: logger}
}

// WrapUnary implements connect.Interceptor.
func (i *RecoveryInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (resp connect.AnyResponse, err error) {
		defer func() {
			if r := recover(); r != nil {
				i.logger.Error("cluster rpc panic recovered",
					"method", req.Spec().Procedure,
					"panic", r)

				err = connect.NewError(connect.CodeInternal,
					fmt.Errorf("internal server error: panic recovered"))
			}
		}()

		return next(ctx, req)
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *RecoveryInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler implements connect.Interceptor.
func (i *RecoveryInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}

// DefaultInterceptors returns the server interceptor chain for cluster RPC.
func DefaultInterceptors(members NodeLookup, logger *slog.Logger) []connect.Interceptor {
	return []connect.Interceptor{
		NewRecoveryInterceptor(logger),
		NewAuthInterceptor(AuthConfig{Members: members, StrictNodeIDCheck: true, Logger: logger}),
		NewLoggingInterceptor(logger),
		NewPrincipalInterceptor(),
	}
}

// tlsStateKey is the context key for TLS connection state.
type tlsStateKey struct{}

// peerNodeKey is the context key for the authenticated peer node ID.
type peerNodeKey struct{}

func withPeerNodeID(ctx context.Context, nodeID string) context.Context {
	return context.WithValue(ctx, peerNodeKey{}, nodeID)
}

// PeerNodeID returns the authenticated calling node, if any.
func PeerNodeID(ctx context.Context) string {
	id, _ := ctx.Value(peerNodeKey{}).(string)
	return id
}

// TLSMiddleware injects TLS connection state into the request context.
//
// It must wrap the Connect handler for mTLS authentication to work.
func TLSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS != nil {
			ctx := context.WithValue(r.Context(), tlsStateKey{}, r.TLS)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

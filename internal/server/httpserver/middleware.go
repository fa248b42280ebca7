package httpserver

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/tlsmesh-go/internal/core/domain"
	"github.com/yndnr/tlsmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/tlsmesh-go/internal/telemetry/logger"
	"github.com/yndnr/tlsmesh-go/pkg/cmap"
)

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain chains multiple middlewares together.
// The first middleware is the outermost.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// KeyAuthenticator verifies admin API key credentials.
type KeyAuthenticator interface {
	AuthenticateKey(keyID, secret string) (domain.Principal, error)
}

// Error codes written by middleware.
const (
	codeInvalidKey = "TM-ADMIN-4010"
	codeRateLimit  = "TM-SYS-4290"
	codePanic      = "TM-SYS-5000"
)

// RequestID adds a unique request ID to each request.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = "req-" + strings.ToLower(ulid.Make().String())
			}

			w.Header().Set("X-Request-ID", requestID)

			ctx := logger.WithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Principal resolves the caller identity and stores it in the request
// context. A verified client certificate wins over an API key.
//
// Requests without credentials pass through anonymous; authorization is
// decided later. A presented but invalid API key is rejected here with 401.
func Principal(keys KeyAuthenticator, log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, ok := certificatePrincipal(r); ok {
				next.ServeHTTP(w, r.WithContext(domain.WithPrincipal(r.Context(), p)))
				return
			}

			keyID, secret, present := extractAPIKeyCredentials(r)
			if !present {
				next.ServeHTTP(w, r)
				return
			}

			if keys == nil || keyID == "" || secret == "" {
				writeMiddlewareError(w, r, codeInvalidKey, "invalid API key")
				return
			}
			p, err := keys.AuthenticateKey(keyID, secret)
			if err != nil {
				log.Warn("api key rejected",
					"request_id", logger.RequestIDFromContext(r.Context()),
					"key_id", keyID,
					"client_ip", getClientIP(r))
				writeMiddlewareError(w, r, codeInvalidKey, "invalid API key")
				return
			}

			next.ServeHTTP(w, r.WithContext(domain.WithPrincipal(r.Context(), p)))
		})
	}
}

// certificatePrincipal returns the subject DN of a verified client certificate.
func certificatePrincipal(r *http.Request) (domain.Principal, bool) {
	if r.TLS == nil || len(r.TLS.VerifiedChains) == 0 || len(r.TLS.VerifiedChains[0]) == 0 {
		return domain.Principal{}, false
	}
	dn := r.TLS.VerifiedChains[0][0].Subject.String()
	if dn == "" {
		return domain.Principal{}, false
	}
	return domain.Principal{Name: dn, Source: domain.SourceCertificate}, true
}

// extractAPIKeyCredentials extracts API key credentials from request headers.
// It supports two formats:
// 1. Authorization: Bearer <key_id>:<key_secret>
// 2. X-API-Key-ID + X-API-Key headers
func extractAPIKeyCredentials(r *http.Request) (keyID, secret string, present bool) {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		id, s, _ := strings.Cut(strings.TrimPrefix(auth, "Bearer "), ":")
		return id, s, true
	}

	keyID, secret = r.Header.Get("X-API-Key-ID"), r.Header.Get("X-API-Key")
	return keyID, secret, keyID != "" || secret != ""
}

// limiterIdleTTL is how long a client bucket survives without requests.
const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// RateLimit applies per-client rate limiting with a token bucket per IP.
// Buckets idle for longer than limiterIdleTTL are pruned.
func RateLimit(requestsPerSecond float64, burst int) Middleware {
	limiters := cmap.New[string, *clientLimiter]()
	var lastPrune atomic.Int64

	limiterFor := func(ip string, now time.Time) *rate.Limiter {
		cl, _ := limiters.GetOrCreate(ip, func() *clientLimiter {
			return &clientLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
		})
		cl.lastSeen.Store(now.UnixNano())

		last := lastPrune.Load()
		if now.UnixNano()-last > int64(time.Minute) && lastPrune.CompareAndSwap(last, now.UnixNano()) {
			cutoff := now.Add(-limiterIdleTTL).UnixNano()
			limiters.DeleteIf(func(_ string, c *clientLimiter) bool {
				return c.lastSeen.Load() < cutoff
			})
		}
		return cl.limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiterFor(getClientIP(r), time.Now()).Allow() {
				w.Header().Set("Retry-After", "1")
				writeMiddlewareError(w, r, codeRateLimit, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Audit logs every request together with the resolved principal.
func Audit(log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			attrs := []any{
				"request_id", logger.RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", getClientIP(r),
			}
			if wrapped.principal != nil {
				attrs = append(attrs, "principal", wrapped.principal.Name, "principal_source", string(wrapped.principal.Source))
			}

			switch {
			case wrapped.statusCode >= 500:
				log.Error("request completed with error", attrs...)
			case wrapped.statusCode >= 400:
				log.Warn("request completed with client error", attrs...)
			default:
				log.Info("request completed", attrs...)
			}
		})
	}
}

// capturePrincipal records the principal resolved further down the chain so
// Audit, which runs outside Principal, can log it.
func capturePrincipal() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rw, ok := w.(*responseWriter); ok {
				if p, ok := domain.PrincipalFromContext(r.Context()); ok {
					rw.principal = &p
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Recover recovers from panics and returns 500 error.
func Recover(log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error("panic recovered",
						"request_id", logger.RequestIDFromContext(r.Context()),
						"error", err,
						"path", r.URL.Path,
					)
					writeMiddlewareError(w, r, codePanic, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	principal  *domain.Principal
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func writeMiddlewareError(w http.ResponseWriter, r *http.Request, code, message string) {
	handler.WriteError(w, logger.RequestIDFromContext(r.Context()),
		handler.ErrorCodeToHTTPStatus(code), code, message, nil)
}

type clientIPKey struct{}

// ClientIP resolves the client address once per request and stores it in
// the context. X-Forwarded-For and X-Real-IP are honoured only when the
// direct peer falls inside trusted; otherwise the peer address is the client.
func ClientIP(trusted []netip.Prefix) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolveClientIP(r, trusted)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIPKey{}, ip)))
		})
	}
}

func resolveClientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := remoteHost(r)
	if !isTrusted(peer, trusted) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Walk from the nearest hop; the first untrusted one is the client.
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && !isTrusted(hop, trusted) {
				return hop
			}
		}
		if first := strings.TrimSpace(hops[0]); first != "" {
			return first
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

func isTrusted(host string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// getClientIP returns the address resolved by ClientIP, or the peer address.
func getClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok {
		return ip
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	// net.SplitHostPort handles IPv6 addresses like [::1]:8080
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

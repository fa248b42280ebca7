package httpserver

import (
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/yndnr/tlsmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/tlsmesh-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// ClusterName is reported in reload responses.
	ClusterName string

	// Coordinator runs certificate reloads.
	Coordinator handler.Reloader

	// Certs describes the active certificates.
	Certs handler.CertInfoSource

	// Gate authorizes every admin endpoint before its input is read.
	Gate handler.Authorizer

	// Keys verifies admin API keys. Nil disables API key authentication.
	Keys KeyAuthenticator

	// Metrics is served at /metrics. Nil uses the global registry.
	Metrics *metric.Registry

	// Ready backs /ready.
	Ready func() error

	// RateLimit is the per-IP limit for admin endpoints (requests/second).
	// Zero disables rate limiting.
	RateLimit float64
	RateBurst int

	// TrustedProxies may set X-Forwarded-For for rate limiting and audit.
	TrustedProxies []netip.Prefix

	Logger *slog.Logger
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	h := handler.New(handler.Config{
		ClusterName: cfg.ClusterName,
		Reloader:    cfg.Coordinator,
		Certs:       cfg.Certs,
		Gate:        cfg.Gate,
		Ready:       cfg.Ready,
		Logger:      cfg.Logger,
	})

	mux := http.NewServeMux()

	// Health checks carry no credentials.
	health := Chain(h, Recover(cfg.Logger), RequestID())
	mux.Handle("GET /health", health)
	mux.Handle("GET /ready", health)

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = metric.Global()
	}
	mux.Handle("GET /metrics", Chain(metrics.Handler(), Recover(cfg.Logger)))

	// Order: Recover -> RequestID -> ClientIP -> Audit -> RateLimit -> Principal -> Handler
	admin := []Middleware{
		Recover(cfg.Logger),
		RequestID(),
		ClientIP(cfg.TrustedProxies),
		Audit(cfg.Logger),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		admin = append(admin, RateLimit(cfg.RateLimit, burst))
	}
	admin = append(admin, Principal(cfg.Keys, cfg.Logger), capturePrincipal())
	adminHandler := Chain(h, admin...)

	mux.Handle("PUT /_security/api/ssl/{certType}/reloadcerts", adminHandler)
	mux.Handle("PUT /_security/api/ssl/{certType}/reloadcerts/", adminHandler)
	mux.Handle("POST /admin/v1/ssl/{certType}/reload", adminHandler)
	mux.Handle("GET /admin/v1/ssl/certs", adminHandler)

	return mux
}

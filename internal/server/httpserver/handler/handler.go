package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yndnr/tlsmesh-go/internal/core/domain"
	"github.com/yndnr/tlsmesh-go/internal/core/service"
	"github.com/yndnr/tlsmesh-go/internal/infra/tlsroots"
	"github.com/yndnr/tlsmesh-go/internal/telemetry/logger"
)

// Reloader runs certificate reloads on behalf of the caller in ctx.
type Reloader interface {
	ReloadChannel(ctx context.Context, raw string, disconnectAfterReload bool) (service.ReloadResult, error)
}

// CertInfoSource describes the active certificates.
type CertInfoSource interface {
	CertInfo() []tlsroots.CertInfo
}

// Authorizer checks that the caller in ctx is an administrator.
type Authorizer interface {
	Authorize(ctx context.Context) error
}

// Config configures a Handler.
type Config struct {
	// ClusterName is reported in reload responses.
	ClusterName string

	Reloader Reloader
	Certs    CertInfoSource
	Gate     Authorizer

	// Ready reports whether the node can serve reloads. Nil means always.
	Ready func() error

	Logger *slog.Logger
}

// Handler is the main HTTP handler that routes requests to appropriate handlers.
type Handler struct {
	clusterName string
	reloader    Reloader
	certs       CertInfoSource
	gate        Authorizer
	ready       func() error
	logger      *slog.Logger
	mux         *http.ServeMux
}

// New creates a new Handler.
func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &Handler{
		clusterName: cfg.ClusterName,
		reloader:    cfg.Reloader,
		certs:       cfg.Certs,
		gate:        cfg.Gate,
		ready:       cfg.Ready,
		logger:      cfg.Logger,
		mux:         http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	// Reload, in both the security plugin shape and the admin API shape.
	h.mux.HandleFunc("PUT /_security/api/ssl/{certType}/reloadcerts", h.handleReload)
	h.mux.HandleFunc("PUT /_security/api/ssl/{certType}/reloadcerts/", h.handleReload)
	h.mux.HandleFunc("POST /admin/v1/ssl/{certType}/reload", h.handleReload)

	h.mux.HandleFunc("GET /admin/v1/ssl/certs", h.handleCerts)
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	response := NewResponse(getRequestID(r), message, data)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	WriteError(w, getRequestID(r), status, code, message, details)
}

// WriteError writes an error envelope. Middleware uses it too.
func WriteError(w http.ResponseWriter, requestID string, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(NewErrorResponse(requestID, code, message, details))
}

// getRequestID extracts the request ID set by the RequestID middleware.
func getRequestID(r *http.Request) string {
	if id := logger.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		status := ErrorCodeToHTTPStatus(de.Code)
		if status >= 500 {
			h.logger.Error("request failed", "request_id", getRequestID(r), "error", err)
		}
		h.writeError(w, r, status, de.Code, de.Error(), nil)
		return
	}

	h.logger.Error("internal error", "request_id", getRequestID(r), "error", err)
	h.writeError(w, r, http.StatusInternalServerError,
		domain.ErrInternal.Code, domain.ErrInternal.Message, nil)
}

// ErrorCodeToHTTPStatus maps error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4000"), strings.HasSuffix(code, "-4001"), strings.HasSuffix(code, "-4002"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-4010"):
		return http.StatusUnauthorized
	case strings.HasSuffix(code, "-4030"):
		return http.StatusForbidden
	case strings.HasSuffix(code, "-4040"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-5030"):
		return http.StatusServiceUnavailable
	case strings.HasPrefix(code, "TM-ARG-"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

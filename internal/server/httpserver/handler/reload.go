package handler

import (
	"net/http"
	"strconv"

	"github.com/yndnr/tlsmesh-go/internal/core/domain"
)

// disconnectParam is the query flag that requests the disconnect
// choreography after a transport reload.
const disconnectParam = "disconnectAfterReload"

// handleReload handles
//
//	PUT  /_security/api/ssl/{certType}/reloadcerts[?disconnectAfterReload=true]
//	POST /admin/v1/ssl/{certType}/reload[?disconnectAfterReload=true]
//
// The caller is authorized before any input is looked at, so a non-admin
// always gets 403.
func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	if h.gate == nil {
		h.handleServiceError(w, r, domain.ErrUnauthorized)
		return
	}
	if err := h.gate.Authorize(r.Context()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if h.reloader == nil {
		h.handleServiceError(w, r, domain.ErrStoreUnavailable)
		return
	}

	disconnect := false
	if raw := r.URL.Query().Get(disconnectParam); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.handleServiceError(w, r, domain.ErrBadRequest.WithDetails(disconnectParam+" must be a boolean"))
			return
		}
		disconnect = v
	}

	result, err := h.reloader.ReloadChannel(r.Context(), r.PathValue("certType"), disconnect)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp := ReloadResponse{
		Status:            result.Status,
		Message:           result.Message,
		Channel:           result.Channel,
		ClusterName:       h.clusterName,
		DisconnectedPeers: result.DisconnectedPeers,
	}
	if result.Outcome != nil {
		if result.Outcome.ClusterName != "" {
			resp.ClusterName = result.Outcome.ClusterName
		}
		resp.Nodes = result.Outcome.Nodes
		resp.Failures = result.Outcome.Failures
	}

	h.writeJSON(w, r, http.StatusOK, result.Message, resp)
}

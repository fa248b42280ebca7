package handler

import (
	"net/http"

	"github.com/yndnr/tlsmesh-go/internal/core/domain"
)

// handleCerts handles GET /admin/v1/ssl/certs.
func (h *Handler) handleCerts(w http.ResponseWriter, r *http.Request) {
	if h.gate == nil {
		h.handleServiceError(w, r, domain.ErrUnauthorized)
		return
	}
	if err := h.gate.Authorize(r.Context()); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if h.certs == nil {
		h.handleServiceError(w, r, domain.ErrStoreUnavailable)
		return
	}

	h.writeJSON(w, r, http.StatusOK, "", CertsResponse{Certificates: h.certs.CertInfo()})
}

package handler

import (
	"time"

	"github.com/yndnr/tlsmesh-go/internal/core/domain"
	"github.com/yndnr/tlsmesh-go/internal/infra/tlsroots"
)

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID, message string, data any) *Response {
	if message == "" {
		message = "Success"
	}
	return &Response{
		Code:      "OK",
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// ReloadResponse is the data of a successful reload.
//
// Nodes and Failures are only present when the reload ran a cluster round.
type ReloadResponse struct {
	Status            string               `json:"status"`
	Message           string               `json:"message"`
	Channel           domain.ChannelType   `json:"channel"`
	ClusterName       string               `json:"cluster_name"`
	Nodes             []domain.NodeOutcome `json:"nodes,omitempty"`
	Failures          []domain.NodeFailure `json:"failures,omitempty"`
	DisconnectedPeers int                  `json:"disconnected_peers"`
}

// CertsResponse is the data of GET /admin/v1/ssl/certs.
type CertsResponse struct {
	Certificates []tlsroots.CertInfo `json:"certificates"`
}

// HealthResponse is the data of the health checks.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
	Reason string `json:"reason,omitempty"`
}

// Package httpserver provides the HTTP/HTTPS server for TLSMesh.
//
// This package implements the administrative REST surface using stdlib net/http:
//
//   - Reload endpoints: PUT /_security/api/ssl/{certType}/reloadcerts,
//     POST /admin/v1/ssl/{certType}/reload
//   - Certificate info: GET /admin/v1/ssl/certs
//   - Health endpoints: /health, /ready, /metrics
//
// Callers are identified by a verified client certificate (subject DN) or an
// admin API key sent as "Authorization: Bearer <key_id>:<secret>". The
// resolved principal travels in the request context to the reload
// coordinator, which makes the authorization decision.
package httpserver

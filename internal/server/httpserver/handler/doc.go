// Package handler provides HTTP request handlers for TLSMesh.
//
// It implements the certificate reload endpoints, the certificate info
// endpoint and the health checks. Every JSON response uses the Response
// envelope; errors also carry the domain code in the X-Error-Code header.
package handler

package domain

import (
	"context"
	"strings"
)

// Node is a member of the cluster membership snapshot.
type Node struct {
	// ID is the unique node identifier. Cluster certificates carry it as CN.
	ID string `json:"id"`

	// Addr is the base URL of the node's cluster RPC endpoint
	// (e.g., "https://10.0.0.5:5343").
	Addr string `json:"addr"`
}

// PrincipalSource describes how a principal was authenticated.
type PrincipalSource string

const (
	// SourceCertificate is a verified TLS client certificate; Name is its subject DN.
	SourceCertificate PrincipalSource = "certificate"

	// SourceAPIKey is an admin API key; Name is the key ID.
	SourceAPIKey PrincipalSource = "api_key"
)

// Principal is the authenticated identity behind a request.
type Principal struct {
	Name   string          `json:"name"`
	Source PrincipalSource `json:"source"`
}

// IsZero reports whether p carries no identity.
func (p Principal) IsZero() bool {
	return strings.TrimSpace(p.Name) == ""
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext extracts the principal from ctx.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.IsZero() {
		return Principal{}, false
	}
	return p, true
}

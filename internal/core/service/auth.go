// Package service provides domain services for TLSMesh.
//
// auth.go holds the admin identity resolver and the authorization gate that
// guards every operation which mutates certificate material or tears down
// connections.
package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/yndnr/tlsmesh-go/internal/core/domain"
)

// AdminResolver answers whether a principal is an administrator.
type AdminResolver interface {
	IsAdmin(p domain.Principal) bool
}

// AdminKey is an admin API key: an ID plus the argon2id hash of its secret.
type AdminKey struct {
	ID         string
	SecretHash string
}

// AdminRegistry resolves administrators from configured certificate DNs
// and admin API keys. It is immutable after construction.
type AdminRegistry struct {
	dns  map[string]struct{}
	keys map[string]string // key ID -> argon2id hash
}

// NewAdminRegistry creates a registry from admin DNs and keys.
func NewAdminRegistry(adminDNs []string, keys []AdminKey) *AdminRegistry {
	r := &AdminRegistry{
		dns:  make(map[string]struct{}, len(adminDNs)),
		keys: make(map[string]string, len(keys)),
	}
	for _, dn := range adminDNs {
		if n := NormalizeDN(dn); n != "" {
			r.dns[n] = struct{}{}
		}
	}
	for _, k := range keys {
		if k.ID != "" && k.SecretHash != "" {
			r.keys[k.ID] = k.SecretHash
		}
	}
	return r
}

// IsAdmin implements AdminResolver.
//
// Certificate principals match on normalized DN. API key principals have
// already proven the secret (see AuthenticateKey); only the key ID is checked.
func (r *AdminRegistry) IsAdmin(p domain.Principal) bool {
	if r == nil || p.IsZero() {
		return false
	}
	switch p.Source {
	case domain.SourceCertificate:
		_, ok := r.dns[NormalizeDN(p.Name)]
		return ok
	case domain.SourceAPIKey:
		_, ok := r.keys[p.Name]
		return ok
	default:
		return false
	}
}

// AuthenticateKey verifies an API key secret and returns the principal.
func (r *AdminRegistry) AuthenticateKey(keyID, secret string) (domain.Principal, error) {
	if r == nil {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	hash, ok := r.keys[keyID]
	if !ok || !verifyArgon2Hash(secret, hash) {
		return domain.Principal{}, domain.ErrUnauthorized.WithDetails("invalid api key")
	}
	return domain.Principal{Name: keyID, Source: domain.SourceAPIKey}, nil
}

// AdminCount returns the number of configured DNs and keys.
func (r *AdminRegistry) AdminCount() (dns, keys int) {
	return len(r.dns), len(r.keys)
}

// NormalizeDN canonicalizes a distinguished name for comparison:
// RDNs are trimmed, attribute types upper-cased, and joined with ",".
// Escaped commas inside values are preserved.
func NormalizeDN(dn string) string {
	var (
		rdns    []string
		current strings.Builder
		escaped bool
	)
	flush := func() {
		rdn := strings.TrimSpace(current.String())
		current.Reset()
		if rdn == "" {
			return
		}
		if i := strings.IndexByte(rdn, '='); i > 0 {
			rdn = strings.ToUpper(strings.TrimSpace(rdn[:i])) + "=" + strings.TrimSpace(rdn[i+1:])
		}
		rdns = append(rdns, rdn)
	}

	for _, c := range dn {
		switch {
		case escaped:
			current.WriteRune(c)
			escaped = false
		case c == '\\':
			current.WriteRune(c)
			escaped = true
		case c == ',':
			flush()
		default:
			current.WriteRune(c)
		}
	}
	flush()

	return strings.Join(rdns, ",")
}

// AuthorizationGate decides whether the caller in a context may invoke
// reload operations. It fails closed.
type AuthorizationGate struct {
	resolver AdminResolver
}

// NewAuthorizationGate creates a gate backed by resolver.
func NewAuthorizationGate(resolver AdminResolver) *AuthorizationGate {
	return &AuthorizationGate{resolver: resolver}
}

// Authorize returns nil only when ctx carries a principal that the resolver
// recognizes as an administrator.
func (g *AuthorizationGate) Authorize(ctx context.Context) error {
	if g == nil || g.resolver == nil {
		return domain.ErrUnauthorized.WithDetails("no admin resolver configured")
	}
	p, ok := domain.PrincipalFromContext(ctx)
	if !ok {
		return domain.ErrUnauthorized.WithDetails("no authenticated principal")
	}
	if !g.resolver.IsAdmin(p) {
		return domain.ErrUnauthorized.WithDetails(string(p.Source) + " principal is not an administrator")
	}
	return nil
}

// Allowed reports whether Authorize would succeed.
func (g *AuthorizationGate) Allowed(ctx context.Context) bool {
	return g.Authorize(ctx) == nil
}

// argon2id parameters for admin key hashes.
const (
	argon2Time    = 2
	argon2Memory  = 16384
	argon2Threads = 2
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

// HashSecret hashes an admin key secret.
// Format: $argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>
func HashSecret(secret string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	sum := argon2.IDKey([]byte(secret), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argon2Memory, argon2Time, argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum)), nil
}

// verifyArgon2Hash verifies secret against a hash produced by HashSecret.
func verifyArgon2Hash(secret, hash string) bool {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return false
	}

	computed := argon2.IDKey([]byte(secret), salt, iterations, memory, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

package clusterserver

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clusterv1 "github.com/yndnr/tlsmesh-go/api/cluster/v1"
	"github.com/yndnr/tlsmesh-go/internal/core/domain"
)

func tlsStateCtx(certs ...*x509.Certificate) context.Context {
	return context.WithValue(context.Background(), tlsStateKey{}, &tls.ConnectionState{PeerCertificates: certs})
}

func leaf(cn string, notBefore, notAfter time.Time, isCA bool) *x509.Certificate {
	return &x509.Certificate{
		Subject:   pkix.Name{CommonName: cn},
		NotBefore: notBefore,
		NotAfter:  notAfter,
		IsCA:      isCA,
	}
}

func TestAuthInterceptor_Authenticate(t *testing.T) {
	table := newMemberTable()
	table.set(domain.Node{ID: "node-a", Addr: "https://127.0.0.1:1"})

	now := time.Now()
	valid := leaf("node-a", now.Add(-time.Hour), now.Add(time.Hour), false)

	tests := []struct {
		name    string
		ctx     context.Context
		strict  bool
		wantID  string
		wantErr string
	}{
		{"member", tlsStateCtx(valid), true, "node-a", ""},
		{"no tls state", context.Background(), true, "", "TLS connection state not available"},
		{"no certificate", tlsStateCtx(), true, "", "no client certificate"},
		{"expired", tlsStateCtx(leaf("node-a", now.Add(-2*time.Hour), now.Add(-time.Hour), false)), true, "", "expired"},
		{"not yet valid", tlsStateCtx(leaf("node-a", now.Add(time.Hour), now.Add(2*time.Hour), false)), true, "", "not yet valid"},
		{"ca certificate", tlsStateCtx(leaf("node-a", now.Add(-time.Hour), now.Add(time.Hour), true)), true, "", "CA certificate"},
		{"empty cn", tlsStateCtx(leaf("", now.Add(-time.Hour), now.Add(time.Hour), false)), true, "", "empty"},
		{"not a member", tlsStateCtx(leaf("node-x", now.Add(-time.Hour), now.Add(time.Hour), false)), true, "", "not a cluster member"},
		{"not a member, lax", tlsStateCtx(leaf("node-x", now.Add(-time.Hour), now.Add(time.Hour), false)), false, "node-x", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := NewAuthInterceptor(AuthConfig{
				Members:           table.view("node-a"),
				StrictNodeIDCheck: tt.strict,
				Logger:            discardLogger(),
			})

			id, err := i.authenticate(tt.ctx)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestAuthInterceptor_StrictWithoutMembership(t *testing.T) {
	now := time.Now()
	i := NewAuthInterceptor(AuthConfig{StrictNodeIDCheck: true, Logger: discardLogger()})

	_, err := i.authenticate(tlsStateCtx(leaf("node-a", now.Add(-time.Hour), now.Add(time.Hour), false)))
	assert.Error(t, err)
}

func TestPrincipalFromHeader(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		want   domain.Principal
		wantOK bool
	}{
		{
			name: "certificate dn",
			header: map[string]string{
				clusterv1.HeaderPrincipal:       "CN%3Dadmin%2CO%3DExample",
				clusterv1.HeaderPrincipalSource: "certificate",
			},
			want:   domain.Principal{Name: "CN=admin,O=Example", Source: domain.SourceCertificate},
			wantOK: true,
		},
		{
			name: "api key",
			header: map[string]string{
				clusterv1.HeaderPrincipal:       "ops",
				clusterv1.HeaderPrincipalSource: "api_key",
			},
			want:   domain.Principal{Name: "ops", Source: domain.SourceAPIKey},
			wantOK: true,
		},
		{name: "missing", header: map[string]string{}, wantOK: false},
		{name: "bad escape", header: map[string]string{clusterv1.HeaderPrincipal: "%zz"}, wantOK: false},
		{name: "blank", header: map[string]string{clusterv1.HeaderPrincipal: "+"}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.header {
				h.Set(k, v)
			}
			got, ok := principalFromHeader(h)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestTLSMiddleware(t *testing.T) {
	var sawState bool
	h := TLSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawState = r.Context().Value(tlsStateKey{}).(*tls.ConnectionState)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, sawState)

	req.TLS = &tls.ConnectionState{}
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, sawState)
}

func TestPeerNodeID(t *testing.T) {
	assert.Empty(t, PeerNodeID(context.Background()))
	assert.Equal(t, "node-a", PeerNodeID(withPeerNodeID(context.Background(), "node-a")))
}

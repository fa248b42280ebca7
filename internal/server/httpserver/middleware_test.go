package httpserver

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/tlsmesh-go/internal/core/domain"
	"github.com/yndnr/tlsmesh-go/internal/telemetry/logger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticKeys map[string]string

func (k staticKeys) AuthenticateKey(keyID, secret string) (domain.Principal, error) {
	if s, ok := k[keyID]; ok && s == secret {
		return domain.Principal{Name: keyID, Source: domain.SourceAPIKey}, nil
	}
	return domain.Principal{}, domain.ErrUnauthorized
}

// principalEcho reports the principal found in the request context.
func principalEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := domain.PrincipalFromContext(r.Context())
		if !ok {
			w.Header().Set("X-Principal", "anonymous")
		} else {
			w.Header().Set("X-Principal", string(p.Source)+":"+p.Name)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("outer"), mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, strings.HasPrefix(seen, "req-"), seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-upstream")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-upstream", seen)
	assert.Equal(t, "req-upstream", rec.Header().Get("X-Request-ID"))
}

func TestPrincipal(t *testing.T) {
	keys := staticKeys{"ops": "s3cret"}
	h := Principal(keys, discardLogger())(principalEcho())

	withCert := func(r *http.Request, dn pkix.Name) *http.Request {
		r.TLS = &tls.ConnectionState{
			VerifiedChains: [][]*x509.Certificate{{{Subject: dn}}},
		}
		return r
	}

	tests := []struct {
		name       string
		req        func() *http.Request
		wantStatus int
		want       string
		wantCode   string
	}{
		{
			name:       "anonymous",
			req:        func() *http.Request { return httptest.NewRequest(http.MethodGet, "/", nil) },
			wantStatus: http.StatusNoContent,
			want:       "anonymous",
		},
		{
			name: "verified certificate",
			req: func() *http.Request {
				return withCert(httptest.NewRequest(http.MethodGet, "/", nil),
					pkix.Name{CommonName: "admin", Organization: []string{"Example"}})
			},
			wantStatus: http.StatusNoContent,
			want:       "certificate:CN=admin,O=Example",
		},
		{
			name: "certificate wins over key",
			req: func() *http.Request {
				r := withCert(httptest.NewRequest(http.MethodGet, "/", nil), pkix.Name{CommonName: "admin"})
				r.Header.Set("Authorization", "Bearer ops:wrong")
				return r
			},
			wantStatus: http.StatusNoContent,
			want:       "certificate:CN=admin",
		},
		{
			name: "unverified certificate is ignored",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.TLS = &tls.ConnectionState{PeerCertificates: []*x509.Certificate{{Subject: pkix.Name{CommonName: "admin"}}}}
				return r
			},
			wantStatus: http.StatusNoContent,
			want:       "anonymous",
		},
		{
			name: "bearer key",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.Header.Set("Authorization", "Bearer ops:s3cret")
				return r
			},
			wantStatus: http.StatusNoContent,
			want:       "api_key:ops",
		},
		{
			name: "separate key headers",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.Header.Set("X-API-Key-ID", "ops")
				r.Header.Set("X-API-Key", "s3cret")
				return r
			},
			wantStatus: http.StatusNoContent,
			want:       "api_key:ops",
		},
		{
			name: "wrong secret",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.Header.Set("Authorization", "Bearer ops:nope")
				return r
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "TM-ADMIN-4010",
		},
		{
			name: "malformed bearer",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.Header.Set("Authorization", "Bearer ops")
				return r
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "TM-ADMIN-4010",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tt.req())

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.want != "" {
				assert.Equal(t, tt.want, rec.Header().Get("X-Principal"))
			}
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, rec.Header().Get("X-Error-Code"))
			}
		})
	}
}

func TestPrincipal_NoKeyAuthenticator(t *testing.T) {
	h := Principal(nil, discardLogger())(principalEcho())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer ops:s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(0.001, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":40000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1").Code)

	rec := send("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "TM-SYS-4290", rec.Header().Get("X-Error-Code"))
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, send("10.0.0.2").Code, "buckets are per client")
}

func TestRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), RequestID(), Recover(discardLogger()))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "TM-SYS-5000", body["code"])
}

func TestAudit_LogsPrincipal(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Chain(principalEcho(),
		RequestID(),
		Audit(log),
		Principal(staticKeys{"ops": "s3cret"}, log),
		capturePrincipal(),
	)

	req := httptest.NewRequest(http.MethodPut, "/_security/api/ssl/http/reloadcerts", nil)
	req.Header.Set("Authorization", "Bearer ops:s3cret")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request completed", entry["msg"])
	assert.Equal(t, "ops", entry["principal"])
	assert.Equal(t, "api_key", entry["principal_source"])
	assert.Equal(t, float64(http.StatusNoContent), entry["status"])
	assert.NotEmpty(t, entry["request_id"])
}

func TestClientIP(t *testing.T) {
	proxies := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	tests := []struct {
		name    string
		trusted []netip.Prefix
		header  map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, nil, "192.0.2.1:5443", "192.0.2.1"},
		{"ipv6", nil, nil, "[::1]:5443", "::1"},
		{"no port", nil, nil, "192.0.2.1", "192.0.2.1"},
		{"forwarded for ignored without trusted proxies", nil,
			map[string]string{"X-Forwarded-For": "203.0.113.7"}, "192.0.2.1:1", "192.0.2.1"},
		{"forwarded for from untrusted peer", proxies,
			map[string]string{"X-Forwarded-For": "203.0.113.7"}, "192.0.2.1:1", "192.0.2.1"},
		{"forwarded for from trusted proxy", proxies,
			map[string]string{"X-Forwarded-For": "203.0.113.7"}, "10.0.0.1:1", "203.0.113.7"},
		{"nearest untrusted hop wins", proxies,
			map[string]string{"X-Forwarded-For": "198.51.100.1, 203.0.113.7, 10.0.0.2"}, "10.0.0.1:1", "203.0.113.7"},
		{"all hops trusted", proxies,
			map[string]string{"X-Forwarded-For": "10.0.0.3, 10.0.0.2"}, "10.0.0.1:1", "10.0.0.3"},
		{"real ip from trusted proxy", proxies,
			map[string]string{"X-Real-IP": "203.0.113.8"}, "10.0.0.1:1", "203.0.113.8"},
		{"real ip from untrusted peer", proxies,
			map[string]string{"X-Real-IP": "203.0.113.8"}, "192.0.2.1:1", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := ClientIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = getClientIP(r)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetClientIP_WithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5443"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, "192.0.2.1", getClientIP(req))
}

func TestRateLimit_ForwardedForCannotRotateBuckets(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), ClientIP(nil), RateLimit(0.001, 2))

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPut, "/_security/api/ssl/transport/reloadcerts", nil)
		req.RemoteAddr = "192.0.2.1:5443"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent,
		http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

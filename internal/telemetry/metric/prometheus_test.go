package metric

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Observe(t *testing.T) {
	r := NewRegistry()

	r.ObserveCertReload("transport", nil)
	r.ObserveCertReload("transport", errors.New("bad pem"))
	r.ObserveFanout(2, 1, 150*time.Millisecond)
	r.ObserveDisconnect(nil)
	r.ObserveDisconnect(errors.New("gone"))
	r.SetClusterMembers(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.CertReloads.WithLabelValues("transport", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.CertReloads.WithLabelValues("transport", ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.FanoutRounds))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.FanoutNodeResults.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.FanoutNodeResults.WithLabelValues(ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.PeerDisconnects.WithLabelValues(ResultFailure)))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.ClusterMembers))
}

func TestRegistry_NilSafe(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ObserveCertReload("http", nil)
		r.ObserveFanout(1, 0, time.Second)
		r.ObserveDisconnect(nil)
		r.SetClusterMembers(1)
	})
}

func TestGlobal(t *testing.T) {
	assert.Same(t, Global(), Global())
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.ObserveCertReload("http", nil)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `tlsmesh_cert_reloads_total{channel="http",result="success"} 1`))
}

// Package metric provides Prometheus metrics for TLSMesh.
package metric

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tlsmesh"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Registry holds all application metrics.
//
// All methods are safe to call on a nil *Registry, which records nothing.
type Registry struct {
	registry *prometheus.Registry

	CertReloads       *prometheus.CounterVec
	FanoutRounds      prometheus.Counter
	FanoutNodeResults *prometheus.CounterVec
	FanoutDuration    prometheus.Histogram
	PeerDisconnects   *prometheus.CounterVec
	ClusterMembers    prometheus.Gauge
}

// NewRegistry creates a registry with all TLSMesh collectors registered,
// plus the Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		CertReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cert_reloads_total",
			Help:      "Local certificate reloads by channel and result.",
		}, []string{"channel", "result"}),
		FanoutRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_rounds_total",
			Help:      "Reload fan-out rounds started by this node.",
		}),
		FanoutNodeResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_node_results_total",
			Help:      "Per-node results of reload fan-out rounds.",
		}, []string{"result"}),
		FanoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fanout_duration_seconds",
			Help:      "Time until every node answered or failed.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		PeerDisconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peer_disconnects_total",
			Help:      "Disconnects from peer nodes by result.",
		}, []string{"result"}),
		ClusterMembers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cluster_members",
			Help:      "Members in the last membership snapshot.",
		}),
	}

	reg.MustRegister(
		r.CertReloads,
		r.FanoutRounds,
		r.FanoutNodeResults,
		r.FanoutDuration,
		r.PeerDisconnects,
		r.ClusterMembers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// Handler returns an HTTP handler for the /metrics endpoint of r.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Handler returns the /metrics handler of the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// ObserveCertReload records a local certificate reload.
func (r *Registry) ObserveCertReload(channel string, err error) {
	if r == nil {
		return
	}
	r.CertReloads.WithLabelValues(channel, result(err)).Inc()
}

// ObserveFanout records a completed fan-out round.
func (r *Registry) ObserveFanout(succeeded, failed int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.FanoutRounds.Inc()
	r.FanoutNodeResults.WithLabelValues(ResultSuccess).Add(float64(succeeded))
	r.FanoutNodeResults.WithLabelValues(ResultFailure).Add(float64(failed))
	r.FanoutDuration.Observe(elapsed.Seconds())
}

// ObserveDisconnect records a disconnect from a peer.
func (r *Registry) ObserveDisconnect(err error) {
	if r == nil {
		return
	}
	r.PeerDisconnects.WithLabelValues(result(err)).Inc()
}

// SetClusterMembers records the size of the membership snapshot.
func (r *Registry) SetClusterMembers(n int) {
	if r == nil {
		return
	}
	r.ClusterMembers.Set(float64(n))
}

func result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

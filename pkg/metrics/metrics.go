// Package metrics exposes benchmark progress as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/eunmann/idxbench/pkg/memdiag"
)

const namespace = "idxbench"

// Metrics owns a private registry so that tests and repeated runs never
// collide on the global one.
type Metrics struct {
	reg        *prometheus.Registry
	ops        *prometheus.CounterVec
	misses     *prometheus.CounterVec
	throughput prometheus.Gauge
	state      prometheus.Gauge
	latency    *prometheus.HistogramVec
}

// New registers the idxbench collectors plus the Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Completed index operations.",
		}, []string{"phase"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "misses_total",
			Help:      "Operations that did not find or affect a record.",
		}, []string{"phase"}),
		throughput: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "throughput_ops",
			Help:      "Operations per second over the last sampling window.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase_state",
			Help:      "Benchmark state: 0 idle, 1 loading, 2 loaded, 3 running, 4 done.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Sampled operation latency.",
			Buckets:   prometheus.ExponentialBuckets(100e-9, 2, 20),
		}, []string{"kind"}),
	}
	m.reg.MustRegister(
		m.ops, m.misses, m.throughput, m.state, m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// SetState records the benchmark state as its ordinal.
func (m *Metrics) SetState(state int) {
	m.state.Set(float64(state))
}

// Window records one sampling window of a phase.
func (m *Metrics) Window(phase string, ops uint64, elapsed time.Duration) {
	m.ops.WithLabelValues(phase).Add(float64(ops))
	if elapsed > 0 {
		m.throughput.Set(float64(ops) / elapsed.Seconds())
	}
}

// Misses adds n missed operations to phase.
func (m *Metrics) Misses(phase string, n uint64) {
	m.misses.WithLabelValues(phase).Add(float64(n))
}

// ObserveLatency records a sampled latency of kind.
func (m *Metrics) ObserveLatency(kind string, d time.Duration) {
	m.latency.WithLabelValues(kind).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Server is the optional HTTP listener for /metrics and, when enabled,
// /debug/pprof/.
type Server struct {
	srv  *http.Server
	ln   net.Listener
	done chan struct{}
}

// Serve starts listening on addr. The listener is bound before Serve
// returns, so Addr is valid immediately.
func Serve(addr string, m *Metrics, pprof bool, log zerolog.Logger) (*Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	if pprof {
		memdiag.RegisterPprof(mux)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics %s: %w", addr, err)
	}

	s := &Server{
		srv:  &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:   ln,
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	log.Info().Str("addr", ln.Addr().String()).Bool("pprof", pprof).Msg("metrics listener started")
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the listener and waits for the serve loop to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	<-s.done
	return err
}

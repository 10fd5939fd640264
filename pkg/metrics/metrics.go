// Package metrics exposes a Prometheus registry and the /metrics,
// /healthz HTTP mux for hodu-plugind (spec §6 "Environment" and
// SPEC_FULL.md's module map), following the same registry-plus-gauges
// shape as the teacher's HealthLogger
// (core/system_health_logging.go), with go-chi/chi/v5 in place of
// net/http's bare ServeMux for the route table.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Recorder holds the gauges/counters a plugin host updates as it
// serves requests.
type Recorder struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestErrors   *prometheus.CounterVec
	activeRequests  prometheus.Gauge
	requestDuration *prometheus.HistogramVec
}

// New builds a Recorder with a fresh, private registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hodu_plugind_requests_total",
			Help: "Total RPC requests handled, by method.",
		}, []string{"method"}),
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hodu_plugind_request_errors_total",
			Help: "Total RPC requests that returned an error, by method and error code.",
		}, []string{"method", "code"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hodu_plugind_active_requests",
			Help: "Number of requests currently being handled.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "hodu_plugind_request_duration_seconds",
			Help: "RPC handler duration, by method.",
		}, []string{"method"}),
	}
	reg.MustRegister(r.requestsTotal, r.requestErrors, r.activeRequests, r.requestDuration)
	return r
}

// Observe records one completed request for the metrics a post-hook
// sees (pkg/pluginrpc.PostHookFunc's signature).
func (r *Recorder) Observe(method string, errCode int, duration time.Duration) {
	r.requestsTotal.WithLabelValues(method).Inc()
	if errCode != 0 {
		r.requestErrors.WithLabelValues(method, strconv.Itoa(errCode)).Inc()
	}
	r.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (r *Recorder) IncActive() { r.activeRequests.Inc() }
func (r *Recorder) DecActive() { r.activeRequests.Dec() }

// Router builds the /metrics + /healthz mux.
func (r *Recorder) Router() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	return mux
}

// Serve starts an HTTP server bound to addr, logging (but not fatally
// exiting on) any ListenAndServe error other than a clean Shutdown.
func (r *Recorder) Serve(addr string, log *logrus.Logger) *http.Server {
	srv := &http.Server{Addr: addr, Handler: r.Router()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server exited")
		}
	}()
	return srv
}

// Shutdown gracefully stops srv.
func Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}

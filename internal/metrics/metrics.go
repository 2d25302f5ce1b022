package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry            *prometheus.Registry
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	FinalizeOutcomes    *prometheus.CounterVec
	SubmissionLatency   prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pos_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		FinalizeOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_finalize_outcomes_total",
			Help: "Finalize attempts by mode and outcome.",
		}, []string{"mode", "outcome"}),
		SubmissionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pos_sale_submission_seconds",
			Help:    "Latency of sale submissions to the backend.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.FinalizeOutcomes,
		m.SubmissionLatency,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveFinalize(mode string, outcome string) {
	m.FinalizeOutcomes.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) ObserveSubmission(d time.Duration) {
	m.SubmissionLatency.Observe(d.Seconds())
}

// Middleware records request counts and latency. route resolves the label for
// a request so path parameters do not explode cardinality.
func (m *Metrics) Middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &StatusRecorder{ResponseWriter: w, Status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			label := r.URL.Path
			if route != nil {
				if name := route(r); name != "" {
					label = name
				}
			}
			m.HTTPRequestsTotal.WithLabelValues(r.Method, label, strconv.Itoa(wrapped.Status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, label).Observe(time.Since(start).Seconds())
		})
	}
}

type StatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *StatusRecorder) WriteHeader(status int) {
	r.Status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *StatusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.Status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *StatusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

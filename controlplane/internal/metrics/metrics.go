// Package metrics exposes Prometheus instrumentation for the control plane.
//
//	captive_heartbeats_total{result}                 known / unknown gateways
//	captive_auth_decisions_total{endpoint,result,reason}
//	captive_counter_reports_total{result}            applied / stale / ignored
//	captive_sessions_issued_total
//	captive_sessions_terminated_total{status,reason}
//	captive_http_request_duration_seconds{method,route,status}
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var Heartbeats = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "captive_heartbeats_total",
	Help: "Gateway heartbeats by result.",
}, []string{"result"})

var AuthDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "captive_auth_decisions_total",
	Help: "Access decisions returned to gateways.",
}, []string{"endpoint", "result", "reason"})

var CounterReports = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "captive_counter_reports_total",
	Help: "Traffic counter reports by outcome.",
}, []string{"result"})

var SessionsIssued = promauto.NewCounter(prometheus.CounterOpts{
	Name: "captive_sessions_issued_total",
	Help: "Sessions issued by the login handler.",
})

var SessionsTerminated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "captive_sessions_terminated_total",
	Help: "Sessions moved to a terminal state.",
}, []string{"status", "reason"})

var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "captive_http_request_duration_seconds",
	Help:    "HTTP request latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route", "status"})

// Decision records one allow/deny answer.
func Decision(endpoint string, allowed bool, reason string) {
	result := "deny"
	if allowed {
		result = "allow"
	}
	AuthDecisions.WithLabelValues(endpoint, result, reason).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request latency labelled by the matched chi route
// pattern rather than the raw path.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

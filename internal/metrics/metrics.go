// Package metrics provides Prometheus metrics for the wizard, the completion
// gateway and report emission.
package metrics

import (
	"context"

	"github.com/ashureev/firstprinciples/internal/gateway"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements gateway.Observer, report.Observer and sessions.Gauge.
type Recorder struct {
	gatewayRequests *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	stepTransitions *prometheus.CounterVec
	reports         *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	rateLimited     prometheus.Counter
}

// NewRecorder registers the service's metrics with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		gatewayRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fp_gateway_requests_total",
				Help: "Completion calls by operation, status and error kind",
			},
			[]string{"operation", "status", "error_kind"},
		),
		gatewayDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fp_gateway_request_duration_seconds",
				Help:    "Duration of completion calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		stepTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fp_step_transitions_total",
				Help: "Wizard transitions by the step entered",
			},
			[]string{"step"},
		),
		reports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fp_reports_total",
				Help: "Emitted session reports by save status",
			},
			[]string{"status"},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fp_active_sessions",
				Help: "Live wizard sessions",
			},
		),
		rateLimited: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fp_rate_limited_total",
				Help: "Requests rejected by the per-user rate limiter",
			},
		),
	}
}

// ObserveExchange records a finished completion call.
func (r *Recorder) ObserveExchange(_ context.Context, ex gateway.Exchange) {
	status := "success"
	errorKind := ""
	if ex.Result.Failed() {
		status = "error"
		errorKind = gateway.KindOf(ex.Result.Err).String()
	}
	op := string(ex.Operation)
	r.gatewayRequests.WithLabelValues(op, status, errorKind).Inc()
	r.gatewayDuration.WithLabelValues(op).Observe(ex.Duration.Seconds())
}

// ObserveReport records one emitted report.
func (r *Recorder) ObserveReport(saved bool) {
	status := "saved"
	if !saved {
		status = "save_failed"
	}
	r.reports.WithLabelValues(status).Inc()
}

// ObserveTransition records entry into step.
func (r *Recorder) ObserveTransition(step string) {
	r.stepTransitions.WithLabelValues(step).Inc()
}

// SetActiveSessions sets the live session gauge.
func (r *Recorder) SetActiveSessions(n int) {
	r.activeSessions.Set(float64(n))
}

// IncRateLimited counts one rejected request.
func (r *Recorder) IncRateLimited() {
	r.rateLimited.Inc()
}

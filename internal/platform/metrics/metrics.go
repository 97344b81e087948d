package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the service. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	SubmissionsTotal   *prometheus.CounterVec
	SolvesTotal        *prometheus.CounterVec
	TokenVerifications *prometheus.CounterVec
	MailTotal          *prometheus.CounterVec
	ScoreboardCache    *prometheus.CounterVec
	JanitorPurged      prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ctf_http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ctf_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		SubmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ctf_submissions_total",
				Help: "Flag submissions by scope and outcome",
			},
			[]string{"scope", "status"},
		),
		SolvesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ctf_solves_total",
				Help: "First-time credited solves",
			},
			[]string{"scope"},
		),
		TokenVerifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ctf_token_verifications_total",
				Help: "Confirm/reset token verifications by result",
			},
			[]string{"purpose", "result"},
		),
		MailTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ctf_mail_total",
				Help: "Outbound mail by result",
			},
			[]string{"result"},
		),
		ScoreboardCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ctf_scoreboard_cache_total",
				Help: "Scoreboard cache lookups",
			},
			[]string{"result"},
		),
		JanitorPurged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ctf_janitor_purged_users_total",
				Help: "Abandoned unverified registrations removed",
			},
		),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SubmissionsTotal,
		m.SolvesTotal,
		m.TokenVerifications,
		m.MailTotal,
		m.ScoreboardCache,
		m.JanitorPurged,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Submission(scope, status string) {
	if m != nil {
		m.SubmissionsTotal.WithLabelValues(scope, status).Inc()
	}
}

func (m *Metrics) Solve(scope string) {
	if m != nil {
		m.SolvesTotal.WithLabelValues(scope).Inc()
	}
}

func (m *Metrics) TokenVerified(purpose, result string) {
	if m != nil {
		m.TokenVerifications.WithLabelValues(purpose, result).Inc()
	}
}

func (m *Metrics) Mail(result string) {
	if m != nil {
		m.MailTotal.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Cache(result string) {
	if m != nil {
		m.ScoreboardCache.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Purged(n int64) {
	if m != nil && n > 0 {
		m.JanitorPurged.Add(float64(n))
	}
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m != nil {
		m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
	}
}

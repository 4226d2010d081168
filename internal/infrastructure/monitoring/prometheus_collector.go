package monitoring

import (
	"time"

	"livetranslate/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Sessions
	sessionsCreatedTotal *prometheus.CounterVec
	sessionsActive       prometheus.Gauge
	sessionDuration      prometheus.Histogram

	// Participants
	participantsJoinedTotal *prometheus.CounterVec
	participantsActive      prometheus.Gauge

	// Roles
	roleTransitionsTotal  *prometheus.CounterVec
	roleResetFailureTotal prometheus.Counter

	// HTTP and event stream
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	eventConnections    prometheus.Gauge
	eventsPublished     *prometheus.CounterVec
}

// NewPrometheusCollector registers the service metrics on reg; nil means the default registerer.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		sessionsCreatedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "livetranslate_sessions_created_total",
			Help: "Total number of sessions created",
		}, []string{"default_lang"}),

		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "livetranslate_sessions_active",
			Help: "Sessions created and not yet ended by this instance",
		}),

		sessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "livetranslate_session_duration_seconds",
			Help:    "Lifetime of ended sessions",
			Buckets: prometheus.ExponentialBuckets(60, 2, 10),
		}),

		participantsJoinedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "livetranslate_participants_joined_total",
			Help: "Total number of session joins",
		}, []string{"language"}),

		participantsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "livetranslate_participants_active",
			Help: "Participants joined and not yet left",
		}),

		roleTransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "livetranslate_role_transitions_total",
			Help: "Role transition attempts by outcome",
		}, []string{"from", "to", "result"}),

		roleResetFailureTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "livetranslate_role_reset_failures_total",
			Help: "Role resets that failed after retries and were left for login repair",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "livetranslate_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "livetranslate_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),

		eventConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "livetranslate_event_connections",
			Help: "Open session event stream connections",
		}),

		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "livetranslate_events_published_total",
			Help: "Session events fanned out to local watchers",
		}, []string{"type"}),
	}
}

func (p *PrometheusCollector) RecordSessionCreated(lang domain.Language) {
	p.sessionsCreatedTotal.WithLabelValues(string(lang)).Inc()
	p.sessionsActive.Inc()
}

func (p *PrometheusCollector) RecordSessionEnded(duration float64) {
	p.sessionsActive.Dec()
	p.sessionDuration.Observe(duration)
}

func (p *PrometheusCollector) RecordParticipantJoined(lang domain.Language) {
	p.participantsJoinedTotal.WithLabelValues(string(lang)).Inc()
	p.participantsActive.Inc()
}

func (p *PrometheusCollector) RecordParticipantLeft() {
	p.participantsActive.Dec()
}

func (p *PrometheusCollector) RecordRoleTransition(from, to domain.UserRole, result string) {
	p.roleTransitionsTotal.WithLabelValues(from.String(), to.String(), result).Inc()
}

func (p *PrometheusCollector) RecordRoleResetFailure() {
	p.roleResetFailureTotal.Inc()
}

func (p *PrometheusCollector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	p.httpRequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	p.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (p *PrometheusCollector) EventConnectionOpened() {
	p.eventConnections.Inc()
}

func (p *PrometheusCollector) EventConnectionClosed() {
	p.eventConnections.Dec()
}

func (p *PrometheusCollector) RecordEventPublished(eventType domain.EventType) {
	p.eventsPublished.WithLabelValues(string(eventType)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

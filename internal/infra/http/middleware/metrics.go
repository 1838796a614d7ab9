package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)

	dripSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drip_sends_total",
			Help: "Total number of drip messages sent",
		},
		[]string{"campaign_type"},
	)

	dripSendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drip_send_failures_total",
			Help: "Total number of drip sends rejected by the transport",
		},
		[]string{"campaign_type"},
	)

	leadsEnrolled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drip_leads_enrolled_total",
			Help: "Total number of leads enrolled into a drip sequence",
		},
		[]string{"campaign_type"},
	)

	dripCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drip_sequences_completed_total",
			Help: "Total number of leads that reached the end of their sequence",
		},
		[]string{"campaign_type"},
	)

	schedulesRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drip_schedules_recovered_total",
			Help: "Total number of timers re-armed at startup recovery",
		},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		activeConnections.Inc()
		defer activeConnections.Dec()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

func RecordDripSend(campaignType string) {
	dripSendsTotal.WithLabelValues(campaignType).Inc()
}

func RecordDripSendFailure(campaignType string) {
	dripSendFailures.WithLabelValues(campaignType).Inc()
}

func RecordLeadEnrolled(campaignType string) {
	leadsEnrolled.WithLabelValues(campaignType).Inc()
}

func RecordDripCompleted(campaignType string) {
	dripCompleted.WithLabelValues(campaignType).Inc()
}

func RecordScheduleRecovered() {
	schedulesRecovered.Inc()
}

// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BusEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_events_dispatched_total",
		Help: "Change notifications dispatched to local subscribers",
	}, []string{"table", "type"})

	NotificationRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admin_notification_refreshes_total",
		Help: "Admin notification count refreshes by outcome",
	}, []string{"outcome"})

	CountQueryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admin_notification_count_errors_total",
		Help: "Failed count queries per tracked table",
	}, []string{"table"})

	ConfigProxyResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "config_proxy_responses_total",
		Help: "Config key proxy responses by status code",
	}, []string{"status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5},
	}, []string{"method", "route", "status"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

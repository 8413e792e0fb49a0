package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	actionRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "importpanel_ckan_action_requests_total",
			Help: "CKAN action calls by action and error kind (empty kind on success)",
		},
		[]string{"action", "kind"},
	)

	actionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "importpanel_ckan_action_duration_seconds",
			Help:    "CKAN action call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	channelEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "importpanel_channel_events_total",
			Help: "Server-pushed events received on the event channel",
		},
		[]string{"event"},
	)

	channelReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "importpanel_channel_reconnects_total",
			Help: "Event channel reconnect attempts",
		},
	)

	panelsMounted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "importpanel_panels_mounted",
			Help: "Currently mounted import status panels",
		},
	)

	logLinesFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "importpanel_log_lines_flushed_total",
			Help: "Log lines moved from the pending queue into rendered panels",
		},
	)
)

// ObserveAction records one CKAN action call.
func ObserveAction(action, kind string, d time.Duration) {
	actionRequestsTotal.WithLabelValues(action, kind).Inc()
	actionDuration.WithLabelValues(action).Observe(d.Seconds())
}

// ChannelEvent counts a received event.
func ChannelEvent(event string) {
	channelEventsTotal.WithLabelValues(event).Inc()
}

// ChannelReconnect counts a reconnect attempt.
func ChannelReconnect() {
	channelReconnectsTotal.Inc()
}

// PanelMounted adjusts the mounted panel gauge by delta.
func PanelMounted(delta int) {
	panelsMounted.Add(float64(delta))
}

// LogLinesFlushed counts lines rendered by a flush.
func LogLinesFlushed(n int) {
	if n > 0 {
		logLinesFlushed.Add(float64(n))
	}
}

// Handler exposes the default registry for gin.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	AuditWrites         *prometheus.CounterVec
	NotificationsQueued *prometheus.CounterVec
	NotificationsSent   *prometheus.CounterVec
	ChecklistsGenerated prometheus.Counter
	VenueTasksReset     prometheus.Counter
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all metrics on reg. Pass prometheus.DefaultRegisterer in main
// and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AuditWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "meetup_audit_writes_total",
			Help: "Audit log writes by outcome",
		}, []string{"outcome"}),
		NotificationsQueued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "meetup_notifications_queued_total",
			Help: "Notification jobs enqueued by channel and outcome",
		}, []string{"channel", "outcome"}),
		NotificationsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "meetup_notifications_delivered_total",
			Help: "Notification deliveries by channel and status",
		}, []string{"channel", "status"}),
		ChecklistsGenerated: f.NewCounter(prometheus.CounterOpts{
			Name: "meetup_sop_checklists_generated_total",
			Help: "Checklists created from SOP templates",
		}),
		VenueTasksReset: f.NewCounter(prometheus.CounterOpts{
			Name: "meetup_sop_venue_tasks_reset_total",
			Help: "Venue confirmation tasks reset after a confirmed venue was unlinked",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "meetup_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meetup_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ObserveAuditWrite counts one audit persistence attempt. Safe on a nil receiver.
func (m *Metrics) ObserveAuditWrite(ok bool) {
	if m == nil {
		return
	}
	m.AuditWrites.WithLabelValues(outcome(ok)).Inc()
}

// ObserveNotificationQueued counts one enqueue attempt. Safe on a nil receiver.
func (m *Metrics) ObserveNotificationQueued(channel string, ok bool) {
	if m == nil {
		return
	}
	m.NotificationsQueued.WithLabelValues(channel, outcome(ok)).Inc()
}

// ObserveNotificationDelivery counts one delivery attempt. Safe on a nil receiver.
func (m *Metrics) ObserveNotificationDelivery(channel, status string) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(channel, status).Inc()
}

// AddChecklistsGenerated counts generated checklists. Safe on a nil receiver.
func (m *Metrics) AddChecklistsGenerated(n int) {
	if m == nil {
		return
	}
	m.ChecklistsGenerated.Add(float64(n))
}

// AddVenueTasksReset counts reset venue confirmation tasks. Safe on a nil receiver.
func (m *Metrics) AddVenueTasksReset(n int) {
	if m == nil {
		return
	}
	m.VenueTasksReset.Add(float64(n))
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

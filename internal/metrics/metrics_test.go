package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveAuditWrite(true)
	m.ObserveAuditWrite(false)
	m.ObserveAuditWrite(false)
	m.AddChecklistsGenerated(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditWrites.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuditWrites.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ChecklistsGenerated))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAuditWrite(true)
		m.ObserveNotificationQueued("email", false)
		m.ObserveNotificationDelivery("discord", "sent")
		m.AddChecklistsGenerated(1)
		m.AddVenueTasksReset(1)
	})
}

func TestMiddlewareCountsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/events/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/events/abc", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/events/:id", "200")))
}

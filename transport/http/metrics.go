package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumenpay/lumenvault/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the server's Prometheus collectors
type Metrics struct {
	requestDuration *prometheus.HistogramVec
	noncesIssued    prometheus.Counter
	verifications   *prometheus.CounterVec
	noncesCleaned   prometheus.Counter
	submissions     *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lumenpay",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests by route and status",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"method", "route", "status"}),
		noncesIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lumenpay",
			Subsystem: "auth",
			Name:      "nonces_issued_total",
			Help:      "Authentication nonces issued",
		}),
		verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumenpay",
			Subsystem: "auth",
			Name:      "verifications_total",
			Help:      "Signature verifications by outcome",
		}, []string{"result"}),
		noncesCleaned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lumenpay",
			Subsystem: "auth",
			Name:      "nonces_cleaned_total",
			Help:      "Expired nonces removed by cleanup",
		}),
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumenpay",
			Subsystem: "wallet",
			Name:      "submissions_total",
			Help:      "Transactions relayed to Horizon by outcome",
		}, []string{"result"}),
	}
}

// Middleware records request latency. Unmatched routes share one label.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) nonceIssued() {
	m.noncesIssued.Inc()
}

func (m *Metrics) verified(err error) {
	result := "ok"
	if err != nil {
		result = core.KindOf(err).String()
	}
	m.verifications.WithLabelValues(result).Inc()
}

func (m *Metrics) cleaned(n int) {
	m.noncesCleaned.Add(float64(n))
}

func (m *Metrics) submitted(err error) {
	result := "ok"
	if err != nil {
		result = core.KindOf(err).String()
	}
	m.submissions.WithLabelValues(result).Inc()
}

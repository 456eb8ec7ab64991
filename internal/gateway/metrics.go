package gateway

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// operationKey はgin.Contextにルーティング済みの操作を格納するキー。
const operationKey = "gateway.operation"

// unmatched はルーティング前に終了したリクエストのラベル値。
const unmatched = "none"

// metrics はゲートウェイのPrometheusメトリクス。
type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	facade   *prometheus.CounterVec
}

// newMetrics はメトリクスを生成する。regがnilの場合は登録しない。
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plexdns",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Counter of API requests by operation and status code.",
		}, []string{"operation", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "plexdns",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Latency of API requests by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		facade: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plexdns",
			Subsystem: "gateway",
			Name:      "facade_errors_total",
			Help:      "Counter of service facade failures by operation.",
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration, m.facade)
	}
	return m
}

// middleware はリクエスト数とレイテンシを記録するGinミドルウェアを返す。
func (m *metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		op := unmatched
		if v, ok := c.Get(operationKey); ok {
			if o, ok := v.(Operation); ok {
				op = o.String()
			}
		}
		m.requests.WithLabelValues(op, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nao1215/plexdns-gateway/pkg/database"
)

// poolCollector は接続プールの統計をPrometheusに公開する。
type poolCollector struct {
	pool  *database.Pool
	open  *prometheus.Desc
	inUse *prometheus.Desc
	idle  *prometheus.Desc
	waits *prometheus.Desc
}

func newPoolCollector(pool *database.Pool) *poolCollector {
	return &poolCollector{
		pool:  pool,
		open:  prometheus.NewDesc("plexdns_db_open_connections", "Number of established connections.", nil, nil),
		inUse: prometheus.NewDesc("plexdns_db_in_use_connections", "Number of connections currently checked out.", nil, nil),
		idle:  prometheus.NewDesc("plexdns_db_idle_connections", "Number of idle connections.", nil, nil),
		waits: prometheus.NewDesc("plexdns_db_wait_count_total", "Total number of connections waited for.", nil, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.open
	ch <- c.inUse
	ch <- c.idle
	ch <- c.waits
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stats()
	ch <- prometheus.MustNewConstMetric(c.open, prometheus.GaugeValue, float64(s.OpenConnections))
	ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(s.InUse))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.Idle))
	ch <- prometheus.MustNewConstMetric(c.waits, prometheus.CounterValue, float64(s.WaitCount))
}

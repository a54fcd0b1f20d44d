package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStatsCollector exposes pgxpool statistics as Prometheus gauges.
type PoolStatsCollector struct {
	pool *pgxpool.Pool

	acquiredConns *prometheus.Desc
	idleConns     *prometheus.Desc
	totalConns    *prometheus.Desc
	maxConns      *prometheus.Desc
	acquireCount  *prometheus.Desc
	emptyAcquire  *prometheus.Desc
}

// NewPoolStatsCollector builds a collector for pool, labeled for dbName.
func NewPoolStatsCollector(pool *pgxpool.Pool, dbName string) *PoolStatsCollector {
	labels := prometheus.Labels{"database": dbName}
	return &PoolStatsCollector{
		pool: pool,
		acquiredConns: prometheus.NewDesc("pgxpool_acquired_connections",
			"Connections currently acquired from the pool.", nil, labels),
		idleConns: prometheus.NewDesc("pgxpool_idle_connections",
			"Idle connections in the pool.", nil, labels),
		totalConns: prometheus.NewDesc("pgxpool_total_connections",
			"Total connections in the pool.", nil, labels),
		maxConns: prometheus.NewDesc("pgxpool_max_connections",
			"Maximum pool size.", nil, labels),
		acquireCount: prometheus.NewDesc("pgxpool_acquire_total",
			"Cumulative connection acquires.", nil, labels),
		emptyAcquire: prometheus.NewDesc("pgxpool_empty_acquire_total",
			"Acquires that had to wait for a free connection.", nil, labels),
	}
}

func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquiredConns
	ch <- c.idleConns
	ch <- c.totalConns
	ch <- c.maxConns
	ch <- c.acquireCount
	ch <- c.emptyAcquire
}

func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.acquiredConns, prometheus.GaugeValue, float64(stats.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(stats.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.totalConns, prometheus.GaugeValue, float64(stats.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(stats.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.acquireCount, prometheus.CounterValue, float64(stats.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.emptyAcquire, prometheus.CounterValue, float64(stats.EmptyAcquireCount()))
}

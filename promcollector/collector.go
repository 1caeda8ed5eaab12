// Package promcollector exports measurement metrics to Prometheus.
package promcollector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/perfdefs"
	"github.com/hupe1980/perfdefs/definitions"
)

// Collector implements perfdefs.MetricsCollector with Prometheus metrics.
type Collector struct {
	defines      *prometheus.CounterVec
	opLatency    *prometheus.HistogramVec
	exported     prometheus.Counter
	ranks        prometheus.Gauge
	archiveBytes prometheus.Counter
}

var _ perfdefs.MetricsCollector = (*Collector)(nil)

// New creates a collector and registers its metrics with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		defines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perfdefs_definitions_total",
			Help: "Define calls by kind and outcome (created or deduplicated)",
		}, []string{"kind", "outcome"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "perfdefs_operation_latency_seconds",
			Help:    "Latency of collective operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "status"}),
		exported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "perfdefs_exported_definitions_total",
			Help: "Local definitions contributed to unification",
		}),
		ranks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "perfdefs_ranks",
			Help: "Number of processes in the last unification",
		}),
		archiveBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "perfdefs_archive_bytes_total",
			Help: "Bytes written to the archive",
		}),
	}

	for _, col := range []prometheus.Collector{c.defines, c.opLatency, c.exported, c.ranks, c.archiveBytes} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordDefine implements perfdefs.MetricsCollector.
func (c *Collector) RecordDefine(k definitions.Kind, created bool) {
	outcome := "deduplicated"
	if created {
		outcome = "created"
	}
	c.defines.WithLabelValues(k.String(), outcome).Inc()
}

// RecordClockSync implements perfdefs.MetricsCollector.
func (c *Collector) RecordClockSync(mode string, d time.Duration, err error) {
	c.opLatency.WithLabelValues("clocksync_"+mode, status(err)).Observe(d.Seconds())
}

// RecordUnification implements perfdefs.MetricsCollector.
func (c *Collector) RecordUnification(ranks, exported int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("unify", status(err)).Observe(d.Seconds())
	c.ranks.Set(float64(ranks))
	if err == nil {
		c.exported.Add(float64(exported))
	}
}

// RecordArchive implements perfdefs.MetricsCollector.
func (c *Collector) RecordArchive(bytes int64, d time.Duration, err error) {
	c.opLatency.WithLabelValues("archive", status(err)).Observe(d.Seconds())
	if err == nil {
		c.archiveBytes.Add(float64(bytes))
	}
}

// Package promstats exports frame cache activity as Prometheus metrics.
package promstats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/user/framecache/pkg/framecache"
)

// StatsSource provides cache statistics snapshots.
type StatsSource interface {
	Stats() framecache.Stats
}

// Collector implements prometheus.Collector over a StatsSource. Each scrape
// reads one consistent snapshot.
type Collector struct {
	source StatsSource

	hits          *prometheus.Desc
	misses        *prometheus.Desc
	loads         *prometheus.Desc
	loadErrors    *prometheus.Desc
	staleDiscards *prometheus.Desc
	evictions     *prometheus.Desc
	entries       *prometheus.Desc
	sizeBytes     *prometheus.Desc
	maxBytes      *prometheus.Desc
	queued        *prometheus.Desc
	hitRatio      *prometheus.Desc
}

// NewCollector creates a collector whose metric names start with namespace.
func NewCollector(source StatsSource, namespace string) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", name), help, nil, nil)
	}
	return &Collector{
		source:        source,
		hits:          desc("hits_total", "Lookups answered from the cache."),
		misses:        desc("misses_total", "Lookups that found no cached frame."),
		loads:         desc("loads_total", "Frames decoded in the background and inserted."),
		loadErrors:    desc("load_errors_total", "Background decodes that failed."),
		staleDiscards: desc("stale_discards_total", "Decoded frames dropped because the cache was cleared meanwhile."),
		evictions:     desc("evictions_total", "Frames evicted to stay within the byte budget."),
		entries:       desc("entries", "Frames currently cached."),
		sizeBytes:     desc("size_bytes", "Bytes held by cached frames."),
		maxBytes:      desc("max_bytes", "Byte budget of the cache."),
		queued:        desc("queued_requests", "Decode requests waiting for the loader."),
		hitRatio:      desc("hit_ratio", "Hits divided by lookups since the last reset."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.loads
	ch <- c.loadErrors
	ch <- c.staleDiscards
	ch <- c.evictions
	ch <- c.entries
	ch <- c.sizeBytes
	ch <- c.maxBytes
	ch <- c.queued
	ch <- c.hitRatio
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()

	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(c.loads, prometheus.CounterValue, float64(s.Loads))
	ch <- prometheus.MustNewConstMetric(c.loadErrors, prometheus.CounterValue, float64(s.LoadErrors))
	ch <- prometheus.MustNewConstMetric(c.staleDiscards, prometheus.CounterValue, float64(s.StaleDiscards))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions))
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Entries))
	ch <- prometheus.MustNewConstMetric(c.sizeBytes, prometheus.GaugeValue, float64(s.SizeBytes))
	ch <- prometheus.MustNewConstMetric(c.maxBytes, prometheus.GaugeValue, float64(s.MaxBytes))
	ch <- prometheus.MustNewConstMetric(c.queued, prometheus.GaugeValue, float64(s.Queued))
	ch <- prometheus.MustNewConstMetric(c.hitRatio, prometheus.GaugeValue, s.HitRatio())
}

var _ prometheus.Collector = (*Collector)(nil)

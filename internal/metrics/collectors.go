package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WorkingSet reports what the batch store currently holds
type WorkingSet interface {
	Stats() (batches int, rows int)
}

// WorkingSetCollector exports the size of the in-memory batch working set on scrape
type WorkingSetCollector struct {
	source WorkingSet

	batches *prometheus.Desc
	rows    *prometheus.Desc
}

// NewWorkingSetCollector creates a collector reading from source
func NewWorkingSetCollector(source WorkingSet) *WorkingSetCollector {
	return &WorkingSetCollector{
		source: source,
		batches: prometheus.NewDesc(
			"chainscope_batches_held",
			"Number of uploaded batches held in memory",
			nil, nil,
		),
		rows: prometheus.NewDesc(
			"chainscope_rows_held",
			"Number of snapshot rows held across all batches",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *WorkingSetCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.batches
	ch <- c.rows
}

// Collect implements prometheus.Collector
func (c *WorkingSetCollector) Collect(ch chan<- prometheus.Metric) {
	batches, rows := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.batches, prometheus.GaugeValue, float64(batches))
	ch <- prometheus.MustNewConstMetric(c.rows, prometheus.GaugeValue, float64(rows))
}

// RegisterWorkingSet registers a working set collector with the default registry
func RegisterWorkingSet(source WorkingSet) error {
	return prometheus.Register(NewWorkingSetCollector(source))
}

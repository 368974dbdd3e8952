// Package metrics exposes batch progress as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/smartcontractkit/stacks-batcher/batch"
)

// Collector counts recorded entries and nonce resyncs. It implements batch.Observer.
type Collector struct {
	items    *prometheus.CounterVec
	resyncs  prometheus.Counter
	attempts prometheus.Histogram
}

var _ batch.Observer = (*Collector)(nil)

// NewCollector creates the batch metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		items: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stacks_batcher_items_total",
				Help: "Total number of batch items by operation kind and result category",
			},
			[]string{"kind", "status"},
		),
		resyncs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stacks_batcher_nonce_resyncs_total",
				Help: "Total number of nonce resyncs after nonce conflicts",
			},
		),
		attempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stacks_batcher_submit_attempts",
				Help:    "Number of submission attempts per attempted item",
				Buckets: prometheus.LinearBuckets(1, 1, 6),
			},
		),
	}

	for _, m := range []prometheus.Collector{c.items, c.resyncs, c.attempts} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// EntryRecorded counts the entry under its category.
func (c *Collector) EntryRecorded(entry batch.Entry) {
	c.items.WithLabelValues(string(entry.Request.Kind), string(entry.Category())).Inc()
	if entry.Outcome.Attempts > 0 {
		c.attempts.Observe(float64(entry.Outcome.Attempts))
	}
}

// NonceResynced counts one resync.
func (c *Collector) NonceResynced(string, uint64) {
	c.resyncs.Inc()
}

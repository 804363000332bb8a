package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records cart-engine operation outcomes.
type CartMetrics struct {
	flushDelay      *prometheus.HistogramVec
	mutationSuccess *prometheus.CounterVec
	mutationFailure *prometheus.CounterVec
	enrichmentDrops prometheus.Counter
	syncOutcomes    *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	flushDelay := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_mutation_flush_delay_seconds",
		Help:    "Delay between the first edit of a burst and the dispatched write.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	mutationSuccess := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutation_success",
		Help: "Successful cart line writes by operation.",
	}, []string{"op"})
	mutationFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutation_failure",
		Help: "Rolled-back cart line writes by operation.",
	}, []string{"op"})
	enrichmentDrops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_enrichment_dropped_lines",
		Help: "Guest cart lines dropped because catalog enrichment failed.",
	})
	syncOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_sync_lines",
		Help: "Guest-to-server sync line outcomes.",
	}, []string{"outcome"})
	reg.MustRegister(flushDelay, mutationSuccess, mutationFailure, enrichmentDrops, syncOutcomes)
	return &CartMetrics{
		flushDelay:      flushDelay,
		mutationSuccess: mutationSuccess,
		mutationFailure: mutationFailure,
		enrichmentDrops: enrichmentDrops,
		syncOutcomes:    syncOutcomes,
	}
}

// ObserveFlushDelay records how long a burst waited before its write.
func (c *CartMetrics) ObserveFlushDelay(op string, delay time.Duration) {
	if c == nil || c.flushDelay == nil {
		return
	}
	c.flushDelay.WithLabelValues(normalizeLabel(op)).Observe(delay.Seconds())
}

// IncMutationSuccess increments the success counter for the named operation.
func (c *CartMetrics) IncMutationSuccess(op string) {
	if c == nil || c.mutationSuccess == nil {
		return
	}
	c.mutationSuccess.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncMutationFailure increments the rollback counter for the named operation.
func (c *CartMetrics) IncMutationFailure(op string) {
	if c == nil || c.mutationFailure == nil {
		return
	}
	c.mutationFailure.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncEnrichmentDrop counts a guest line dropped from the read model.
func (c *CartMetrics) IncEnrichmentDrop() {
	if c == nil || c.enrichmentDrops == nil {
		return
	}
	c.enrichmentDrops.Inc()
}

// IncSyncOutcome counts one migrated line by outcome ("ok" or "failed").
func (c *CartMetrics) IncSyncOutcome(outcome string) {
	if c == nil || c.syncOutcomes == nil {
		return
	}
	c.syncOutcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

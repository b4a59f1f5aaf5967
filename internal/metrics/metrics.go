// Package metrics exposes Prometheus collectors for reconciliation runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	pairsCompared     prometheus.Counter
	pairErrors        prometheus.Counter
	candidatesCreated *prometheus.CounterVec
	adjudications     *prometheus.CounterVec
	decisions         *prometheus.CounterVec
	batchDuration     *prometheus.HistogramVec
}

// New creates and registers the collectors on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,
		pairsCompared: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contactsync_pairs_compared_total",
			Help: "Total number of profile/contact pairs scored",
		}),
		pairErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contactsync_pair_errors_total",
			Help: "Total number of pairs skipped because of an error",
		}),
		candidatesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contactsync_candidates_created_total",
			Help: "Total number of duplicate candidates created",
		}, []string{"confidence"}),
		adjudications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contactsync_adjudications_total",
			Help: "Total number of AI adjudication requests",
		}, []string{"result"}), // result: available, unavailable
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contactsync_decisions_total",
			Help: "Total number of candidate decisions",
		}, []string{"status"}),
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contactsync_batch_duration_seconds",
			Help:    "Time taken by a reconciliation batch",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{
		m.pairsCompared, m.pairErrors, m.candidatesCreated,
		m.adjudications, m.decisions, m.batchDuration,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) PairCompared() {
	if m != nil {
		m.pairsCompared.Inc()
	}
}

func (m *Metrics) PairFailed() {
	if m != nil {
		m.pairErrors.Inc()
	}
}

func (m *Metrics) CandidateCreated(confidence string) {
	if m != nil {
		m.candidatesCreated.WithLabelValues(confidence).Inc()
	}
}

func (m *Metrics) Adjudicated(available bool) {
	if m == nil {
		return
	}
	result := "unavailable"
	if available {
		result = "available"
	}
	m.adjudications.WithLabelValues(result).Inc()
}

func (m *Metrics) Decided(status string) {
	if m != nil {
		m.decisions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) BatchFinished(outcome string, d time.Duration) {
	if m != nil {
		m.batchDuration.WithLabelValues(outcome).Observe(d.Seconds())
	}
}

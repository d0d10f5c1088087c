package enrich

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports fetcher activity. A nil *Metrics is a valid no-op.
type Metrics struct {
	fetches  *prometheus.CounterVec
	duration prometheus.Histogram
	inflight prometheus.Gauge
	memoHits prometheus.Counter
}

// NewMetrics registers the enrichment collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "secboard",
			Subsystem: "enrich",
			Name:      "fetch_total",
			Help:      "Enrichment fetches by outcome (success, error, timeout).",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "secboard",
			Subsystem: "enrich",
			Name:      "fetch_seconds",
			Help:      "Latency of single enrichment fetches.",
			Buckets:   prometheus.DefBuckets,
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "secboard",
			Subsystem: "enrich",
			Name:      "inflight",
			Help:      "Enrichment fetches currently in flight.",
		}),
		memoHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "secboard",
			Subsystem: "enrich",
			Name:      "memo_hits_total",
			Help:      "Enrich calls answered from the memoized id set.",
		}),
	}
	for _, c := range []prometheus.Collector{m.fetches, m.duration, m.inflight, m.memoHits} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) begin() {
	if m == nil {
		return
	}
	m.inflight.Inc()
}

func (m *Metrics) end(start time.Time, err error) {
	if m == nil {
		return
	}
	m.inflight.Dec()
	m.duration.Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		m.fetches.WithLabelValues("success").Inc()
	case errors.Is(err, ErrFetchTimeout):
		m.fetches.WithLabelValues("timeout").Inc()
	default:
		m.fetches.WithLabelValues("error").Inc()
	}
}

func (m *Metrics) memoHit() {
	if m == nil {
		return
	}
	m.memoHits.Inc()
}

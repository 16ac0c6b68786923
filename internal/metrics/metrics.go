// Package metrics records what the tree models ask of their backend and how
// their shared entity caches perform.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives model and cache measurements. Implementations must be
// safe for concurrent use.
type Recorder interface {
	// ObserveRequest counts a completed backend request of kind and op.
	ObserveRequest(kind, op string, success bool)
	// SetPending reports how many requests of kind and op await a result.
	SetPending(kind, op string, n int)
	// ObserveCache counts an entity cache lookup.
	ObserveCache(kind string, hit bool)
	// ObserveStale counts items marked stale after resynchronization gave up.
	ObserveStale(kind string)
}

// Noop discards every measurement.
type Noop struct{}

func (Noop) ObserveRequest(string, string, bool) {}
func (Noop) SetPending(string, string, int)      {}
func (Noop) ObserveCache(string, bool)           {}
func (Noop) ObserveStale(string)                 {}

// OrNoop returns r, or Noop when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return Noop{}
	}
	return r
}

// Prometheus exports measurements as Prometheus collectors.
type Prometheus struct {
	requests *prometheus.CounterVec
	pending  *prometheus.GaugeVec
	cache    *prometheus.CounterVec
	stale    *prometheus.CounterVec
}

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "treeview",
			Name:      "backend_requests_total",
			Help:      "Completed backend requests by entity kind, operation and result.",
		}, []string{"kind", "op", "result"}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "treeview",
			Name:      "backend_requests_pending",
			Help:      "Backend requests awaiting a result.",
		}, []string{"kind", "op"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "treeview",
			Name:      "entity_cache_lookups_total",
			Help:      "Entity cache lookups by result.",
		}, []string{"kind", "result"}),
		stale: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "treeview",
			Name:      "stale_items_total",
			Help:      "Items marked stale after resynchronization attempts ran out.",
		}, []string{"kind"}),
	}

	for _, c := range []prometheus.Collector{p.requests, p.pending, p.cache, p.stale} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) ObserveRequest(kind, op string, success bool) {
	result := "error"
	if success {
		result = "success"
	}
	p.requests.WithLabelValues(kind, op, result).Inc()
}

func (p *Prometheus) SetPending(kind, op string, n int) {
	p.pending.WithLabelValues(kind, op).Set(float64(n))
}

func (p *Prometheus) ObserveCache(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cache.WithLabelValues(kind, result).Inc()
}

func (p *Prometheus) ObserveStale(kind string) {
	p.stale.WithLabelValues(kind).Inc()
}

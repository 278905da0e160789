package cache

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a point-in-time snapshot of the cache counters. HitRatio is
// derived from hits and misses and recomputed after every recorded lookup.
type Metrics struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRatio  float64 `json:"hit_ratio"`
	LocalKeys int64   `json:"local_keys"`
	Evictions int64   `json:"evictions"`
	GetOps    int64   `json:"get_ops"`
	SetOps    int64   `json:"set_ops"`
	DeleteOps int64   `json:"delete_ops"`
}

// Recorder tracks the cache's monotonic counters. Counters are process-wide
// and reset only on explicit request. When constructed with a registerer the
// counters are also exported for operational dashboards.
type Recorder struct {
	hits      atomic.Int64
	misses    atomic.Int64
	localKeys atomic.Int64
	evictions atomic.Int64
	getOps    atomic.Int64
	setOps    atomic.Int64
	deleteOps atomic.Int64

	promHits      prometheus.Counter
	promMisses    prometheus.Counter
	promEvictions prometheus.Counter
	promHitRatio  prometheus.Gauge
	promLocalSize prometheus.Gauge
}

// NewRecorder creates a metrics recorder. reg may be nil, in which case the
// prometheus collectors are created but not registered anywhere.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		promHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cache",
			Name:      "hits_total",
			Help:      "Number of lookups satisfied by either tier",
		}),
		promMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cache",
			Name:      "misses_total",
			Help:      "Number of lookups satisfied by neither tier",
		}),
		promEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cache",
			Name:      "local_evictions_total",
			Help:      "Number of local entries removed by expiry or capacity eviction",
		}),
		promHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cache",
			Name:      "hit_ratio",
			Help:      "hits / (hits + misses) since start or last reset",
		}),
		promLocalSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cache",
			Name:      "local_size",
			Help:      "Entries currently held by the local store",
		}),
	}

	if reg != nil {
		reg.MustRegister(r.promHits, r.promMisses, r.promEvictions, r.promHitRatio, r.promLocalSize)
	}

	return r
}

// Hit records a lookup satisfied by either tier
func (r *Recorder) Hit() {
	r.hits.Add(1)
	r.promHits.Inc()
	r.updateHitRatio()
}

// Miss records a lookup satisfied by neither tier
func (r *Recorder) Miss() {
	r.misses.Add(1)
	r.promMisses.Inc()
	r.updateHitRatio()
}

// Eviction records n local entries removed by expiry or capacity pressure
func (r *Recorder) Eviction(n int) {
	r.evictions.Add(int64(n))
	r.promEvictions.Add(float64(n))
}

// LocalKey records a key newly observed by the local store
func (r *Recorder) LocalKey() {
	r.localKeys.Add(1)
}

// GetOp records one read operation
func (r *Recorder) GetOp() { r.getOps.Add(1) }

// SetOp records one write operation
func (r *Recorder) SetOp() { r.setOps.Add(1) }

// DeleteOp records one delete operation
func (r *Recorder) DeleteOp() { r.deleteOps.Add(1) }

// ObserveLocalSize updates the exported local store size gauge
func (r *Recorder) ObserveLocalSize(n int) {
	r.promLocalSize.Set(float64(n))
}

// Snapshot returns the current counter values
func (r *Recorder) Snapshot() Metrics {
	hits := r.hits.Load()
	misses := r.misses.Load()
	return Metrics{
		Hits:      hits,
		Misses:    misses,
		HitRatio:  hitRatio(hits, misses),
		LocalKeys: r.localKeys.Load(),
		Evictions: r.evictions.Load(),
		GetOps:    r.getOps.Load(),
		SetOps:    r.setOps.Load(),
		DeleteOps: r.deleteOps.Load(),
	}
}

// Reset zeroes every counter. The prometheus counters are monotonic by
// contract and are left alone; only the derived gauge is recomputed.
func (r *Recorder) Reset() {
	r.hits.Store(0)
	r.misses.Store(0)
	r.localKeys.Store(0)
	r.evictions.Store(0)
	r.getOps.Store(0)
	r.setOps.Store(0)
	r.deleteOps.Store(0)
	r.promHitRatio.Set(0)
}

func (r *Recorder) updateHitRatio() {
	r.promHitRatio.Set(hitRatio(r.hits.Load(), r.misses.Load()))
}

func hitRatio(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

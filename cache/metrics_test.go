package cache

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder_Counters(t *testing.T) {
	r := NewRecorder(nil)

	r.Hit()
	r.Hit()
	r.Hit()
	r.Miss()
	r.Eviction(2)
	r.LocalKey()
	r.GetOp()
	r.SetOp()
	r.DeleteOp()

	m := r.Snapshot()
	assert.Equal(t, int64(3), m.Hits)
	assert.Equal(t, int64(1), m.Misses)
	assert.InDelta(t, 0.75, m.HitRatio, 0.001)
	assert.Equal(t, int64(2), m.Evictions)
	assert.Equal(t, int64(1), m.LocalKeys)
	assert.Equal(t, int64(1), m.GetOps)
	assert.Equal(t, int64(1), m.SetOps)
	assert.Equal(t, int64(1), m.DeleteOps)
}

func TestRecorder_HitRatioWithNoLookups(t *testing.T) {
	r := NewRecorder(nil)
	assert.Zero(t, r.Snapshot().HitRatio)
}

func TestRecorder_Reset(t *testing.T) {
	r := NewRecorder(nil)

	r.Hit()
	r.Miss()
	r.Eviction(5)
	r.Reset()

	m := r.Snapshot()
	assert.Zero(t, m.Hits)
	assert.Zero(t, m.Misses)
	assert.Zero(t, m.HitRatio)
	assert.Zero(t, m.Evictions)
}

func TestRecorder_PrometheusExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.Hit()
	r.Hit()
	r.Miss()
	r.Eviction(3)
	r.ObserveLocalSize(42)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.promHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.promMisses))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.promEvictions))
	assert.InDelta(t, 2.0/3.0, testutil.ToFloat64(r.promHitRatio), 0.001)
	assert.Equal(t, 42.0, testutil.ToFloat64(r.promLocalSize))
}

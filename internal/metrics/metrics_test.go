package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_Collectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	require.NoError(t, err)

	p.ObserveRequest("tag", "add", true)
	p.ObserveRequest("tag", "add", false)
	p.ObserveRequest("tag", "add", false)
	p.SetPending("notebook", "update", 3)
	p.ObserveCache("tag", true)
	p.ObserveStale("notebook")

	assert.InDelta(t, 1, testutil.ToFloat64(p.requests.WithLabelValues("tag", "add", "success")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(p.requests.WithLabelValues("tag", "add", "error")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(p.pending.WithLabelValues("notebook", "update")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.cache.WithLabelValues("tag", "hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.stale.WithLabelValues("notebook")), 0)
}

func TestNewPrometheus_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg)
	require.NoError(t, err)

	_, err = NewPrometheus(reg)
	assert.Error(t, err)
}

func TestOrNoop(t *testing.T) {
	assert.Equal(t, Noop{}, OrNoop(nil))

	p := &Prometheus{}
	assert.Same(t, p, OrNoop(p))
}

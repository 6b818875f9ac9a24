package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveReconstruction(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveReconstruction(OutcomeOK, 3, 10*time.Millisecond)
	m.ObserveReconstruction(OutcomeOK, 2, time.Millisecond)
	m.ObserveReconstruction(OutcomeError, 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReconstructionsTotal.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconstructionsTotal.WithLabelValues(OutcomeError)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.SnapshotsReplayed))
}

func TestObserveQuery(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveQuery("", 2, 1)
	m.ObserveQuery("NO_ANCHOR", 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("NO_ANCHOR")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WarningsTotal))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveReconstruction(OutcomeOK, 1, time.Second)
		m.ObserveQuery("", 1, 1)
	})
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

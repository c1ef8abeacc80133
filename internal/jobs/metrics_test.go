package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue sums the samples of a gathered counter whose labels match.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	assert.NoError(t, m.Track("quotes:expire_stale").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("quotes:expire_stale").End(boom), boom)

	assert.Equal(t, 1.0, counterValue(t, reg, "optica_jobs_total", map[string]string{"status": "success"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "optica_jobs_total", map[string]string{"status": "failure"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "optica_jobs_failures_total", nil))
}

func TestCountersIgnoreEmptyBatches(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.AddExpiredQuotes(3, 0)
	m.AddExpiredQuotes(3, 4)
	m.AddProvisioned("ok", 2)
	m.AddProvisioned("failed", 0)

	assert.Equal(t, 4.0, counterValue(t, reg, "optica_quotes_expired_total", map[string]string{"tenant": "3"}))
	assert.Equal(t, 2.0, counterValue(t, reg, "optica_finance_provisioned_tenants_total", nil))

	var nilMetrics *Metrics
	nilMetrics.AddExpiredQuotes(1, 1)
	assert.NoError(t, nilMetrics.Track("x").End(nil))
}

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	before := float64(time.Now().Unix())

	m.Observe("voucher-expiry", 250*time.Millisecond, nil)
	m.Observe("voucher-expiry", time.Second, errors.New("db down"))
	m.Observe("", time.Millisecond, nil)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	assert.Equal(t, 1.0, counterValue(t, mfs, "storefront_cron_runs_total", map[string]string{"job": "voucher-expiry", "outcome": "success"}))
	assert.Equal(t, 1.0, counterValue(t, mfs, "storefront_cron_runs_total", map[string]string{"job": "voucher-expiry", "outcome": "failure"}))
	assert.Equal(t, 1.0, counterValue(t, mfs, "storefront_cron_runs_total", map[string]string{"job": "unknown", "outcome": "success"}))
	assert.InDelta(t, 1.25, histogramSum(t, mfs, "storefront_cron_duration_seconds", map[string]string{"job": "voucher-expiry"}), 1e-9)
	assert.GreaterOrEqual(t, gaugeValue(t, mfs, "storefront_cron_last_success_timestamp_seconds", map[string]string{"job": "voucher-expiry"}), before)
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.Observe("x", time.Second, nil)
	NewCronJobMetrics(nil).Observe("x", time.Second, errors.New("boom"))
}

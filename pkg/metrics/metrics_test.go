package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// sample finds the series of family name whose labels include want.
func sample(t *testing.T, mfs []*dto.MetricFamily, name string, want map[string]string) *dto.Metric {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if v, ok := want[lp.GetName()]; ok && v == lp.GetValue() {
					matched++
				}
			}
			if matched == len(want) {
				return m
			}
		}
	}
	require.Failf(t, "series not found", "%s %v", name, want)
	return nil
}

func counterValue(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	return sample(t, mfs, name, labels).GetCounter().GetValue()
}

func gaugeValue(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	return sample(t, mfs, name, labels).GetGauge().GetValue()
}

func histogramSum(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	return sample(t, mfs, name, labels).GetHistogram().GetSampleSum()
}

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintMetricsSnapshotReadsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	cycles := prometheus.NewCounter(prometheus.CounterOpts{Name: "modflow_cycles_total"})
	connected := prometheus.NewGauge(prometheus.GaugeOpts{Name: "modflow_controller_connected"})
	reg.MustRegister(cycles, connected)
	cycles.Add(4)
	connected.Set(1)

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	defer srv.Close()

	require.NoError(t, printMetricsSnapshot(context.Background(), srv.Client(), srv.URL))

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, 4.0, firstValue(families["modflow_cycles_total"]))
	assert.Equal(t, 1.0, firstValue(families["modflow_controller_connected"]))
	assert.Zero(t, firstValue(families["modflow_cycles_skipped_total"]))
}

func TestPrintMetricsSnapshotRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	assert.Error(t, printMetricsSnapshot(context.Background(), srv.Client(), srv.URL))
}

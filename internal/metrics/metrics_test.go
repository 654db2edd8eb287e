package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NotNil(t, reg)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	// Should have go runtime metrics at minimum
	assert.NotEmpty(t, mfs)
}

func TestRegistry_RecordFetch(t *testing.T) {
	reg := NewRegistry()

	reg.RecordFetch("yahoo", 250, nil, 0.4)
	reg.RecordFetch("yahoo", 0, errors.New("timeout"), 1.2)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.fetchesTotal.WithLabelValues("yahoo", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.fetchesTotal.WithLabelValues("yahoo", "error")))
	assert.Equal(t, 250.0, testutil.ToFloat64(reg.barsLoaded.WithLabelValues("yahoo")))
}

func TestRegistry_PipelineMetrics(t *testing.T) {
	reg := NewRegistry()

	reg.ObserveStep("rsi_14", 0.002)
	reg.RecordPipelineRun(nil, 33)
	reg.RecordPipelineRun(errors.New("boom"), 0)

	assert.Equal(t, 33.0, testutil.ToFloat64(reg.rowsDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.pipelineRuns.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.pipelineRuns.WithLabelValues("error")))
	assert.Equal(t, 1, testutil.CollectAndCount(reg.indicatorDuration))
}

func TestRegistry_BacktestMetrics(t *testing.T) {
	reg := NewRegistry()

	reg.RecordSignal("long")
	reg.RecordSignal("long")
	reg.RecordBacktest("success", 0.05)
	reg.RecordTrade("long", 0.03)
	reg.RecordTrade("short", -0.01)
	reg.RecordTrade("short", 0)
	reg.SetTotalReturn("AAPL", 0.12)

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.signalsGenerated.WithLabelValues("long")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.backtestsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.tradesTotal.WithLabelValues("long", "win")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.tradesTotal.WithLabelValues("short", "loss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.tradesTotal.WithLabelValues("short", "flat")))
	assert.Equal(t, 0.12, testutil.ToFloat64(reg.lastTotalReturn.WithLabelValues("AAPL")))
}

func TestRegistry_WriteTextfile(t *testing.T) {
	reg := NewRegistry()
	reg.RecordBacktest("success", 0.5)

	path := filepath.Join(t.TempDir(), "quantlab.prom")
	require.NoError(t, reg.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "quantlab_backtests_total"))
}

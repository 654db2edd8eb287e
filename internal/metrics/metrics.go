package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// Data metrics
	barsLoaded    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	fetchesTotal  *prometheus.CounterVec

	// Pipeline metrics
	indicatorDuration *prometheus.HistogramVec
	pipelineRuns      *prometheus.CounterVec
	rowsDropped       prometheus.Counter

	// Backtest metrics
	signalsGenerated *prometheus.CounterVec
	backtestsTotal   *prometheus.CounterVec
	backtestDuration prometheus.Histogram
	tradesTotal      *prometheus.CounterVec
	lastTotalReturn  *prometheus.GaugeVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{Registry: reg}

	r.barsLoaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantlab_bars_loaded_total",
			Help: "Total number of bars loaded from data sources",
		},
		[]string{"source"},
	)
	r.fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quantlab_fetch_duration_seconds",
			Help:    "Data source fetch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
	r.fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantlab_fetches_total",
			Help: "Total number of data source fetches",
		},
		[]string{"source", "status"},
	)

	r.indicatorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quantlab_indicator_duration_seconds",
			Help:    "Indicator step compute duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"step"},
	)
	r.pipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantlab_pipeline_runs_total",
			Help: "Total number of indicator pipeline runs",
		},
		[]string{"status"},
	)
	r.rowsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quantlab_pipeline_rows_dropped_total",
			Help: "Total number of warm-up rows trimmed by the pipeline",
		},
	)

	r.signalsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantlab_signals_generated_total",
			Help: "Total number of signals generated",
		},
		[]string{"action"},
	)
	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantlab_backtests_total",
			Help: "Total number of backtests",
		},
		[]string{"status"},
	)
	r.backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quantlab_backtest_duration_seconds",
			Help:    "Backtest duration in seconds",
			Buckets: []float64{.001, .01, .1, 1, 5, 10, 30},
		},
	)
	r.tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantlab_trades_total",
			Help: "Total number of closed trades",
		},
		[]string{"side", "outcome"},
	)
	r.lastTotalReturn = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quantlab_backtest_total_return",
			Help: "Total return of the most recent backtest per symbol",
		},
		[]string{"symbol"},
	)

	reg.MustRegister(r.barsLoaded)
	reg.MustRegister(r.fetchDuration)
	reg.MustRegister(r.fetchesTotal)
	reg.MustRegister(r.indicatorDuration)
	reg.MustRegister(r.pipelineRuns)
	reg.MustRegister(r.rowsDropped)
	reg.MustRegister(r.signalsGenerated)
	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.tradesTotal)
	reg.MustRegister(r.lastTotalReturn)

	return r
}

// RecordFetch records a data source fetch.
func (r *Registry) RecordFetch(source string, bars int, err error, duration float64) {
	r.fetchesTotal.WithLabelValues(source, statusOf(err)).Inc()
	r.fetchDuration.WithLabelValues(source).Observe(duration)
	if err == nil {
		r.barsLoaded.WithLabelValues(source).Add(float64(bars))
	}
}

// ObserveStep records how long an indicator step took.
func (r *Registry) ObserveStep(step string, duration float64) {
	r.indicatorDuration.WithLabelValues(step).Observe(duration)
}

// RecordPipelineRun records a pipeline run and the rows it trimmed.
func (r *Registry) RecordPipelineRun(err error, dropped int) {
	r.pipelineRuns.WithLabelValues(statusOf(err)).Inc()
	if dropped > 0 {
		r.rowsDropped.Add(float64(dropped))
	}
}

// RecordSignal records a generated signal.
func (r *Registry) RecordSignal(action string) {
	r.signalsGenerated.WithLabelValues(action).Inc()
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordTrade records a closed trade.
func (r *Registry) RecordTrade(side string, ret float64) {
	r.tradesTotal.WithLabelValues(side, outcomeOf(ret)).Inc()
}

// SetTotalReturn sets the latest total return for a symbol.
func (r *Registry) SetTotalReturn(symbol string, ret float64) {
	r.lastTotalReturn.WithLabelValues(symbol).Set(ret)
}

// WriteTextfile writes all gathered metrics in the text exposition format,
// suitable for the node_exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func outcomeOf(ret float64) string {
	switch {
	case ret > 0:
		return "win"
	case ret < 0:
		return "loss"
	default:
		return "flat"
	}
}

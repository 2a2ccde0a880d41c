package worker

import (
	"net/http"
	"time"

	"github.com/dunamismax/rasterflow/internal/raster"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry             *prometheus.Registry
	jobsTotal            *prometheus.CounterVec
	jobDuration          *prometheus.HistogramVec
	activeJobs           prometheus.Gauge
	decodeTotal          *prometheus.CounterVec
	decodeDuration       *prometheus.HistogramVec
	gateWait             prometheus.Histogram
	outputsTotal         *prometheus.CounterVec
	pixelsProcessedTotal prometheus.Counter
	bytesSavedTotal      prometheus.Counter
	computeTimeMSTotal   prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rasterflow_worker_jobs_total",
			Help: "Total worker jobs by source type and final status.",
		}, []string{"source_type", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rasterflow_worker_job_duration_seconds",
			Help:    "Total processing duration for each worker job.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source_type", "status"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rasterflow_worker_active_jobs",
			Help: "Current number of active processing jobs in the worker.",
		}),
		decodeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rasterflow_decode_total",
			Help: "Bounded decodes by outcome (ok, malformed_data, memory_exhausted, invalid_constraints).",
		}, []string{"outcome"}),
		decodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rasterflow_decode_duration_seconds",
			Help:    "Time spent decoding while holding the decode gate.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		gateWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rasterflow_decode_gate_wait_seconds",
			Help:    "Time spent waiting to acquire the process-wide decode gate.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		outputsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rasterflow_worker_outputs_total",
			Help: "Total encoded outputs emitted by the worker by format.",
		}, []string{"format"}),
		pixelsProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rasterflow_usage_pixels_processed_total",
			Help: "Total output pixels produced across all successful jobs.",
		}),
		bytesSavedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rasterflow_usage_bytes_saved_total",
			Help: "Total bytes saved across all successful jobs.",
		}),
		computeTimeMSTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rasterflow_usage_compute_time_ms_total",
			Help: "Total compute time in milliseconds across successful jobs.",
		}),
	}

	registry.MustRegister(
		m.jobsTotal,
		m.jobDuration,
		m.activeJobs,
		m.decodeTotal,
		m.decodeDuration,
		m.gateWait,
		m.outputsTotal,
		m.pixelsProcessedTotal,
		m.bytesSavedTotal,
		m.computeTimeMSTotal,
	)
	return m
}

// observeBudget exports the raster budget occupancy as gauges.
func (m *metrics) observeBudget(budget *raster.Budget) {
	if budget == nil {
		return
	}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "rasterflow_raster_budget_in_use_bytes",
			Help: "Bytes currently reserved by live rasters and decode buffers.",
		}, func() float64 { return float64(budget.InUse()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "rasterflow_raster_budget_limit_bytes",
			Help: "Configured raster byte budget; zero means unlimited.",
		}, func() float64 { return float64(budget.Limit()) }),
	)
}

func (m *metrics) GateWait(d time.Duration) {
	m.gateWait.Observe(d.Seconds())
}

func (m *metrics) DecodeFinished(outcome string, d time.Duration) {
	m.decodeTotal.WithLabelValues(outcome).Inc()
	m.decodeDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "chargekpi_"

	resultSuccess = "success"
	resultError   = "error"

	cacheHit  = "hit"
	cacheMiss = "miss"

	sourceUpload = "upload"
	sourceURL    = "url"
)

var (
	registerOnce sync.Once

	loadTotal   *prometheus.CounterVec
	loadLatency *prometheus.HistogramVec
	loadErrors  *prometheus.CounterVec
	loadCache   *prometheus.CounterVec

	sessionRows *prometheus.CounterVec

	viewTotal   *prometheus.CounterVec
	viewLatency *prometheus.HistogramVec
	emptyViews  prometheus.Counter

	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec
)

// Init registers pipeline metrics with the default registry.
func Init(logger *zap.Logger) {
	registerOnce.Do(func() {
		loadTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "load_total",
				Help: "Total workbook loads by source and result",
			},
			[]string{"source", "result"},
		)
		loadLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "load_latency_seconds",
				Help:    "Workbook load and normalize latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source", "result"},
		)
		loadErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "load_errors_total",
				Help: "Total workbook load errors by reason",
			},
			[]string{"reason"},
		)
		loadCache = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "load_cache_total",
				Help: "Parsed workbook cache lookups by result",
			},
			[]string{"result"},
		)

		sessionRows = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "session_rows_total",
				Help: "Normalized session rows by outcome",
			},
			[]string{"outcome"},
		)

		viewTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "view_total",
				Help: "Total dashboard view computations by result",
			},
			[]string{"result"},
		)
		viewLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "view_latency_seconds",
				Help:    "Dashboard view latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		emptyViews = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "view_empty_total",
				Help: "Dashboard views whose filter matched no sessions",
			},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total KPI report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "KPI report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			loadTotal,
			loadLatency,
			loadErrors,
			loadCache,
			sessionRows,
			viewTotal,
			viewLatency,
			emptyViews,
			reportExportTotal,
			reportExportLatency,
		)

		if logger != nil {
			logger.Debug("metrics registered", zap.String("prefix", metricPrefix))
		}
	})
}

// ObserveLoad records workbook load duration and result.
func ObserveLoad(source, result string, duration time.Duration) {
	if source == "" {
		source = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if loadTotal != nil {
		loadTotal.WithLabelValues(source, result).Inc()
	}
	if loadLatency != nil {
		loadLatency.WithLabelValues(source, result).Observe(duration.Seconds())
	}
}

// IncLoadError increments the load error counter.
func IncLoadError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if loadErrors != nil {
		loadErrors.WithLabelValues(reason).Inc()
	}
}

// IncLoadCache records a parsed workbook cache lookup.
func IncLoadCache(hit bool) {
	result := cacheMiss
	if hit {
		result = cacheHit
	}
	if loadCache != nil {
		loadCache.WithLabelValues(result).Inc()
	}
}

// AddSessionRows adds count rows under outcome.
func AddSessionRows(outcome string, count int) {
	if count <= 0 {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	if sessionRows != nil {
		sessionRows.WithLabelValues(outcome).Add(float64(count))
	}
}

// ObserveView records dashboard view latency and result.
func ObserveView(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if viewTotal != nil {
		viewTotal.WithLabelValues(result).Inc()
	}
	if viewLatency != nil {
		viewLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncEmptyView counts a view with no matching sessions.
func IncEmptyView() {
	if emptyViews != nil {
		emptyViews.Inc()
	}
}

// ObserveReportExport records export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	SourceUpload = sourceUpload
	SourceURL    = sourceURL

	RowsValid     = "valid"
	RowsInvalid   = "invalid"
	RowsAnomalous = "anomalous"
	RowsCoerced   = "coerced"
)

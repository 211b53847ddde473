package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "compliance_"

	IngestResultSuccess = "success"
	IngestResultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	classifiedTotal *prometheus.CounterVec
	classifyErrors  *prometheus.CounterVec

	alertEventsTotal *prometheus.CounterVec

	escalationStagesTotal  *prometheus.CounterVec
	escalationSkippedTotal *prometheus.CounterVec

	notifyDeliveriesTotal *prometheus.CounterVec

	incidentCreatesTotal *prometheus.CounterVec

	rollupTotal   *prometheus.CounterVec
	rollupLatency *prometheus.HistogramVec

	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec

	staleSweepTotal prometheus.Counter
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total reading ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total reading ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Reading ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		classifiedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "readings_classified_total",
				Help: "Total readings classified by condition",
			},
			[]string{"condition"},
		)
		classifyErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "classify_errors_total",
				Help: "Total classification errors by reason",
			},
			[]string{"reason"},
		)

		alertEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_events_total",
				Help: "Total alert lifecycle events by type",
			},
			[]string{"event"},
		)

		escalationStagesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "escalation_stages_total",
				Help: "Total escalation stages fired by stage",
			},
			[]string{"stage"},
		)
		escalationSkippedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "escalation_stages_skipped_total",
				Help: "Total escalation stages skipped by reason",
			},
			[]string{"reason"},
		)

		notifyDeliveriesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notify_deliveries_total",
				Help: "Total notification deliveries by result",
			},
			[]string{"result"},
		)

		incidentCreatesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "incident_creates_total",
				Help: "Total incident create calls by result",
			},
			[]string{"result"},
		)

		rollupTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "score_rollup_total",
				Help: "Total score rollup calculations by result",
			},
			[]string{"result"},
		)
		rollupLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "score_rollup_latency_seconds",
				Help:    "Score rollup latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total compliance report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Compliance report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		staleSweepTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "stale_sweeps_total",
				Help: "Total stale-sensor sweeps executed",
			},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			classifiedTotal,
			classifyErrors,
			alertEventsTotal,
			escalationStagesTotal,
			escalationSkippedTotal,
			notifyDeliveriesTotal,
			incidentCreatesTotal,
			rollupTotal,
			rollupLatency,
			reportExportTotal,
			reportExportLatency,
			staleSweepTotal,
		)

		registerDBMetrics(db, logger)
	})
}

// ObserveIngest records an ingest request with latency.
func ObserveIngest(result string, elapsed time.Duration) {
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(elapsed.Seconds())
	}
}

// IncIngestError increments ingest error counters.
func IncIngestError(reason string) {
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// IncClassified increments classification outcome counters.
func IncClassified(condition string) {
	if condition == "" {
		condition = "unknown"
	}
	if classifiedTotal != nil {
		classifiedTotal.WithLabelValues(condition).Inc()
	}
}

// IncClassifyError increments classification error counters.
func IncClassifyError(reason string) {
	if classifyErrors != nil {
		classifyErrors.WithLabelValues(reason).Inc()
	}
}

// IncAlertEvent increments alert lifecycle counters.
func IncAlertEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if alertEventsTotal != nil {
		alertEventsTotal.WithLabelValues(event).Inc()
	}
}

// IncEscalationStage increments stage-fired counters.
func IncEscalationStage(stage string) {
	if escalationStagesTotal != nil {
		escalationStagesTotal.WithLabelValues(stage).Inc()
	}
}

// IncEscalationSkipped increments skipped-stage counters. Precondition
// failures are the expected common case, tracked but never logged as errors.
func IncEscalationSkipped(reason string) {
	if escalationSkippedTotal != nil {
		escalationSkippedTotal.WithLabelValues(reason).Inc()
	}
}

// IncNotifyDelivery increments notification delivery counters.
func IncNotifyDelivery(result string) {
	if notifyDeliveriesTotal != nil {
		notifyDeliveriesTotal.WithLabelValues(result).Inc()
	}
}

// IncIncidentCreate increments incident creation counters.
func IncIncidentCreate(result string) {
	if incidentCreatesTotal != nil {
		incidentCreatesTotal.WithLabelValues(result).Inc()
	}
}

// ObserveRollup records a score rollup with latency.
func ObserveRollup(result string, elapsed time.Duration) {
	if rollupTotal != nil {
		rollupTotal.WithLabelValues(result).Inc()
	}
	if rollupLatency != nil {
		rollupLatency.WithLabelValues(result).Observe(elapsed.Seconds())
	}
}

// ObserveReportExport records a report export with latency.
func ObserveReportExport(format, result string, elapsed time.Duration) {
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(elapsed.Seconds())
	}
}

// IncStaleSweep increments the stale sweep counter.
func IncStaleSweep() {
	if staleSweepTotal != nil {
		staleSweepTotal.Inc()
	}
}

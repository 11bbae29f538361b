package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	caseEngine = "case_engine"

	statusTransitionsTotal = "status_transitions_total"
	assignmentsTotal       = "assignments_total"
	subRecordUpdatesTotal  = "subrecord_updates_total"

	// Labels
	fromStatusLabel       = "from"
	toStatusLabel         = "to"
	assignmentModeLabel   = "mode"
	assignmentResultLabel = "result"
	subRecordKindLabel    = "kind"
	subRecordStatusLabel  = "status"
)

const (
	AssignmentResultSuccess  = "success"
	AssignmentResultConflict = "conflict"

	AssignmentModeAssign = "assign"
	AssignmentModeClaim  = "claim"
	AssignmentModeAuto   = "auto"

	SubRecordKindDocument = "document"
	SubRecordKindJobEntry = "job_entry"
)

var statusTransitionsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: caseEngine,
		Name:      statusTransitionsTotal,
		Help:      "number of accepted case status transitions",
	},
	[]string{fromStatusLabel, toStatusLabel},
)

var assignmentsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: caseEngine,
		Name:      assignmentsTotal,
		Help:      "number of assignment attempts partitioned by mode (assign, claim, auto) and result",
	},
	[]string{assignmentModeLabel, assignmentResultLabel},
)

var subRecordUpdatesTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: caseEngine,
		Name:      subRecordUpdatesTotal,
		Help:      "number of document and job entry verification updates",
	},
	[]string{subRecordKindLabel, subRecordStatusLabel},
)

func IncreaseStatusTransitionsMetric(from, to string) {
	statusTransitionsTotalMetric.With(prometheus.Labels{
		fromStatusLabel: from,
		toStatusLabel:   to,
	}).Inc()
}

func IncreaseAssignmentsMetric(mode, result string) {
	assignmentsTotalMetric.With(prometheus.Labels{
		assignmentModeLabel:   mode,
		assignmentResultLabel: result,
	}).Inc()
}

func IncreaseSubRecordUpdatesMetric(kind, status string) {
	subRecordUpdatesTotalMetric.With(prometheus.Labels{
		subRecordKindLabel:   kind,
		subRecordStatusLabel: status,
	}).Inc()
}

type PrometheusMetricsHandler struct{}

func NewPrometheusMetricsHandler() *PrometheusMetricsHandler {
	return &PrometheusMetricsHandler{}
}

func (h *PrometheusMetricsHandler) Handler() http.Handler {
	return promhttp.Handler()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(statusTransitionsTotalMetric)
	prometheus.MustRegister(assignmentsTotalMetric)
	prometheus.MustRegister(subRecordUpdatesTotalMetric)
}

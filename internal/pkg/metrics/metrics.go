package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "attendance"

var (
	checkInCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "check_ins_total",
		Help:      "Accepted check-ins by work mode and status.",
	}, []string{"work_mode", "status"})

	checkOutCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "check_outs_total",
		Help:      "Completed check-outs, split by partial-day flag.",
	}, []string{"partial_day"})

	rejectionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "rejections_total",
		Help:      "Attendance mutations rejected by a business rule, by error code.",
	}, []string{"operation", "code"})

	statusMismatchCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "client_status_mismatch_total",
		Help:      "Check-ins whose client-provided status disagreed with the server's.",
	})

	breakCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "server",
		Name:      "breaks_total",
		Help:      "Break transitions by event (start, end) and final status.",
	}, []string{"event", "status"})

	staleClosedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "stale_sessions_closed_total",
		Help:      "Open sessions from previous days closed by the sweeper.",
	})

	jobRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "runs_total",
		Help:      "Scheduled job executions by job name and result.",
	}, []string{"job", "result"})

	publishErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "publish_errors_total",
		Help:      "Domain events that could not be published, by event type.",
	}, []string{"event_type"})

	locationCacheCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "location_cache",
		Name:      "lookups_total",
		Help:      "Location cache lookups by result (hit, miss, error).",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		checkInCounter,
		checkOutCounter,
		rejectionCounter,
		statusMismatchCounter,
		breakCounter,
		staleClosedCounter,
		jobRunCounter,
		publishErrorCounter,
		locationCacheCounter,
	)
}

func RecordCheckIn(workMode, status string) {
	checkInCounter.WithLabelValues(workMode, status).Inc()
}

func RecordCheckOut(partialDay bool) {
	label := "false"
	if partialDay {
		label = "true"
	}
	checkOutCounter.WithLabelValues(label).Inc()
}

func RecordRejection(operation, code string) {
	rejectionCounter.WithLabelValues(operation, code).Inc()
}

func RecordStatusMismatch() {
	statusMismatchCounter.Inc()
}

func RecordBreak(event, status string) {
	breakCounter.WithLabelValues(event, status).Inc()
}

func RecordStaleClosed(n int) {
	staleClosedCounter.Add(float64(n))
}

func RecordJobRun(job string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	jobRunCounter.WithLabelValues(job, result).Inc()
}

func RecordPublishError(eventType string) {
	publishErrorCounter.WithLabelValues(eventType).Inc()
}

func RecordLocationCache(result string) {
	locationCacheCounter.WithLabelValues(result).Inc()
}

// RegisterStreamGauge exposes the number of open event streams.
func RegisterStreamGauge(count func() int) error {
	return prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "open_streams",
		Help:      "Currently connected event-stream subscribers.",
	}, func() float64 { return float64(count()) }))
}

package planner

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	RunDuration        *prometheus.HistogramVec
	TasksTotal         *prometheus.CounterVec
	TaskDuration       *prometheus.HistogramVec
	ReallocationsTotal *prometheus.CounterVec
	SummaryConfidence  prometheus.Histogram
	SubmitsTotal       *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_runs_total",
			Help: "Total triage runs by final status.",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sift_run_duration_seconds",
			Help:    "Duration of triage runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s .. ~204s
		}, []string{"status"}),
		TasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_tasks_total",
			Help: "Total analysis tasks by type and outcome.",
		}, []string{"task_type", "outcome"}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sift_task_duration_seconds",
			Help:    "Duration of analysis tasks in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms .. ~102s
		}, []string{"task_type"}),
		ReallocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_reallocations_total",
			Help: "Total task reallocations by reason.",
		}, []string{"reason"}),
		SummaryConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sift_summary_confidence",
			Help:    "Overall confidence of completed triage runs.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0.0 .. 1.0
		}),
		SubmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sift_submits_total",
			Help: "Total incident submissions by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.TasksTotal,
		m.TaskDuration,
		m.ReallocationsTotal,
		m.SummaryConfidence,
		m.SubmitsTotal,
	)

	return m
}

// Hooks returns planner hooks that increment the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnTask: func(taskType string, success bool, duration float64) {
			outcome := "success"
			if !success {
				outcome = "failure"
			}
			m.TasksTotal.WithLabelValues(taskType, outcome).Inc()
			m.TaskDuration.WithLabelValues(taskType).Observe(duration)
		},
		OnReallocation: func(reason string) {
			m.ReallocationsTotal.WithLabelValues(reason).Inc()
		},
		OnComplete: func(status string, duration float64, confidence float64) {
			m.RunsTotal.WithLabelValues(status).Inc()
			m.RunDuration.WithLabelValues(status).Observe(duration)
			if status == "complete" {
				m.SummaryConfidence.Observe(confidence)
			}
		},
	}
}

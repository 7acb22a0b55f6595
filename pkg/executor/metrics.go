package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cambium-dev/cambium/internal/build"
)

var (
	executionsStartedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "executions_started_total",
		Help:      "Number of plan executions started",
	})

	executionsFinishedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "executions_finished_total",
		Help:      "Number of plan executions finished, by terminal state",
	}, []string{"state"})

	stepsExecutedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "steps_executed_total",
		Help:      "Number of plan steps completed across all executions",
	})

	budgetRejectionsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "budget_rejections_total",
		Help:      "Number of memory budget admissions denied",
	})

	executionDurationHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: build.ProjectName,
		Name:      "execution_duration_ms",
		Help:      "Wall-clock duration of successful plan executions",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000},
	})
)

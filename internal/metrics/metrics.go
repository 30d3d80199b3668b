// Package metrics exposes Prometheus instrumentation for the sampling workers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Task outcome labels for TasksTotal.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	TasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "video_sampler_tasks_total",
		Help: "Total number of sampling tasks finished, by status",
	}, []string{"status"})

	TaskFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "video_sampler_task_failures_total",
		Help: "Total number of failed sampling tasks, by error kind",
	}, []string{"kind"})

	SamplesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "video_sampler_samples_written_total",
		Help: "Total number of PNG samples written across all tasks",
	})

	TaskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "video_sampler_task_duration_seconds",
		Help:    "Wall time of one sampling task",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "video_sampler_active_workers",
		Help: "Number of workers currently executing a task",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "video_sampler_queue_depth",
		Help: "Number of tasks waiting in the queue",
	})
)

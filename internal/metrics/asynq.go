package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	taskTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumebuilder",
			Subsystem: "tasks",
			Name:      "processed_total",
			Help:      "后台任务处理次数，result 取 ok / retry / dropped。",
		},
		[]string{"task_type", "result"},
	)

	taskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "resumebuilder",
			Subsystem: "tasks",
			Name:      "duration_seconds",
			Help:      "后台任务单次执行耗时（秒）。全表迁移可能持续数分钟。",
			Buckets:   []float64{0.1, 1, 5, 15, 60, 300, 900},
		},
		[]string{"task_type"},
	)

	taskInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "resumebuilder",
			Subsystem: "tasks",
			Name:      "in_progress",
			Help:      "当前正在执行的后台任务数量。",
		},
		[]string{"task_type"},
	)
)

// AsynqMetricsMiddleware 记录后台任务的执行结果与耗时。
func AsynqMetricsMiddleware() asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			taskType := task.Type()
			taskInProgress.WithLabelValues(taskType).Inc()
			defer taskInProgress.WithLabelValues(taskType).Dec()

			start := time.Now()
			err := next.ProcessTask(ctx, task)
			taskDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
			taskTotal.WithLabelValues(taskType, taskResult(err)).Inc()
			return err
		})
	}
}

// taskResult 区分会被重试的失败与标记为 SkipRetry 直接丢弃的失败。
func taskResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, asynq.SkipRetry):
		return "dropped"
	default:
		return "retry"
	}
}

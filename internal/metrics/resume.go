package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enrichmentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumebuilder",
			Subsystem: "enrichment",
			Name:      "uploads_total",
			Help:      "头像托管请求总数，按结果分类。",
		},
		[]string{"result"},
	)

	enrichmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "resumebuilder",
			Subsystem: "enrichment",
			Name:      "upload_duration_seconds",
			Help:      "头像托管耗时分布（秒）。",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
	)

	migratedResumesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumebuilder",
			Subsystem: "migration",
			Name:      "resumes_total",
			Help:      "技能字段迁移处理的简历数量，按结果分类。",
		},
		[]string{"result"},
	)
)

// ObserveEnrichment 记录一次头像托管的结果与耗时。
func ObserveEnrichment(result string, seconds float64) {
	enrichmentTotal.WithLabelValues(result).Inc()
	enrichmentDuration.Observe(seconds)
}

// AddMigrated 累加技能迁移计数，result 取 migrated / skipped / conflict。
func AddMigrated(result string, n int) {
	if n <= 0 {
		return
	}
	migratedResumesTotal.WithLabelValues(result).Add(float64(n))
}

// Handler 暴露 Prometheus 抓取端点。
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

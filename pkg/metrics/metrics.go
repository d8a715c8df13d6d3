// Package metrics 授权核心的Prometheus指标
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 授权核心指标
type Metrics struct {
	// 关联关系变更
	MutationsTotal *prometheus.CounterVec
	// 策略存储变更
	PolicyMutationsTotal *prometheus.CounterVec
	// 事务已提交但策略同步失败
	PolicyDivergenceTotal *prometheus.CounterVec

	// 对账
	SweepRunsTotal *prometheus.CounterVec
	SweepDuration  prometheus.Histogram

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics 创建并注册全部指标
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		MutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_mutations_total",
				Help: "Total number of relation rows inserted or deleted",
			},
			[]string{"relation", "op"},
		),
		PolicyMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_policy_mutations_total",
				Help: "Total number of policy tuples added or removed",
			},
			[]string{"op"},
		),
		PolicyDivergenceTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_policy_divergence_total",
				Help: "Total number of committed changes whose policy step failed",
			},
			[]string{"operation"},
		),
		SweepRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_sweep_runs_total",
				Help: "Total number of policy sweeps",
			},
			[]string{"status"},
		),
		SweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "authz_sweep_duration_seconds",
				Help:    "Policy sweep duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authz_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authz_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	registry.MustRegister(
		m.MutationsTotal,
		m.PolicyMutationsTotal,
		m.PolicyDivergenceTotal,
		m.SweepRunsTotal,
		m.SweepDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// RecordMutations 记录关联关系的增删数量
func (m *Metrics) RecordMutations(relation string, added, removed int) {
	if added > 0 {
		m.MutationsTotal.WithLabelValues(relation, "insert").Add(float64(added))
	}
	if removed > 0 {
		m.MutationsTotal.WithLabelValues(relation, "delete").Add(float64(removed))
	}
}

// RecordPolicyMutations 记录策略的增删数量
func (m *Metrics) RecordPolicyMutations(added, removed int) {
	if added > 0 {
		m.PolicyMutationsTotal.WithLabelValues("add").Add(float64(added))
	}
	if removed > 0 {
		m.PolicyMutationsTotal.WithLabelValues("remove").Add(float64(removed))
	}
}

// RecordDivergence 记录一次策略同步失败
func (m *Metrics) RecordDivergence(operation string) {
	m.PolicyDivergenceTotal.WithLabelValues(operation).Inc()
}

// RecordSweep 记录一次对账
func (m *Metrics) RecordSweep(err error, elapsed time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.SweepRunsTotal.WithLabelValues(status).Inc()
	m.SweepDuration.Observe(elapsed.Seconds())
}

// Middleware HTTP请求指标，path使用路由模板避免高基数
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler /metrics 接口
func Handler(gatherer prometheus.Gatherer) gin.HandlerFunc {
	h := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

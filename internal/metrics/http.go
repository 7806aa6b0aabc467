package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/beego/beego/v2/server/web/context"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpReqTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contesthub",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpReqDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "contesthub",
			Name:      "http_request_duration_ms",
			Help:      "HTTP request duration in ms",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"path", "method"},
	)
)

// HTTPMetricsFilter 记录请求开始时间
func HTTPMetricsFilter(ctx *context.Context) {
	ctx.Input.SetData("_metrics_start", time.Now())
}

// HTTPMetricsAfter 在响应完成后记录耗时与状态码
// path 使用路由模式（如 /contest/:id），避免 id 造成标签膨胀
func HTTPMetricsAfter(ctx *context.Context) {
	start, _ := ctx.Input.GetData("_metrics_start").(time.Time)
	if start.IsZero() {
		return
	}
	path := "unmatched"
	if p := ctx.Input.GetData("RouterPattern"); p != nil {
		path = fmt.Sprint(p)
	}
	method := ctx.Input.Method()
	status := ctx.ResponseWriter.Status
	if status == 0 {
		status = 200
	}
	httpReqDuration.WithLabelValues(path, method).Observe(float64(time.Since(start).Milliseconds()))
	httpReqTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
}

// Package metrics 封装 VictoriaMetrics 指标，统一命名前缀 feedline_
package metrics

import (
	"fmt"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
	"github.com/gin-gonic/gin"
)

// FanoutTasks 记录一次扇出写入的任务结果（result 取 ok / error）
func FanoutTasks(op, result string, n int) {
	vm.GetOrCreateCounter(fmt.Sprintf(`feedline_fanout_tasks_total{op=%q,result=%q}`, op, result)).Add(n)
}

// FanoutDuration 一次扇出（所有任务 join 完）的耗时
func FanoutDuration(op string, d time.Duration) {
	vm.GetOrCreateHistogram(fmt.Sprintf(`feedline_fanout_duration_seconds{op=%q}`, op)).Update(d.Seconds())
}

// FanoutWidth 一次扇出涉及的时间线数量
func FanoutWidth(op string, n int) {
	vm.GetOrCreateHistogram(fmt.Sprintf(`feedline_fanout_timelines{op=%q}`, op)).Update(float64(n))
}

// Notifications 通知投递结果（sent / dropped / error）
func Notifications(result string) {
	vm.GetOrCreateCounter(fmt.Sprintf(`feedline_notifications_total{result=%q}`, result)).Inc()
}

// NotifyLatency 入队到投递完成的耗时
func NotifyLatency(d time.Duration) {
	vm.GetOrCreateHistogram(`feedline_notify_latency_seconds`).Update(d.Seconds())
}

// HTTPRequest 请求计数与耗时
func HTTPRequest(route string, status int, d time.Duration) {
	vm.GetOrCreateCounter(fmt.Sprintf(`feedline_http_requests_total{route=%q,status="%d"}`, route, status)).Inc()
	vm.GetOrCreateHistogram(fmt.Sprintf(`feedline_http_request_duration_seconds{route=%q}`, route)).Update(d.Seconds())
}

// RealtimeJoined / RealtimeLeft 维护当前 SSE 连接数
func RealtimeJoined() { vm.GetOrCreateCounter(`feedline_realtime_clients`).Inc() }
func RealtimeLeft()   { vm.GetOrCreateCounter(`feedline_realtime_clients`).Dec() }

// Handler 暴露 Prometheus 文本格式
func Handler(c *gin.Context) {
	c.Header("Content-Type", "text/plain; version=0.0.4")
	vm.WritePrometheus(c.Writer, true)
}

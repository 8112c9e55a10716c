package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailtaskhub_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailtaskhub_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 任务指标
	TasksSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailtaskhub_tasks_submitted_total",
			Help: "Total number of tasks submitted",
		},
		[]string{"type"},
	)

	TasksFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailtaskhub_tasks_finished_total",
			Help: "Total number of tasks reaching a terminal status",
		},
		[]string{"type", "status"},
	)

	TaskExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailtaskhub_task_execution_duration_seconds",
			Help:    "Task execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 900},
		},
		[]string{"type"},
	)

	TasksWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailtaskhub_tasks_waiting",
			Help: "Number of tasks waiting for a worker",
		},
	)

	TasksInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailtaskhub_tasks_in_progress",
			Help: "Number of tasks currently executing",
		},
	)

	// 死信指标
	DeadLettersStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailtaskhub_dead_letters_stored_total",
			Help: "Total number of events stored as dead letters",
		},
		[]string{"group"},
	)

	RedeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailtaskhub_redeliveries_total",
			Help: "Total number of dead letter redelivery attempts",
		},
		[]string{"group", "outcome"},
	)

	// 重建索引指标
	ReindexedMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailtaskhub_reindexed_messages_total",
			Help: "Total number of messages reprocessed by reindexing tasks",
		},
		[]string{"outcome"},
	)

	// 数据库连接池指标
	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailtaskhub_db_connections_in_use",
			Help: "Number of database connections in use",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailtaskhub_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	DBConnectionsMax = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mailtaskhub_db_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 错误指标
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailtaskhub_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "type"},
	)
)

// RecordHTTPRequest 记录 HTTP 请求
func RecordHTTPRequest(method, path string, status int, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordTaskSubmitted 记录任务提交
func RecordTaskSubmitted(taskType string) {
	TasksSubmittedTotal.WithLabelValues(taskType).Inc()
	TasksWaiting.Inc()
}

// RecordTaskStarted 记录任务开始执行
func RecordTaskStarted() {
	TasksWaiting.Dec()
	TasksInProgress.Inc()
}

// RecordTaskCancelledWhileWaiting 记录排队中被取消的任务
func RecordTaskCancelledWhileWaiting(taskType string) {
	TasksWaiting.Dec()
	TasksFinishedTotal.WithLabelValues(taskType, "cancelled").Inc()
}

// RecordTaskFinished 记录任务进入终态
func RecordTaskFinished(taskType, status string, duration float64) {
	TasksInProgress.Dec()
	TasksFinishedTotal.WithLabelValues(taskType, status).Inc()
	if duration > 0 {
		TaskExecutionDuration.WithLabelValues(taskType).Observe(duration)
	}
}

// RecordDeadLetterStored 记录一条死信
func RecordDeadLetterStored(group string) {
	DeadLettersStoredTotal.WithLabelValues(group).Inc()
}

// RecordRedelivery 记录一次重投结果
func RecordRedelivery(group string, success bool) {
	RedeliveriesTotal.WithLabelValues(group, outcome(success)).Inc()
}

// RecordReindexedMessage 记录单封邮件的重建索引结果
func RecordReindexedMessage(success bool) {
	ReindexedMessagesTotal.WithLabelValues(outcome(success)).Inc()
}

// UpdateDBPoolStats 更新数据库连接池统计
func UpdateDBPoolStats(inUse, idle, max int32) {
	DBConnectionsInUse.Set(float64(inUse))
	DBConnectionsIdle.Set(float64(idle))
	DBConnectionsMax.Set(float64(max))
}

// RecordError 记录错误
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// statusClass 将 HTTP 状态码转为类别
func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

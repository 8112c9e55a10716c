package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// L 全局 logger（Init 之前为静默 logger，便于测试）
	L = zerolog.Nop()
)

// Init 初始化日志器
func Init(production bool) error {
	zerolog.TimeFieldFormat = time.RFC3339

	L = New(os.Stdout, production)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	return nil
}

// New 构造 logger；production 为 JSON 输出，否则为控制台格式
func New(out io.Writer, production bool) zerolog.Logger {
	if production {
		return zerolog.New(out).
			With().
			Timestamp().
			Caller().
			Logger()
	}

	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		// HTTP 请求日志在前，任务相关字段在后
		FieldsOrder: []string{
			"request_id",
			"method",
			"path",
			"status",
			"duration(ms)",
			"task_id",
			"task_type",
			"group",
			"insertion_id",
			"errors",
		},
	}
	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// SetLevel 设置日志级别
func SetLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// WithRequestID 添加 request_id
func WithRequestID(requestID string) *zerolog.Logger {
	l := L.With().Str("request_id", requestID).Logger()
	return &l
}

// WithTaskID 添加 task_id
func WithTaskID(taskID string) *zerolog.Logger {
	l := L.With().Str("task_id", taskID).Logger()
	return &l
}

// WithTask 添加 task_id 与 task_type
func WithTask(taskID, taskType string) *zerolog.Logger {
	l := L.With().Str("task_id", taskID).Str("task_type", taskType).Logger()
	return &l
}

// WithGroup 添加死信 group
func WithGroup(group string) *zerolog.Logger {
	l := L.With().Str("group", group).Logger()
	return &l
}

// Debug 输出 debug 级别日志
func Debug() *zerolog.Event {
	return L.Debug()
}

// Info 输出 info 级别日志
func Info() *zerolog.Event {
	return L.Info()
}

// Warn 输出 warn 级别日志
func Warn() *zerolog.Event {
	return L.Warn()
}

// Error 输出 error 级别日志
func Error() *zerolog.Event {
	return L.Error()
}

// Fatal 输出 fatal 级别日志并退出
func Fatal() *zerolog.Event {
	return L.Fatal()
}

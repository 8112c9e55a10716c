package middleware

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/azhengyongqin/mail-taskhub/internal/logger"
)

const (
	// MaxBodyLogSize 最大记录的请求/响应体大小（字节）
	MaxBodyLogSize = 4096

	// ContextKeySubmittedTask 提交类接口成功后写入的 taskId
	ContextKeySubmittedTask = "submitted_task_id"
)

// bodyRecorder 记录响应大小，并缓存前 MaxBodyLogSize 字节用于 5xx 排查
type bodyRecorder struct {
	gin.ResponseWriter
	body *bytes.Buffer
	size int
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	if w.body.Len()+len(b) <= MaxBodyLogSize {
		w.body.Write(b)
	}
	return n, err
}

// readBody 读取并恢复请求体，仅 POST/PUT/PATCH
func readBody(c *gin.Context) string {
	switch c.Request.Method {
	case "POST", "PUT", "PATCH":
	default:
		return ""
	}
	if c.Request.Body == nil {
		return ""
	}
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(data))
	if len(data) > MaxBodyLogSize {
		return string(data[:MaxBodyLogSize]) + "... (truncated)"
	}
	return string(data)
}

// LoggingMiddleware 记录请求日志；按状态码选择级别，并附带任务、group 等路径参数
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestBody := readBody(c)

		rec := &bodyRecorder{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = rec

		c.Next()

		status := c.Writer.Status()
		log := logger.WithRequestID(GetRequestID(c))

		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		default:
			ev = log.Info()
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		ev = ev.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration(ms)", time.Since(start)).
			Int("response_size", rec.size).
			Str("client_ip", c.ClientIP())

		if q := c.Request.URL.RawQuery; q != "" {
			ev = ev.Str("query", q)
		}
		for _, key := range []string{"task_id", "group", "insertion_id"} {
			if v, ok := c.Get(key); ok {
				ev = ev.Interface(key, v)
			}
		}
		if id := c.GetString(ContextKeySubmittedTask); id != "" {
			ev = ev.Str("task_id", id)
		}
		if requestBody != "" {
			ev = ev.Str("request_body", requestBody)
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		if status >= 500 && rec.body.Len() > 0 {
			ev = ev.Str("response_body", rec.body.String())
		}

		ev.Msg("HTTP 请求")
	}
}

// GetRequestID 从上下文中获取请求 ID
func GetRequestID(c *gin.Context) string {
	return c.GetString("request_id")
}

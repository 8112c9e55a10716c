package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/azhengyongqin/mail-taskhub/internal/deadletter"
	"github.com/azhengyongqin/mail-taskhub/internal/events"
	"github.com/azhengyongqin/mail-taskhub/internal/task"
)

const (
	// MaxPayloadSize 最大 payload 大小（2MB）
	MaxPayloadSize = 2 * 1024 * 1024
)

// PayloadSizeLimit Payload 大小限制中间件
func PayloadSizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "请求体过大，最大允许 2MB",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// SanitizeString 清理字符串（去除危险字符）
func SanitizeString(s string) string {
	// 去除前后空格
	s = strings.TrimSpace(s)

	// 去除控制字符
	var builder strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			builder.WriteRune(r)
		}
	}

	return builder.String()
}

// validateParam 路径参数校验通过后以规范化的值写回 context
func validateParam(name, message string, parse func(string) (any, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Param(name)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": name + " 参数缺失",
			})
			return
		}

		v, err := parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   message,
				"details": err.Error(),
			})
			return
		}

		c.Set(name, v)
		c.Next()
	}
}

// ValidateTaskIDParam Gin 中间件：task_id 必须是 UUID，结果以 task.ID 存入 "task_id"
func ValidateTaskIDParam() gin.HandlerFunc {
	return validateParam("task_id", "task_id 格式无效，必须是 UUID", func(s string) (any, error) {
		return task.ParseID(s)
	})
}

// ValidateGroupParam Gin 中间件：校验监听组名称，结果以 events.Group 存入 "group"
func ValidateGroupParam() gin.HandlerFunc {
	return validateParam("group", "group 格式无效", func(s string) (any, error) {
		return events.ParseGroup(s)
	})
}

// ValidateInsertionIDParam Gin 中间件：insertion_id 必须是 UUID
func ValidateInsertionIDParam() gin.HandlerFunc {
	return validateParam("insertion_id", "insertion_id 格式无效，必须是 UUID", func(s string) (any, error) {
		return deadletter.ParseInsertionID(s)
	})
}

// CORSMiddleware CORS 中间件（内部系统可选）
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

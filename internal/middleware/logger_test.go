package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/mail-taskhub/internal/logger"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := logger.L
	logger.L = logger.New(&buf, true)
	t.Cleanup(func() { logger.L = prev })
	return &buf
}

func TestLoggingMiddleware_SubmittedTask(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t)

	r := gin.New()
	r.Use(RequestIDMiddleware(), LoggingMiddleware())
	r.POST("/mailboxes/merging", func(c *gin.Context) {
		c.Set(ContextKeySubmittedTask, "t-1")
		c.JSON(http.StatusCreated, gin.H{"taskId": "t-1"})
	})

	req := httptest.NewRequest(http.MethodPost, "/mailboxes/merging?x=1", strings.NewReader(`{"mergeOrigin":"1"}`))
	req.Header.Set("X-Request-ID", "req-9")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "req-9", entry["request_id"])
	assert.Equal(t, "/mailboxes/merging", entry["path"])
	assert.Equal(t, "t-1", entry["task_id"])
	assert.Equal(t, "x=1", entry["query"])
	assert.Equal(t, `{"mergeOrigin":"1"}`, entry["request_body"])
}

func TestLoggingMiddleware_ServerErrorKeepsBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogs(t)

	r := gin.New()
	r.Use(LoggingMiddleware())
	r.GET("/boom", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.JSONEq(t, `{"error":"boom"}`, entry["response_body"].(string))
}
